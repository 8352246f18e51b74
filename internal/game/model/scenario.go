package model

// Scenario is an authored case: the clue categories in play and the
// modifiers each difficulty starts with.
type Scenario struct {
	ID             string                  `yaml:"id" json:"id"`
	Name           string                  `yaml:"name" json:"name"`
	Description    string                  `yaml:"description" json:"description,omitempty"`
	ClueCategories []string                `yaml:"clue_categories" json:"clue_categories"`
	Modifiers      map[Difficulty][]string `yaml:"modifiers" json:"modifiers,omitempty"`
}

// ModifiersFor returns the modifier keys active at the start of a match of
// the given difficulty.
func (s Scenario) ModifiersFor(d Difficulty) []string {
	return s.Modifiers[d]
}
