// Package catalog holds the authored content of the game: card definitions,
// clue pools, modifiers, scenarios and the role decks built from them.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownCard is returned when a card id is not in the catalog.
	ErrUnknownCard = errors.New("unknown card")
	// ErrUnknownScenario is returned when a scenario id is not in the catalog.
	ErrUnknownScenario = errors.New("unknown scenario")
)

// File is the YAML layout of a catalog.
type File struct {
	Cards     []model.CardDefinition          `yaml:"cards"`
	Clues     map[string][]model.ClueTemplate `yaml:"clues"`
	Modifiers []ModifierEntry                 `yaml:"modifiers"`
	Scenarios []model.Scenario                `yaml:"scenarios"`
	Decks     map[model.Role][]DeckEntry      `yaml:"decks"`
}

// ModifierEntry is an authored modifier. Duration 0 is permanent.
type ModifierEntry struct {
	Key      string        `yaml:"key"`
	Name     string        `yaml:"name"`
	Tier     string        `yaml:"tier"`
	Duration int           `yaml:"duration"`
	Effects  []EffectEntry `yaml:"effects"`
}

// EffectEntry is one authored modifier adjustment.
type EffectEntry struct {
	Kind      string  `yaml:"kind"`
	Magnitude float64 `yaml:"magnitude"`
	CardType  string  `yaml:"card_type"`
	Role      string  `yaml:"role"`
	Resource  string  `yaml:"resource"`
}

// DeckEntry puts Count copies of a card into a role's deck.
type DeckEntry struct {
	Card  string `yaml:"card"`
	Count int    `yaml:"count"`
}

// Catalog is a validated, read-only content set. It is safe for concurrent use.
type Catalog struct {
	cards     map[string]model.CardDefinition
	order     []string
	clues     map[string][]model.ClueTemplate
	modifiers map[string]model.Modifier
	scenarios map[string]model.Scenario
	decks     map[model.Role][]DeckEntry
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}
	mods := make([]model.Modifier, 0, len(f.Modifiers))
	for _, entry := range f.Modifiers {
		mod, err := entry.Modifier()
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return New(f.Cards, f.Clues, mods, f.Scenarios, f.Decks)
}

// Modifier converts the entry into a model modifier.
func (e ModifierEntry) Modifier() (model.Modifier, error) {
	mod := model.Modifier{Key: e.Key, Name: e.Name, Duration: model.Permanent}
	if e.Key == "" {
		return mod, fmt.Errorf("modifier %q: missing key", e.Name)
	}
	if e.Tier != "" {
		tier, err := model.ParseDifficulty(e.Tier)
		if err != nil {
			return mod, fmt.Errorf("modifier %s: %w", e.Key, err)
		}
		mod.Tier = tier
	}
	if e.Duration < 0 {
		return mod, fmt.Errorf("modifier %s: negative duration", e.Key)
	}
	if e.Duration > 0 {
		mod.Duration = model.Turns(e.Duration)
	}
	for i, eff := range e.Effects {
		kind, err := model.ParseModifierKind(eff.Kind)
		if err != nil {
			return mod, fmt.Errorf("modifier %s effect %d: %w", e.Key, i, err)
		}
		me := model.ModifierEffect{
			Kind:      kind,
			Magnitude: eff.Magnitude,
			Resource:  resources.Name(eff.Resource),
		}
		switch eff.CardType {
		case "", string(model.CardAnyType):
			me.CardType = model.CardAnyType
		default:
			if me.CardType, err = model.ParseCardType(eff.CardType); err != nil {
				return mod, fmt.Errorf("modifier %s effect %d: %w", e.Key, i, err)
			}
		}
		if eff.Role != "" {
			if me.Role, err = model.ParseRole(eff.Role); err != nil {
				return mod, fmt.Errorf("modifier %s effect %d: %w", e.Key, i, err)
			}
		}
		if kind == model.ModifierResourceShift && (me.Role == "" || me.Resource == "") {
			return mod, fmt.Errorf("modifier %s effect %d: resource_shift needs role and resource", e.Key, i)
		}
		mod.Effects = append(mod.Effects, me)
	}
	return mod, nil
}

// New builds and validates a catalog from already-decoded content. Roles
// without a deck list play one copy of every card of their role.
func New(cards []model.CardDefinition, clues map[string][]model.ClueTemplate, mods []model.Modifier, scenarios []model.Scenario, decks map[model.Role][]DeckEntry) (*Catalog, error) {
	c := &Catalog{
		cards:     make(map[string]model.CardDefinition, len(cards)),
		clues:     make(map[string][]model.ClueTemplate, len(clues)),
		modifiers: make(map[string]model.Modifier, len(mods)),
		scenarios: make(map[string]model.Scenario, len(scenarios)),
		decks:     make(map[model.Role][]DeckEntry, len(decks)),
	}

	seenClues := make(map[string]string)
	for category, pool := range clues {
		for _, clue := range pool {
			if clue.ID == "" {
				return nil, fmt.Errorf("clue category %s: clue without id", category)
			}
			if other, dup := seenClues[clue.ID]; dup {
				return nil, fmt.Errorf("clue %s: duplicated in %s and %s", clue.ID, other, category)
			}
			if clue.Reliability < 0 || clue.Reliability > 1 {
				return nil, fmt.Errorf("clue %s: reliability %.2f outside [0,1]", clue.ID, clue.Reliability)
			}
			seenClues[clue.ID] = category
		}
		c.clues[category] = append([]model.ClueTemplate(nil), pool...)
	}

	for _, mod := range mods {
		if _, dup := c.modifiers[mod.Key]; dup {
			return nil, fmt.Errorf("modifier %s: duplicate key", mod.Key)
		}
		c.modifiers[mod.Key] = mod.Copy()
	}

	for _, card := range cards {
		if err := c.validateCard(card); err != nil {
			return nil, err
		}
		if _, dup := c.cards[card.ID]; dup {
			return nil, fmt.Errorf("card %s: duplicate id", card.ID)
		}
		c.cards[card.ID] = card
		c.order = append(c.order, card.ID)
	}

	for _, s := range scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %q: missing id", s.Name)
		}
		if len(s.ClueCategories) == 0 {
			return nil, fmt.Errorf("scenario %s: no clue categories", s.ID)
		}
		for _, category := range s.ClueCategories {
			if _, ok := c.clues[category]; !ok {
				return nil, fmt.Errorf("scenario %s: unknown clue category %q", s.ID, category)
			}
		}
		for difficulty, keys := range s.Modifiers {
			if _, err := model.ParseDifficulty(string(difficulty)); err != nil {
				return nil, fmt.Errorf("scenario %s: %w", s.ID, err)
			}
			for _, key := range keys {
				if _, ok := c.modifiers[key]; !ok {
					return nil, fmt.Errorf("scenario %s: unknown modifier %q", s.ID, key)
				}
			}
		}
		c.scenarios[s.ID] = s
	}

	for role, entries := range decks {
		if !role.Valid() {
			return nil, fmt.Errorf("deck for unknown role %q", role)
		}
		for _, entry := range entries {
			card, ok := c.cards[entry.Card]
			if !ok {
				return nil, fmt.Errorf("%s deck: %w: %s", role, ErrUnknownCard, entry.Card)
			}
			if card.Role != role {
				return nil, fmt.Errorf("%s deck: card %s belongs to the %s", role, card.ID, card.Role)
			}
			if entry.Count < 1 {
				return nil, fmt.Errorf("%s deck: card %s has count %d", role, card.ID, entry.Count)
			}
		}
		c.decks[role] = append([]DeckEntry(nil), entries...)
	}
	return c, nil
}

func (c *Catalog) validateCard(card model.CardDefinition) error {
	if card.ID == "" {
		return fmt.Errorf("card %q: missing id", card.Name)
	}
	if !card.Role.Valid() {
		return fmt.Errorf("card %s: invalid role %q", card.ID, card.Role)
	}
	if _, err := model.ParseCardType(string(card.Type)); err != nil {
		return fmt.Errorf("card %s: %w", card.ID, err)
	}
	if _, err := model.ParseTargetKind(string(card.RequiresTarget)); err != nil {
		return fmt.Errorf("card %s: %w", card.ID, err)
	}
	for name, amount := range card.Costs {
		if amount < 0 {
			return fmt.Errorf("card %s: negative %s cost", card.ID, name)
		}
	}
	for _, kind := range card.Counters {
		if _, err := model.ParseEffectKind(string(kind)); err != nil {
			return fmt.Errorf("card %s: %w", card.ID, err)
		}
	}
	for _, phase := range card.PhaseRestrictions {
		if _, err := model.ParsePhase(string(phase)); err != nil {
			return fmt.Errorf("card %s: %w", card.ID, err)
		}
	}
	if card.ClueCategory != "" {
		if _, ok := c.clues[card.ClueCategory]; !ok {
			return fmt.Errorf("card %s: unknown clue category %q", card.ID, card.ClueCategory)
		}
	}
	if card.GrantsModifier != "" {
		if _, ok := c.modifiers[card.GrantsModifier]; !ok {
			return fmt.Errorf("card %s: grants unknown modifier %q", card.ID, card.GrantsModifier)
		}
	}
	if l := card.Lingering; l != nil {
		if l.Duration < 0 {
			return fmt.Errorf("card %s: negative lingering duration", card.ID)
		}
		for _, kind := range l.Triggers {
			if _, err := model.ParseEffectKind(string(kind)); err != nil {
				return fmt.Errorf("card %s lingering: %w", card.ID, err)
			}
		}
		if l.Emit.Delta != 0 && !l.Emit.Role.Valid() {
			return fmt.Errorf("card %s lingering: emit needs a role", card.ID)
		}
	}
	return nil
}

// Card returns a card definition.
func (c *Catalog) Card(id string) (model.CardDefinition, error) {
	card, ok := c.cards[id]
	if !ok {
		return model.CardDefinition{}, fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}
	return card, nil
}

// Cards returns every card in authored order.
func (c *Catalog) Cards() []model.CardDefinition {
	out := make([]model.CardDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.cards[id])
	}
	return out
}

// CardsFor returns the cards of one role in authored order.
func (c *Catalog) CardsFor(role model.Role) []model.CardDefinition {
	var out []model.CardDefinition
	for _, id := range c.order {
		if card := c.cards[id]; card.Role == role {
			out = append(out, card)
		}
	}
	return out
}

// CluePool returns the clue templates of a category.
func (c *Catalog) CluePool(category string) []model.ClueTemplate {
	return c.clues[category]
}

// Modifier returns a modifier by key.
func (c *Catalog) Modifier(key string) (model.Modifier, bool) {
	mod, ok := c.modifiers[key]
	if !ok {
		return model.Modifier{}, false
	}
	return mod.Copy(), true
}

// Modifiers returns every modifier sorted by key.
func (c *Catalog) Modifiers() []model.Modifier {
	out := make([]model.Modifier, 0, len(c.modifiers))
	for _, mod := range c.modifiers {
		out = append(out, mod.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Scenario returns a scenario by id.
func (c *Catalog) Scenario(id string) (model.Scenario, bool) {
	s, ok := c.scenarios[id]
	return s, ok
}

// Scenarios returns every scenario sorted by id.
func (c *Catalog) Scenarios() []model.Scenario {
	out := make([]model.Scenario, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RolePool returns the full deck of a role, one definition per copy.
func (c *Catalog) RolePool(role model.Role) []model.CardDefinition {
	entries, ok := c.decks[role]
	if !ok {
		return c.CardsFor(role)
	}
	var out []model.CardDefinition
	for _, entry := range entries {
		card := c.cards[entry.Card]
		for i := 0; i < entry.Count; i++ {
			out = append(out, card)
		}
	}
	return out
}

// Decks returns a copy of the authored deck lists.
func (c *Catalog) Decks() map[model.Role][]DeckEntry {
	out := make(map[model.Role][]DeckEntry, len(c.decks))
	for role, entries := range c.decks {
		out[role] = append([]DeckEntry(nil), entries...)
	}
	return out
}

// WithCards returns a catalog sharing c's clues, modifiers and scenarios but
// playing cards and decks. The result is validated like New.
func (c *Catalog) WithCards(cards []model.CardDefinition, decks map[model.Role][]DeckEntry) (*Catalog, error) {
	return New(cards, c.clues, c.Modifiers(), c.Scenarios(), decks)
}
