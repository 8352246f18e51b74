// Package fixture builds small, fully wired match states for engine tests.
package fixture

import (
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// ClinicianRanges are the default clinician resource ranges.
func ClinicianRanges() map[resources.Name]resources.Range {
	return map[resources.Name]resources.Range{
		resources.Energy:     {Min: 0, Max: 15},
		resources.Rapport:    {Min: 0, Max: 10},
		resources.Confidence: {Min: 0, Max: 100},
	}
}

// PatientRanges are the default patient resource ranges.
func PatientRanges() map[resources.Name]resources.Range {
	return map[resources.Name]resources.Range{
		resources.Cooperation: {Min: 0, Max: 10},
		resources.Deflection:  {Min: 0, Max: 15},
		resources.Emotional:   {Min: 0, Max: 12},
		resources.Complexity:  {Min: 0, Max: 10},
	}
}

// State returns an in-progress match at turn 1 of 10, clinician to act,
// investigation phase, with empty hands and decks.
func State() *model.MatchState {
	clinician, err := resources.NewPool(ClinicianRanges(), map[resources.Name]int{
		resources.Energy:  10,
		resources.Rapport: 5,
	})
	if err != nil {
		panic(err)
	}
	patient, err := resources.NewPool(PatientRanges(), map[resources.Name]int{
		resources.Cooperation: 5,
		resources.Deflection:  5,
		resources.Emotional:   4,
	})
	if err != nil {
		panic(err)
	}
	return &model.MatchState{
		MatchID:    "match-1",
		ScenarioID: "chest_pain",
		Seed:       1,
		Difficulty: model.DifficultyIntermediate,
		Turn:       1,
		MaxTurns:   10,
		ActiveRole: model.RoleClinician,
		FirstRole:  model.RoleClinician,
		Phase:      model.PhaseInvestigation,
		Status:     model.StatusInProgress,
		Pools: map[model.Role]*resources.Pool{
			model.RoleClinician: clinician,
			model.RolePatient:   patient,
		},
		PrimaryResource: map[model.Role]resources.Name{
			model.RoleClinician: resources.Energy,
			model.RolePatient:   resources.Deflection,
		},
		Hands: map[model.Role][]model.CardInstance{
			model.RoleClinician: {},
			model.RolePatient:   {},
		},
		Decks: map[model.Role][]model.CardDefinition{
			model.RoleClinician: {},
			model.RolePatient:   {},
		},
		ActiveEffects: map[model.Role][]model.ActiveEffect{
			model.RoleClinician: {},
			model.RolePatient:   {},
		},
		ClueCategories: []string{"history", "physical", "labs"},
		Adjustments: model.Adjustments{
			CostDelta:  map[model.CardType]int{},
			RegenDelta: map[model.Role]int{},
		},
	}
}

// Card returns a definition with the given primary cost.
func Card(id string, role model.Role, typ model.CardType, cost int) model.CardDefinition {
	primary := resources.Energy
	if role == model.RolePatient {
		primary = resources.Deflection
	}
	return model.CardDefinition{
		ID:    id,
		Name:  id,
		Role:  role,
		Type:  typ,
		Costs: map[resources.Name]int{primary: cost},
	}
}

// Give puts fresh instances of defs into the role's hand and returns them.
func Give(state *model.MatchState, role model.Role, defs ...model.CardDefinition) []model.CardInstance {
	out := make([]model.CardInstance, 0, len(defs))
	for _, def := range defs {
		inst := state.NewCard(def)
		state.Hands[role] = append(state.Hands[role], inst)
		out = append(out, inst)
	}
	return out
}

// Content is an in-memory card, clue and modifier source.
type Content struct {
	Clues     map[string][]model.ClueTemplate
	Mods      map[string]model.Modifier
	RoleCards map[model.Role][]model.CardDefinition
	Scenarios map[string]model.Scenario
}

// NewContent returns content with three clues in each default category and a
// chest_pain scenario whose intermediate and advanced tiers start with
// modifiers. Role card pools are empty.
func NewContent() *Content {
	return &Content{
		Clues: map[string][]model.ClueTemplate{
			"history": {
				{ID: "hx-1", Description: "pain began after exertion", Reliability: 0.8},
				{ID: "hx-2", Description: "father had an early infarct", Reliability: 0.7},
				{ID: "hx-3", Description: "smokes a pack a day", Reliability: 0.9},
			},
			"physical": {
				{ID: "px-1", Description: "diaphoretic on arrival", Reliability: 0.6},
				{ID: "px-2", Description: "blood pressure 160/95", Reliability: 0.9},
				{ID: "px-3", Description: "no reproducible chest wall tenderness", Reliability: 0.5},
			},
			"labs": {
				{ID: "lab-1", Description: "troponin mildly elevated", Reliability: 0.95},
				{ID: "lab-2", Description: "normal d-dimer", Reliability: 0.85},
				{ID: "lab-3", Description: "LDL 190", Reliability: 0.8},
			},
		},
		Mods: map[string]model.Modifier{
			"documentation_nightmare": DocumentationNightmare(),
			"insurance_denied":        InsuranceDenied(),
		},
		RoleCards: map[model.Role][]model.CardDefinition{},
		Scenarios: map[string]model.Scenario{
			"chest_pain": {
				ID:             "chest_pain",
				Name:           "Chest Pain",
				ClueCategories: []string{"history", "physical", "labs"},
				Modifiers: map[model.Difficulty][]string{
					model.DifficultyIntermediate: {"documentation_nightmare"},
					model.DifficultyAdvanced:     {"documentation_nightmare", "insurance_denied"},
				},
			},
		},
	}
}

// CluePool implements the clue source used by the effect engine.
func (c *Content) CluePool(category string) []model.ClueTemplate {
	return c.Clues[category]
}

// Modifier implements the modifier source used by the effect engine.
func (c *Content) Modifier(key string) (model.Modifier, bool) {
	m, ok := c.Mods[key]
	return m, ok
}

// RolePool implements the deck source used by the turn machine.
func (c *Content) RolePool(role model.Role) []model.CardDefinition {
	return c.RoleCards[role]
}

// Scenario implements the scenario source used by match setup.
func (c *Content) Scenario(id string) (model.Scenario, bool) {
	s, ok := c.Scenarios[id]
	return s, ok
}

// DocumentationNightmare adds one to every card cost, permanently.
func DocumentationNightmare() model.Modifier {
	return model.Modifier{
		Key:      "documentation_nightmare",
		Name:     "Documentation Nightmare",
		Tier:     model.DifficultyIntermediate,
		Duration: model.Permanent,
		Effects: []model.ModifierEffect{
			{Kind: model.ModifierCardCost, Magnitude: 1, CardType: model.CardAnyType},
		},
	}
}

// InsuranceDenied caps treatment plays at two per turn.
func InsuranceDenied() model.Modifier {
	return model.Modifier{
		Key:      "insurance_denied",
		Name:     "Insurance Denied",
		Tier:     model.DifficultyAdvanced,
		Duration: model.Permanent,
		Effects: []model.ModifierEffect{
			{Kind: model.ModifierTreatmentLimit, Magnitude: 2},
		},
	}
}
