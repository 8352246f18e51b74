package effects

import (
	"math"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// ClueConfidence derives the confidence of a clue at discovery from its
// reliability and the current patient cooperation and clinician rapport.
func ClueConfidence(cfg config.ClueConfig, reliability float64, cooperation, rapport int) float64 {
	c := reliability +
		cfg.CooperationWeight*float64(cooperation-cfg.Pivot) +
		cfg.RapportWeight*float64(rapport-cfg.Pivot)
	c = math.Max(cfg.MinConfidence, math.Min(cfg.MaxConfidence, c))
	return math.Round(c*1000) / 1000
}

// revealClues picks the clue ids a reveal will discover. Ids already
// discovered are never drawn again; an exhausted pool yields no ids.
// Pending information reduction withholds clues from the count.
func (e *Engine) revealClues(state *model.MatchState, def model.CardDefinition) model.RevealClues {
	category := def.ClueCategory
	if category == "" {
		category = e.openCategory(state)
	}

	requested := def.CluesRevealed
	withheld := min(state.InformationPenalty, requested)
	count := requested - withheld

	var available []string
	for _, tmpl := range e.content.CluePool(category) {
		if !state.HasClue(tmpl.ID) {
			available = append(available, tmpl.ID)
		}
	}
	e.rng.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	if count > len(available) {
		count = len(available)
	}

	return model.RevealClues{
		Category:  category,
		Requested: requested,
		Withheld:  withheld,
		ClueIDs:   append([]string(nil), available[:count]...),
	}
}

// openCategory returns the first scenario category that still has
// undiscovered clues.
func (e *Engine) openCategory(state *model.MatchState) string {
	for _, category := range state.ClueCategories {
		for _, tmpl := range e.content.CluePool(category) {
			if !state.HasClue(tmpl.ID) {
				return category
			}
		}
	}
	if len(state.ClueCategories) > 0 {
		return state.ClueCategories[0]
	}
	return ""
}

func (m *Mutator) discover(state *model.MatchState, category, id string) bool {
	if state.HasClue(id) {
		return false
	}
	for _, tmpl := range m.content.CluePool(category) {
		if tmpl.ID != id {
			continue
		}
		cooperation := state.Pool(model.RolePatient).Get(resources.Cooperation) + state.Adjustments.CooperationBonus
		rapport := state.Pool(model.RoleClinician).Get(resources.Rapport)
		state.DiscoveredClues = append(state.DiscoveredClues, model.Clue{
			ID:          tmpl.ID,
			Category:    category,
			Description: tmpl.Description,
			Reliability: tmpl.Reliability,
			Confidence:  ClueConfidence(m.cfg.Clues, tmpl.Reliability, cooperation, rapport),
			Turn:        state.Turn,
		})
		return true
	}
	return false
}
