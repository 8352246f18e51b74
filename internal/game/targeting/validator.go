package targeting

import (
	"fmt"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
)

// Result is the outcome of a target legality check.
type Result struct {
	Legal  bool
	Reason string
}

// Check validates targetID for a card requiring a target of the given kind,
// played by role.
//
//   - clue: a discovered clue
//   - active_effect: an active effect owned by the opponent
//   - modifier: an active match modifier
func Check(state *model.MatchState, role model.Role, kind model.TargetKind, targetID string) Result {
	if kind == model.TargetNone {
		return Result{Legal: true}
	}
	id := strings.TrimSpace(targetID)
	if id == "" {
		return Result{Reason: fmt.Sprintf("a %s target is required", kind)}
	}
	for _, candidate := range Candidates(state, role, kind) {
		if candidate == id {
			return Result{Legal: true}
		}
	}
	return Result{Reason: fmt.Sprintf("%s is not a legal %s target", id, kind)}
}

// Candidates lists every legal target id for kind, in state order.
func Candidates(state *model.MatchState, role model.Role, kind model.TargetKind) []string {
	var out []string
	switch kind {
	case model.TargetClue:
		for _, clue := range state.DiscoveredClues {
			out = append(out, clue.ID)
		}
	case model.TargetActiveEffect:
		for _, effect := range state.ActiveEffects[role.Opponent()] {
			out = append(out, effect.ID)
		}
	case model.TargetModifier:
		for _, mod := range state.Modifiers {
			out = append(out, mod.ID)
		}
	}
	return out
}
