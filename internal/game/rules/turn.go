package rules

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/victory"
)

// DeckSource supplies the card pool a role's deck is rebuilt from.
type DeckSource interface {
	RolePool(role model.Role) []model.CardDefinition
}

// TurnMachine advances turns: it ticks modifiers, switches the active role,
// regenerates resources, draws, moves phases and re-evaluates victory.
type TurnMachine struct {
	cfg       config.GameConfig
	decks     DeckSource
	evaluator *victory.Evaluator
	rng       *rand.Rand
}

// NewTurnMachine creates a turn machine. rng drives deck shuffles.
func NewTurnMachine(cfg config.GameConfig, decks DeckSource, evaluator *victory.Evaluator, rng *rand.Rand) *TurnMachine {
	return &TurnMachine{cfg: cfg, decks: decks, evaluator: evaluator, rng: rng}
}

// EndTurn ends the active role's turn and returns the state with the next
// turn begun. Modifiers and active effects tick once per full cycle, when the
// second role of the cycle ends its turn. The turn number increments only
// when play returns to the role that opened the match.
func (tm *TurnMachine) EndTurn(state *model.MatchState) *model.MatchState {
	if state.Finished() {
		return state
	}
	ending := state.ActiveRole

	if ending != state.FirstRole {
		tm.tick(state)
	}

	next := ending.Opponent()
	state.ActiveRole = next
	if next == state.FirstRole {
		state.Turn++
	}

	if state.Turn < state.MaxTurns {
		tm.regenerate(state, next)
	}

	state.CardsPlayedThisTurn = nil
	state.TreatmentPlays = 0
	state.PendingCounters = nil

	if len(state.Hands[next]) < tm.cfg.Hand.Floor {
		tm.Draw(state, next)
	}

	state.AppendLog(model.LogEntry{
		Actor:  next,
		Action: model.ActionTurnChange,
		Payload: map[string]string{
			"from":  string(ending),
			"to":    string(next),
			"turn":  strconv.Itoa(state.Turn),
			"phase": string(state.Phase),
		},
	})

	tm.advancePhase(state)
	tm.evaluator.Update(state)
	return state
}

func (tm *TurnMachine) tick(state *model.MatchState) {
	_, expired := modifiers.Tick(state)
	for _, mod := range expired {
		state.AppendLog(model.LogEntry{
			Action:  model.ActionModifierExpired,
			Payload: map[string]string{"modifier": mod.Key, "name": mod.Name},
		})
	}

	for _, role := range model.Roles {
		effects := state.ActiveEffects[role]
		kept := effects[:0:0]
		for _, e := range effects {
			if !e.Duration.Permanent {
				e.Duration.Turns--
				if e.Duration.Turns <= 0 {
					continue
				}
			}
			kept = append(kept, e)
		}
		state.ActiveEffects[role] = kept
	}
}

func (tm *TurnMachine) regenerate(state *model.MatchState, role model.Role) {
	primary, ok := state.PrimaryResource[role]
	if !ok {
		return
	}
	rc := tm.cfg.Roles[string(role)]
	state.Pool(role).Add(primary, modifiers.Regeneration(state, role, rc.Regeneration, rc.MinRegeneration))
}

// Draw moves the top card of role's deck into its hand. An empty deck is
// rebuilt from the role's card pool and shuffled. It reports whether a card
// was drawn.
func (tm *TurnMachine) Draw(state *model.MatchState, role model.Role) bool {
	if tm.cfg.Hand.Max > 0 && len(state.Hands[role]) >= tm.cfg.Hand.Max {
		return false
	}
	if len(state.Decks[role]) == 0 && tm.decks != nil {
		pool := append([]model.CardDefinition(nil), tm.decks.RolePool(role)...)
		tm.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		state.Decks[role] = pool
	}
	if len(state.Decks[role]) == 0 {
		return false
	}

	def := state.Decks[role][0]
	state.Decks[role] = state.Decks[role][1:]
	state.Hands[role] = append(state.Hands[role], state.NewCard(def))
	state.AppendLog(model.LogEntry{
		Actor:   role,
		Action:  model.ActionDraw,
		Payload: map[string]string{"hand_size": strconv.Itoa(len(state.Hands[role]))},
	})
	return true
}

// advancePhase moves investigation to diagnosis once enough of the match has
// elapsed or enough clues are known.
func (tm *TurnMachine) advancePhase(state *model.MatchState) {
	if state.Phase != model.PhaseInvestigation {
		return
	}
	byTurn := float64(state.Turn) > tm.cfg.Phases.DiagnosisTurnFraction*float64(state.MaxTurns)
	byClues := tm.cfg.Phases.DiagnosisClues > 0 && len(state.DiscoveredClues) >= tm.cfg.Phases.DiagnosisClues
	if !byTurn && !byClues {
		return
	}
	state.Phase = model.PhaseDiagnosis
	state.AppendLog(model.LogEntry{
		Action: model.ActionPhaseChange,
		Payload: map[string]string{
			"phase":  string(model.PhaseDiagnosis),
			"reason": fmt.Sprintf("turn=%d clues=%d", state.Turn, len(state.DiscoveredClues)),
		},
	})
}
