package rules

import (
	"math/rand/v2"
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/fixture"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/clinicsim/clinic-server-go/internal/game/victory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTurnMachine(cfg config.GameConfig, content *fixture.Content) *TurnMachine {
	return NewTurnMachine(cfg, content, victory.NewEvaluator(cfg), rand.New(rand.NewPCG(1, 2)))
}

func TestEndTurnIncrementsOnlyOnReturnToFirstRole(t *testing.T) {
	tm := newTurnMachine(config.DefaultGame(), fixture.NewContent())
	state := fixture.State()

	tm.EndTurn(state)
	assert.Equal(t, model.RolePatient, state.ActiveRole)
	assert.Equal(t, 1, state.Turn)

	tm.EndTurn(state)
	assert.Equal(t, model.RoleClinician, state.ActiveRole)
	assert.Equal(t, 2, state.Turn)

	tm.EndTurn(state)
	assert.Equal(t, 2, state.Turn)
}

func TestEndTurnRegeneration(t *testing.T) {
	cfg := config.DefaultGame()

	t.Run("base plus modifiers", func(t *testing.T) {
		tm := newTurnMachine(cfg, fixture.NewContent())
		state := fixture.State()
		state.Pool(model.RoleClinician).Set(resources.Energy, 2)
		modifiers.Apply(state, model.Modifier{
			Key:      "coffee",
			Duration: model.Permanent,
			Effects:  []model.ModifierEffect{{Kind: model.ModifierRegeneration, Role: model.RoleClinician, Magnitude: 2}},
		})

		tm.EndTurn(state) // to patient
		deflection := state.Pool(model.RolePatient).Get(resources.Deflection)
		assert.Equal(t, 5+2, deflection)

		tm.EndTurn(state) // back to clinician
		assert.Equal(t, 2+3+2, state.Pool(model.RoleClinician).Get(resources.Energy))
	})

	t.Run("floored at one", func(t *testing.T) {
		tm := newTurnMachine(cfg, fixture.NewContent())
		state := fixture.State()
		modifiers.Apply(state, model.Modifier{
			Key:      "understaffed",
			Duration: model.Permanent,
			Effects:  []model.ModifierEffect{{Kind: model.ModifierRegeneration, Magnitude: -9}},
		})
		tm.EndTurn(state)
		assert.Equal(t, 6, state.Pool(model.RolePatient).Get(resources.Deflection))
	})

	t.Run("configured floor", func(t *testing.T) {
		cfg := config.DefaultGame()
		patient := cfg.Roles["patient"]
		patient.MinRegeneration = 0
		cfg.Roles["patient"] = patient
		tm := newTurnMachine(cfg, fixture.NewContent())
		state := fixture.State()
		modifiers.Apply(state, model.Modifier{
			Key:      "understaffed",
			Duration: model.Permanent,
			Effects:  []model.ModifierEffect{{Kind: model.ModifierRegeneration, Magnitude: -9}},
		})
		tm.EndTurn(state)
		assert.Equal(t, 5, state.Pool(model.RolePatient).Get(resources.Deflection))
	})

	t.Run("capped at max", func(t *testing.T) {
		tm := newTurnMachine(cfg, fixture.NewContent())
		state := fixture.State()
		state.Pool(model.RolePatient).Set(resources.Deflection, 14)
		tm.EndTurn(state)
		assert.Equal(t, 15, state.Pool(model.RolePatient).Get(resources.Deflection))
	})
}

func TestEndTurnTicksOncePerCycle(t *testing.T) {
	tm := newTurnMachine(config.DefaultGame(), fixture.NewContent())
	state := fixture.State()
	mod := fixture.DocumentationNightmare()
	mod.Duration = model.Turns(3)
	modifiers.Apply(state, mod)
	state.ActiveEffects[model.RolePatient] = []model.ActiveEffect{{ID: "guarded", Duration: model.Turns(1)}}

	tm.EndTurn(state) // clinician ends: no tick
	require.Len(t, state.Modifiers, 1)
	assert.Equal(t, 3, state.Modifiers[0].Duration.Turns)
	assert.Len(t, state.ActiveEffects[model.RolePatient], 1)

	tm.EndTurn(state) // patient ends: cycle complete
	assert.Equal(t, 2, state.Modifiers[0].Duration.Turns)
	assert.Empty(t, state.ActiveEffects[model.RolePatient])

	tm.EndTurn(state)
	tm.EndTurn(state)
	tm.EndTurn(state)
	tm.EndTurn(state)
	assert.Empty(t, state.Modifiers)

	var expired int
	for _, entry := range state.Log {
		if entry.Action == model.ActionModifierExpired {
			expired++
		}
	}
	assert.Equal(t, 1, expired)
}

func TestEndTurnClearsPerTurnState(t *testing.T) {
	tm := newTurnMachine(config.DefaultGame(), fixture.NewContent())
	state := fixture.State()
	state.CardsPlayedThisTurn = []string{"exam"}
	state.TreatmentPlays = 2
	state.PendingCounters = []model.CounterOpportunity{{ID: "opp"}}

	tm.EndTurn(state)
	assert.Empty(t, state.CardsPlayedThisTurn)
	assert.Zero(t, state.TreatmentPlays)
	assert.Empty(t, state.PendingCounters)

	last := state.Log[len(state.Log)-1]
	assert.Equal(t, model.ActionTurnChange, last.Action)
	assert.Equal(t, "patient", last.Payload["to"])
}

func TestEndTurnDraws(t *testing.T) {
	content := fixture.NewContent()
	content.RoleCards[model.RolePatient] = []model.CardDefinition{
		fixture.Card("deflect", model.RolePatient, model.CardDeflection, 1),
		fixture.Card("sigh", model.RolePatient, model.CardEmotionalState, 1),
	}
	tm := newTurnMachine(config.DefaultGame(), content)

	t.Run("below floor draws one rebuilding the deck", func(t *testing.T) {
		state := fixture.State()
		tm.EndTurn(state)
		assert.Len(t, state.Hands[model.RolePatient], 1)
		assert.Len(t, state.Decks[model.RolePatient], 1)
	})

	t.Run("at floor does not draw", func(t *testing.T) {
		state := fixture.State()
		fixture.Give(state, model.RolePatient, content.RoleCards[model.RolePatient][0],
			content.RoleCards[model.RolePatient][0], content.RoleCards[model.RolePatient][1])
		tm.EndTurn(state)
		assert.Len(t, state.Hands[model.RolePatient], 3)
	})

	t.Run("empty pool draws nothing", func(t *testing.T) {
		state := fixture.State()
		tm.EndTurn(state)
		tm.EndTurn(state)
		assert.Empty(t, state.Hands[model.RoleClinician])
	})
}

func TestEndTurnPhaseAndTerminal(t *testing.T) {
	cfg := config.DefaultGame()
	tm := newTurnMachine(cfg, fixture.NewContent())

	t.Run("diagnosis by turn fraction", func(t *testing.T) {
		state := fixture.State()
		for state.Turn <= 6 {
			tm.EndTurn(state)
		}
		assert.Equal(t, 7, state.Turn)
		assert.Equal(t, model.PhaseDiagnosis, state.Phase)
	})

	t.Run("diagnosis by clue count", func(t *testing.T) {
		state := fixture.State()
		for _, id := range []string{"a", "b", "c", "d"} {
			state.DiscoveredClues = append(state.DiscoveredClues, model.Clue{ID: id})
		}
		tm.EndTurn(state)
		assert.Equal(t, model.PhaseDiagnosis, state.Phase)
	})

	t.Run("match ends on reaching the turn limit", func(t *testing.T) {
		state := fixture.State()
		for i := 0; i < 2*(state.MaxTurns-1); i++ {
			require.False(t, state.Finished(), "ended early at turn %d", state.Turn)
			tm.EndTurn(state)
		}
		assert.True(t, state.Finished())
		assert.Equal(t, state.MaxTurns, state.Turn)
		assert.Equal(t, model.PhaseScoring, state.Phase)
		assert.Equal(t, victory.ReasonMaxTurns, state.Result.Reason)

		turn := state.Turn
		tm.EndTurn(state)
		assert.Equal(t, turn, state.Turn, "finished matches do not advance")
	})
}
