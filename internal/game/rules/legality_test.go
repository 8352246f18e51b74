package rules

import (
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/game/fixture"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTurnOwnership(t *testing.T) {
	v := NewValidator()
	state := fixture.State()
	inst := fixture.Give(state, model.RolePatient, fixture.Card("deflect", model.RolePatient, model.CardDeflection, 1))[0]
	before := state.Clone()

	rej := v.Validate(state, inst.InstanceID, model.RolePatient, "")
	require.NotNil(t, rej)
	assert.Equal(t, CodeNotYourTurn, rej.Code)
	assert.NotEmpty(t, rej.Suggestions)
	assert.Equal(t, before, state.Clone(), "validation never mutates")
}

func TestValidateFinishedMatch(t *testing.T) {
	v := NewValidator()
	state := fixture.State()
	inst := fixture.Give(state, model.RoleClinician, fixture.Card("exam", model.RoleClinician, model.CardAssessment, 1))[0]
	state.Status = model.StatusFinished

	rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "")
	require.NotNil(t, rej)
	assert.Equal(t, CodeNotYourTurn, rej.Code)
}

func TestValidateHandMembership(t *testing.T) {
	v := NewValidator()
	state := fixture.State()

	rej := v.Validate(state, "missing", model.RoleClinician, "")
	require.NotNil(t, rej)
	assert.Equal(t, CodeNotFound, rej.Code)

	var err error = rej
	got, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, got.Code)
}

func TestValidateResources(t *testing.T) {
	v := NewValidator()

	t.Run("affordable", func(t *testing.T) {
		state := fixture.State()
		inst := fixture.Give(state, model.RoleClinician, fixture.Card("exam", model.RoleClinician, model.CardAssessment, 10))[0]
		assert.Nil(t, v.Validate(state, inst.InstanceID, model.RoleClinician, ""))
	})

	t.Run("too expensive", func(t *testing.T) {
		state := fixture.State()
		inst := fixture.Give(state, model.RoleClinician, fixture.Card("scan", model.RoleClinician, model.CardAssessment, 11))[0]
		rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "")
		require.NotNil(t, rej)
		assert.Equal(t, CodeInsufficientResources, rej.Code)
		assert.Equal(t, "11", rej.Details["cost"])
	})

	t.Run("modifier pushes cost over budget", func(t *testing.T) {
		state := fixture.State()
		modifiers.Apply(state, fixture.DocumentationNightmare())
		inst := fixture.Give(state, model.RoleClinician, fixture.Card("exam", model.RoleClinician, model.CardAssessment, 10))[0]
		rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "")
		require.NotNil(t, rej)
		assert.Equal(t, CodeInsufficientResources, rej.Code)
	})

	t.Run("third treatment under insurance denied", func(t *testing.T) {
		state := fixture.State()
		state.Pool(model.RoleClinician).Set(resources.Energy, 15)
		modifiers.Apply(state, fixture.InsuranceDenied())
		inst := fixture.Give(state, model.RoleClinician, fixture.Card("rx", model.RoleClinician, model.CardTreatment, 0))[0]
		state.TreatmentPlays = 2

		rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "")
		require.NotNil(t, rej)
		assert.Equal(t, CodeInsufficientResources, rej.Code)
		assert.Contains(t, rej.Reason, "insufficient energy")
	})
}

func TestValidateOrderResourcesBeforeTarget(t *testing.T) {
	v := NewValidator()
	state := fixture.State()
	card := fixture.Card("reframe", model.RoleClinician, model.CardClinicalReasoning, 12)
	card.RequiresTarget = model.TargetClue
	inst := fixture.Give(state, model.RoleClinician, card)[0]

	rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "no-such-clue")
	require.NotNil(t, rej)
	assert.Equal(t, CodeInsufficientResources, rej.Code)

	state.Pool(model.RoleClinician).Set(resources.Energy, 15)
	rej = v.Validate(state, inst.InstanceID, model.RoleClinician, "no-such-clue")
	require.NotNil(t, rej)
	assert.Equal(t, CodeInvalidTarget, rej.Code)
	assert.Equal(t, []string{"reveal a clue before playing this card"}, rej.Suggestions)

	state.DiscoveredClues = append(state.DiscoveredClues, model.Clue{ID: "hx-1"})
	assert.Nil(t, v.Validate(state, inst.InstanceID, model.RoleClinician, "hx-1"))
}

func TestValidateTiming(t *testing.T) {
	v := NewValidator()

	t.Run("phase restriction", func(t *testing.T) {
		state := fixture.State()
		card := fixture.Card("dx", model.RoleClinician, model.CardClinicalReasoning, 1)
		card.PhaseRestrictions = []model.Phase{model.PhaseDiagnosis}
		inst := fixture.Give(state, model.RoleClinician, card)[0]

		rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "")
		require.NotNil(t, rej)
		assert.Equal(t, CodeWrongPhase, rej.Code)

		state.Phase = model.PhaseDiagnosis
		assert.Nil(t, v.Validate(state, inst.InstanceID, model.RoleClinician, ""))
	})

	t.Run("once per turn", func(t *testing.T) {
		state := fixture.State()
		card := fixture.Card("listen", model.RoleClinician, model.CardCommunication, 0)
		card.OncePerTurn = true
		insts := fixture.Give(state, model.RoleClinician, card, card)
		state.CardsPlayedThisTurn = []string{"listen"}

		rej := v.Validate(state, insts[1].InstanceID, model.RoleClinician, "")
		require.NotNil(t, rej)
		assert.Equal(t, CodeOncePerTurn, rej.Code)
	})

	t.Run("required clues", func(t *testing.T) {
		state := fixture.State()
		card := fixture.Card("synthesis", model.RoleClinician, model.CardClinicalReasoning, 1)
		card.RequiresClues = 2
		inst := fixture.Give(state, model.RoleClinician, card)[0]

		rej := v.Validate(state, inst.InstanceID, model.RoleClinician, "")
		require.NotNil(t, rej)
		assert.Equal(t, CodeRequiresClues, rej.Code)
	})
}

func TestValidateCounter(t *testing.T) {
	v := NewValidator()
	state := fixture.State()
	inst := fixture.Give(state, model.RolePatient, fixture.Card("stonewall", model.RolePatient, model.CardDeflection, 2))[0]
	state.PendingCounters = []model.CounterOpportunity{{
		ID: "opp-1", Role: model.RolePatient, InstanceID: inst.InstanceID, CardID: "stonewall",
	}}

	opp, got, rej := v.ValidateCounter(state, model.RolePatient, "opp-1")
	require.Nil(t, rej)
	assert.Equal(t, "opp-1", opp.ID)
	assert.Equal(t, inst.InstanceID, got.InstanceID)

	_, _, rej = v.ValidateCounter(state, model.RoleClinician, "opp-1")
	require.NotNil(t, rej)
	assert.Equal(t, CodeNotYourTurn, rej.Code)

	_, _, rej = v.ValidateCounter(state, model.RolePatient, "opp-2")
	require.NotNil(t, rej)
	assert.Equal(t, CodeNotFound, rej.Code)

	state.Pool(model.RolePatient).Set(resources.Deflection, 1)
	_, _, rej = v.ValidateCounter(state, model.RolePatient, "opp-1")
	require.NotNil(t, rej)
	assert.Equal(t, CodeInsufficientResources, rej.Code)
}
