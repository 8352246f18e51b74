package catalog

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTestdata(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	card, err := c.Card("history_exam")
	require.NoError(t, err)
	assert.Equal(t, model.RoleClinician, card.Role)
	assert.Equal(t, model.CardAssessment, card.Type)
	assert.Equal(t, 2, card.Costs[resources.Energy])
	assert.Equal(t, "history", card.ClueCategory)

	listen, err := c.Card("listen")
	require.NoError(t, err)
	require.NotNil(t, listen.Lingering)
	assert.Equal(t, []model.EffectKind{model.EffectEmotionalStateChange}, listen.Lingering.Triggers)
	assert.Equal(t, model.EmitSpec{Role: model.RolePatient, Resource: resources.Cooperation, Delta: 1}, listen.Lingering.Emit)

	deflect, err := c.Card("deflect")
	require.NoError(t, err)
	assert.Equal(t, []model.EffectKind{model.EffectRevealClues}, deflect.Counters)

	_, err = c.Card("nope")
	assert.ErrorIs(t, err, ErrUnknownCard)

	assert.Len(t, c.CluePool("history"), 2)
	assert.Empty(t, c.CluePool("imaging"))
}

func TestModifiersDecode(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	doc, ok := c.Modifier("documentation_nightmare")
	require.True(t, ok)
	assert.True(t, doc.Duration.Permanent)
	assert.Equal(t, model.DifficultyIntermediate, doc.Tier)
	require.Len(t, doc.Effects, 1)
	assert.Equal(t, model.ModifierCardCost, doc.Effects[0].Kind)
	assert.Equal(t, model.CardAnyType, doc.Effects[0].CardType)

	eq, ok := c.Modifier("equipment_failure")
	require.True(t, ok)
	assert.Equal(t, model.Turns(3), eq.Duration)
	assert.Equal(t, 0.25, eq.Effects[0].Magnitude)

	keys := []string{}
	for _, m := range c.Modifiers() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"documentation_nightmare", "equipment_failure"}, keys)
}

func TestRolePool(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	clinician := c.RolePool(model.RoleClinician)
	require.Len(t, clinician, 3)
	for _, card := range clinician {
		assert.Equal(t, "history_exam", card.ID)
	}

	patient := c.RolePool(model.RolePatient)
	require.Len(t, patient, 1, "roles without a deck list play every card once")
	assert.Equal(t, "deflect", patient[0].ID)
}

func TestScenarios(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	s, ok := c.Scenario("chest_pain")
	require.True(t, ok)
	assert.Equal(t, []string{"history", "labs"}, s.ClueCategories)
	assert.Equal(t, []string{"documentation_nightmare"}, s.ModifiersFor(model.DifficultyIntermediate))
	assert.Empty(t, s.ModifiersFor(model.DifficultyBeginner))
	assert.Len(t, c.Scenarios(), 1)
}

func TestParseRejectsInvalidContent(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown card type",
			yaml: "cards:\n  - {id: a, name: A, role: clinician, type: surgery}\n",
			want: "unknown card type",
		},
		{
			name: "unknown counter kind",
			yaml: "cards:\n  - {id: a, name: A, role: patient, type: deflection, counters: [teleport]}\n",
			want: "unknown effect kind",
		},
		{
			name: "duplicate card",
			yaml: "cards:\n  - {id: a, name: A, role: clinician, type: assessment}\n  - {id: a, name: B, role: clinician, type: assessment}\n",
			want: "duplicate id",
		},
		{
			name: "unknown clue category",
			yaml: "cards:\n  - {id: a, name: A, role: clinician, type: assessment, clue_category: imaging}\n",
			want: "unknown clue category",
		},
		{
			name: "unknown granted modifier",
			yaml: "cards:\n  - {id: a, name: A, role: patient, type: complexity, grants_modifier: chaos}\n",
			want: "grants unknown modifier",
		},
		{
			name: "unknown modifier kind",
			yaml: "modifiers:\n  - {key: m, name: M, effects: [{kind: gravity, magnitude: 1}]}\n",
			want: "unknown modifier kind",
		},
		{
			name: "resource shift without role",
			yaml: "modifiers:\n  - {key: m, name: M, effects: [{kind: resource_shift, resource: emotional, magnitude: 1}]}\n",
			want: "needs role and resource",
		},
		{
			name: "scenario with unknown modifier",
			yaml: "clues:\n  history: [{id: h, reliability: 0.5}]\nscenarios:\n  - {id: s, clue_categories: [history], modifiers: {advanced: [chaos]}}\n",
			want: "unknown modifier",
		},
		{
			name: "deck card of the other role",
			yaml: "cards:\n  - {id: a, name: A, role: patient, type: deflection}\ndecks:\n  clinician: [{card: a, count: 1}]\n",
			want: "belongs to the patient",
		},
		{
			name: "deck card missing",
			yaml: "decks:\n  clinician: [{card: ghost, count: 1}]\n",
			want: "unknown card",
		},
		{
			name: "duplicate clue",
			yaml: "clues:\n  history: [{id: h, reliability: 0.5}]\n  labs: [{id: h, reliability: 0.5}]\n",
			want: "duplicated",
		},
		{
			name: "malformed yaml",
			yaml: "cards: [",
			want: "parse catalog YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShippedCatalogLoads(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path := filepath.Join(filepath.Dir(file), "..", "..", "data", "catalog.yaml")

	c, err := Load(path)
	require.NoError(t, err)
	for _, s := range c.Scenarios() {
		for _, category := range s.ClueCategories {
			assert.NotEmpty(t, c.CluePool(category), "scenario %s category %s", s.ID, category)
		}
	}
	assert.GreaterOrEqual(t, len(c.RolePool(model.RoleClinician)), 7)
	assert.GreaterOrEqual(t, len(c.RolePool(model.RolePatient)), 7)
}

func TestWithCards(t *testing.T) {
	c, err := Load("testdata/catalog.yaml")
	require.NoError(t, err)

	replacement := []model.CardDefinition{{
		ID:    "review_chart",
		Name:  "Review Chart",
		Role:  model.RoleClinician,
		Type:  model.CardAssessment,
		Costs: map[resources.Name]int{resources.Energy: 1},
	}}
	swapped, err := c.WithCards(replacement, map[model.Role][]DeckEntry{
		model.RoleClinician: {{Card: "review_chart", Count: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, swapped.RolePool(model.RoleClinician), 2)
	assert.Empty(t, swapped.RolePool(model.RolePatient))
	_, ok := swapped.Scenario("chest_pain")
	assert.True(t, ok)
	assert.Len(t, c.Decks()[model.RoleClinician], 1, "original untouched")

	_, err = c.WithCards(replacement, map[model.Role][]DeckEntry{
		model.RoleClinician: {{Card: "history_exam", Count: 1}},
	})
	assert.ErrorIs(t, err, ErrUnknownCard)
}
