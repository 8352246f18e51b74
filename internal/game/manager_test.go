package game

import (
	"context"
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestManagerLifecycle(t *testing.T) {
	mgr := NewManager(config.DefaultGame(), testContent(), nil, zaptest.NewLogger(t))
	t.Cleanup(mgr.Close)

	a, err := mgr.Create(Options{ID: "b", ScenarioID: "chest_pain", Difficulty: model.DifficultyBeginner})
	require.NoError(t, err)
	_, err = mgr.Create(Options{ID: "a", ScenarioID: "chest_pain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, mgr.List())

	got, err := mgr.Get("b")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = mgr.Create(Options{ID: "b", ScenarioID: "chest_pain"})
	assert.Error(t, err)

	require.NoError(t, mgr.Remove("b"))
	_, err = mgr.Get("b")
	assert.ErrorIs(t, err, ErrMatchNotFound)
	assert.ErrorIs(t, mgr.Remove("b"), ErrMatchNotFound)
}

func TestManagerReleasesFailedIDs(t *testing.T) {
	mgr := NewManager(config.DefaultGame(), testContent(), nil, nil)

	_, err := mgr.Create(Options{ID: "x", ScenarioID: "unknown"})
	assert.ErrorIs(t, err, ErrUnknownScenario)
	assert.Empty(t, mgr.List())

	m, err := mgr.Create(Options{ID: "x", ScenarioID: "chest_pain"})
	require.NoError(t, err)
	assert.Equal(t, "x", m.ID())
}

func TestManagerGeneratesIDs(t *testing.T) {
	mgr := NewManager(config.DefaultGame(), testContent(), nil, nil)
	m, err := mgr.Create(Options{ScenarioID: "chest_pain"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID())
	_, err = mgr.Get(m.ID())
	assert.NoError(t, err)
}

func TestManagerAddSink(t *testing.T) {
	var first, second int
	mgr := NewManager(config.DefaultGame(), testContent(), SinkFunc(func(context.Context, Snapshot) error {
		first++
		return nil
	}), nil)
	mgr.AddSink(SinkFunc(func(context.Context, Snapshot) error {
		second++
		return nil
	}))

	_, err := mgr.Create(Options{ScenarioID: "chest_pain"})
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}
