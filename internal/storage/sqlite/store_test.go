package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/fixture"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveVersions(t *testing.T, store *Store, matchID string, versions int) {
	t.Helper()
	state := fixture.State()
	state.MatchID = matchID
	for v := 1; v <= versions; v++ {
		next := state.Clone()
		next.Version = int64(v)
		next.Turn = v
		require.NoError(t, store.SaveSnapshot(context.Background(), game.NewSnapshot(next)))
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.db")
	first, err := Open(path)
	require.NoError(t, err)
	saveVersions(t, first, "m1", 1)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	snap, err := second.Latest(context.Background(), "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Version)
}

func TestLatestAndHistory(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	saveVersions(t, store, "m1", 4)

	latest, err := store.Latest(ctx, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, latest.Version)
	assert.Equal(t, 4, latest.State.Turn)
	require.NoError(t, latest.Verify())

	replay, err := store.History(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 4, replay.Size())
	first, ok := replay.At(0)
	require.True(t, ok)
	assert.EqualValues(t, 1, first.Version)
}

func TestSaveIgnoresDuplicateVersion(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	saveVersions(t, store, "m1", 2)

	dup := fixture.State()
	dup.MatchID = "m1"
	dup.Version = 2
	dup.Turn = 9
	require.NoError(t, store.SaveSnapshot(ctx, game.NewSnapshot(dup)))

	latest, err := store.Latest(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.State.Turn)
}

func TestNotFound(t *testing.T) {
	store := openTempStore(t)
	_, err := store.Latest(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.History(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatchesAndDelete(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	saveVersions(t, store, "m1", 2)
	saveVersions(t, store, "m2", 3)

	matches, err := store.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	byID := map[string]MatchSummary{}
	for _, m := range matches {
		byID[m.MatchID] = m
	}
	assert.EqualValues(t, 2, byID["m1"].Version)
	assert.EqualValues(t, 3, byID["m2"].Version)
	assert.Equal(t, string(model.StatusInProgress), byID["m2"].Status)

	require.NoError(t, store.Delete(ctx, "m1"))
	matches, err = store.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m2", matches[0].MatchID)
}

func TestCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.SaveSnapshot(ctx, game.NewSnapshot(fixture.State())), context.Canceled)
}
