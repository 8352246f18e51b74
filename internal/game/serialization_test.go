package game

import (
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/game/fixture"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumIsStructural(t *testing.T) {
	state := fixture.State()
	base := Checksum(state)

	t.Run("stable across copies and map order", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			assert.Equal(t, base, Checksum(state.Clone()))
		}
	})

	t.Run("ignores the log", func(t *testing.T) {
		s := state.Clone()
		s.AppendLog(model.LogEntry{Action: model.ActionPass})
		assert.Equal(t, base, Checksum(s))
	})

	changes := map[string]func(*model.MatchState){
		"turn":        func(s *model.MatchState) { s.Turn++ },
		"active role": func(s *model.MatchState) { s.ActiveRole = model.RolePatient },
		"resource":    func(s *model.MatchState) { s.Pool(model.RolePatient).Add(resources.Emotional, 1) },
		"clues":       func(s *model.MatchState) { s.DiscoveredClues = append(s.DiscoveredClues, model.Clue{ID: "hx-1"}) },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			s := state.Clone()
			change(s)
			assert.NotEqual(t, base, Checksum(s))
		})
	}
}

func TestSnapshotGobRoundTrip(t *testing.T) {
	state := fixture.State()
	state.Version = 7
	fixture.Give(state, model.RoleClinician, fixture.Card("exam", model.RoleClinician, model.CardAssessment, 2))
	state.AppendLog(model.LogEntry{Action: model.ActionSetup, Payload: map[string]string{"scenario": "chest_pain"}})
	snap := NewSnapshot(state)

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snap.Checksum, decoded.Checksum)
	assert.Equal(t, int64(7), decoded.Version)
	assert.Equal(t, "match-1", decoded.MatchID)
	assert.Equal(t, 10, decoded.State.Pool(model.RoleClinician).Get(resources.Energy))
	require.Len(t, decoded.State.Hands[model.RoleClinician], 1)
	assert.Equal(t, "exam", decoded.State.Hands[model.RoleClinician][0].Definition.ID)
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := NewSnapshot(fixture.State())

	data, err := MarshalSnapshotJSON(snap)
	require.NoError(t, err)
	decoded, err := UnmarshalSnapshotJSON(data)
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, decoded.Checksum)
}

func TestSnapshotVerifyDetectsTampering(t *testing.T) {
	snap := NewSnapshot(fixture.State())
	snap.State.Pool(model.RoleClinician).Set(resources.Energy, 15)
	assert.ErrorIs(t, snap.Verify(), ErrChecksumMismatch)

	assert.Error(t, Snapshot{MatchID: "m"}.Verify())
}
