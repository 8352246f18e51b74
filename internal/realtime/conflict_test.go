package realtime

import (
	"sort"
	"testing"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/stretchr/testify/assert"
)

func TestResolveConflict(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(kind ActionKind, role model.Role, offset time.Duration) Action {
		return Action{Kind: kind, Role: role, Timestamp: base.Add(offset)}
	}

	tests := []struct {
		name  string
		a, b  Action
		first ActionKind
	}{
		{
			name:  "earlier wins outside the window",
			a:     at(ActionEndTurn, model.RoleClinician, 0),
			b:     at(ActionCounter, model.RolePatient, 250*time.Millisecond),
			first: ActionEndTurn,
		},
		{
			name:  "counter beats play inside the window",
			a:     at(ActionPlayCard, model.RoleClinician, 0),
			b:     at(ActionCounter, model.RolePatient, 60*time.Millisecond),
			first: ActionCounter,
		},
		{
			name:  "play beats end turn inside the window",
			a:     at(ActionEndTurn, model.RoleClinician, 0),
			b:     at(ActionPlayCard, model.RolePatient, 40*time.Millisecond),
			first: ActionPlayCard,
		},
		{
			name:  "window is inclusive",
			a:     at(ActionEndTurn, model.RoleClinician, 0),
			b:     at(ActionCounter, model.RolePatient, ConflictWindow),
			first: ActionCounter,
		},
		{
			name:  "equal priority falls back to time",
			a:     at(ActionPlayCard, model.RoleClinician, 30*time.Millisecond),
			b:     at(ActionPlayCard, model.RolePatient, 0),
			first: ActionPlayCard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := ResolveConflict(tt.a, tt.b, ConflictWindow)
			assert.Equal(t, tt.first, first.Kind)
			assert.NotEqual(t, first.Timestamp, second.Timestamp)

			// argument order never matters
			again, _ := ResolveConflict(tt.b, tt.a, ConflictWindow)
			assert.Equal(t, first, again)
		})
	}

	t.Run("equal priority picks the earlier role", func(t *testing.T) {
		first, _ := ResolveConflict(
			at(ActionPlayCard, model.RoleClinician, 30*time.Millisecond),
			at(ActionPlayCard, model.RolePatient, 0),
			ConflictWindow,
		)
		assert.Equal(t, model.RolePatient, first.Role)
	})
}

func TestBeforeSortsABatch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	actions := []Action{
		{Kind: ActionEndTurn, Role: model.RoleClinician, Timestamp: base},
		{Kind: ActionPlayCard, Role: model.RoleClinician, Timestamp: base.Add(20 * time.Millisecond)},
		{Kind: ActionCounter, Role: model.RolePatient, Timestamp: base.Add(50 * time.Millisecond)},
		{Kind: ActionPlayCard, Role: model.RolePatient, Timestamp: base.Add(time.Second)},
	}
	sort.SliceStable(actions, func(i, j int) bool { return Before(actions[i], actions[j], ConflictWindow) })

	kinds := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []ActionKind{ActionCounter, ActionPlayCard, ActionEndTurn, ActionPlayCard}, kinds)
	assert.Equal(t, model.RolePatient, actions[3].Role)
}
