package realtime

import (
	"time"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
)

// ConflictWindow is how close two action timestamps must be for action
// priority, not arrival time, to decide between them.
const ConflictWindow = 100 * time.Millisecond

// ActionKind is an inbound action type.
type ActionKind string

const (
	ActionPlayCard ActionKind = "play_card"
	ActionEndTurn  ActionKind = "end_turn"
	ActionCounter  ActionKind = "counter"
)

var actionPriority = map[ActionKind]int{
	ActionCounter:  3,
	ActionPlayCard: 2,
	ActionEndTurn:  1,
}

// Action is one inbound action attempt.
type Action struct {
	MatchID       string     `json:"match_id"`
	Role          model.Role `json:"role"`
	Kind          ActionKind `json:"kind"`
	InstanceID    string     `json:"instance_id,omitempty"`
	TargetID      string     `json:"target_id,omitempty"`
	OpportunityID string     `json:"opportunity_id,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// ResolveConflict reports which of two near-simultaneous actions is
// considered first. Outside window the earlier timestamp wins; inside it a
// counter beats a play, which beats an end turn. Equal priority falls back to
// the earlier timestamp, then to a.
//
// The result is advisory: the match still applies actions one at a time in
// the order they reach its lock.
func ResolveConflict(a, b Action, window time.Duration) (first, second Action) {
	if Before(b, a, window) {
		return b, a
	}
	return a, b
}

// Before reports whether a is strictly considered ahead of b.
func Before(a, b Action, window time.Duration) bool {
	gap := a.Timestamp.Sub(b.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	if gap <= window {
		if pa, pb := actionPriority[a.Kind], actionPriority[b.Kind]; pa != pb {
			return pa > pb
		}
	}
	return a.Timestamp.Before(b.Timestamp)
}
