// Package realtime pushes match state to observers over websockets and turns
// their inbound action messages into match calls.
package realtime

import (
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// LogWindow is the number of most recent log entries carried by a broadcast.
const LogWindow = 10

// Broadcast is the reduced state sent to one observer. Viewer is the role the
// payload was built for; an empty viewer is a spectator and sees no hand.
type Broadcast struct {
	MatchID    string                                `json:"match_id"`
	Version    int64                                 `json:"version"`
	Viewer     model.Role                            `json:"viewer,omitempty"`
	Turn       int                                   `json:"turn"`
	MaxTurns   int                                   `json:"max_turns"`
	ActiveRole model.Role                            `json:"active_role"`
	Phase      model.Phase                           `json:"phase"`
	Status     model.Status                          `json:"status"`
	Resources  map[model.Role]map[resources.Name]int `json:"resources"`
	Hands      map[model.Role]HandView               `json:"hands"`
	Clues      []model.Clue                          `json:"clues"`
	Modifiers  []ModifierView                        `json:"modifiers,omitempty"`
	Counters   []model.CounterOpportunity            `json:"counters,omitempty"`
	Progress   model.Progress                        `json:"progress"`
	Result     *model.Result                         `json:"result,omitempty"`
	Log        []model.LogEntry                      `json:"log"`
}

// HandView is a hand as one observer may see it. Cards is only filled for
// the viewer's own hand; other hands carry the count and instance ids.
type HandView struct {
	Count       int                  `json:"count"`
	InstanceIDs []string             `json:"instance_ids,omitempty"`
	Cards       []model.CardInstance `json:"cards,omitempty"`
}

// ModifierView is the public face of an active modifier.
type ModifierView struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

// BuildBroadcast reduces state for viewer. Counter opportunities are only
// shown to the role they were offered to.
func BuildBroadcast(state *model.MatchState, viewer model.Role) Broadcast {
	b := Broadcast{
		MatchID:    state.MatchID,
		Version:    state.Version,
		Viewer:     viewer,
		Turn:       state.Turn,
		MaxTurns:   state.MaxTurns,
		ActiveRole: state.ActiveRole,
		Phase:      state.Phase,
		Status:     state.Status,
		Resources:  make(map[model.Role]map[resources.Name]int, len(model.Roles)),
		Hands:      make(map[model.Role]HandView, len(model.Roles)),
		Clues:      append([]model.Clue(nil), state.DiscoveredClues...),
		Progress:   state.Progress,
		Result:     state.Result,
	}

	for _, role := range model.Roles {
		if pool := state.Pool(role); pool != nil {
			b.Resources[role] = pool.Snapshot()
		}
		hand := state.Hands[role]
		view := HandView{Count: len(hand)}
		if role == viewer {
			view.Cards = append([]model.CardInstance(nil), hand...)
		} else {
			view.InstanceIDs = make([]string, 0, len(hand))
			for _, inst := range hand {
				view.InstanceIDs = append(view.InstanceIDs, inst.InstanceID)
			}
		}
		b.Hands[role] = view
	}

	for _, mod := range state.Modifiers {
		b.Modifiers = append(b.Modifiers, ModifierView{
			ID:       mod.ID,
			Key:      mod.Key,
			Name:     mod.Name,
			Duration: mod.Duration.String(),
		})
	}
	for _, opp := range state.PendingCounters {
		if opp.Role == viewer {
			b.Counters = append(b.Counters, opp)
		}
	}

	start := max(0, len(state.Log)-LogWindow)
	b.Log = append([]model.LogEntry(nil), state.Log[start:]...)
	return b
}
