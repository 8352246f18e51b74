// Package nakama runs encounters as Nakama authoritative matches. Each
// Nakama match owns one game.Match; seats map users onto roles and the
// computer opponent plays on the match tick.
package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/clinicsim/clinic-server-go/internal/realtime"
	"github.com/heroiclabs/nakama-common/runtime"
)

// MatchState is the runtime state Nakama threads through the handler.
type MatchState struct {
	Match     *game.Match
	Seats     map[model.Role]string       // role -> user id
	Requested map[string]model.Role       // user id -> role asked for at join
	Presences map[string]runtime.Presence // user id -> presence
	Opponent  model.Role
	// OpponentAt is the tick the opponent acts on; zero when not waiting.
	OpponentAt int64
}

// RoleOf returns the seat of a user.
func (s *MatchState) RoleOf(userID string) (model.Role, bool) {
	for role, id := range s.Seats {
		if id == userID {
			return role, true
		}
	}
	return "", false
}

func (s *MatchState) openRoles() []model.Role {
	var out []model.Role
	for _, role := range model.Roles {
		if role == s.Opponent {
			continue
		}
		if s.Seats[role] == "" {
			out = append(out, role)
		}
	}
	return out
}

type matchLabel struct {
	Scenario   string `json:"scenario"`
	Difficulty string `json:"difficulty"`
	Open       int    `json:"open"`
	Status     string `json:"status"`
}

type actionPayload struct {
	InstanceID    string `json:"instance_id,omitempty"`
	TargetID      string `json:"target_id,omitempty"`
	OpportunityID string `json:"opportunity_id,omitempty"`
}

// Handler implements runtime.Match.
type Handler struct {
	cfg     config.GameConfig
	content game.Content
}

// NewHandler creates a match handler drawing from content.
func NewHandler(cfg config.GameConfig, content game.Content) *Handler {
	return &Handler{cfg: cfg, content: content}
}

// MatchInit creates the encounter. Params: scenario_id, difficulty, seed,
// opponent_role.
func (h *Handler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	opts := game.Options{}
	if id, ok := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string); ok {
		opts.ID = id
	}
	opts.ScenarioID, _ = params["scenario_id"].(string)
	if d, ok := params["difficulty"].(string); ok {
		opts.Difficulty = model.Difficulty(d)
	}
	switch seed := params["seed"].(type) {
	case float64:
		opts.Seed = uint64(seed)
	case int64:
		opts.Seed = uint64(seed)
	case int:
		opts.Seed = uint64(seed)
	}
	if r, ok := params["opponent_role"].(string); ok && r != "" {
		opts.OpponentRole = model.Role(r)
	}

	match, err := game.NewMatch(h.cfg, h.content, opts)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}
	state := &MatchState{
		Match:     match,
		Seats:     make(map[model.Role]string, len(model.Roles)),
		Requested: make(map[string]model.Role),
		Presences: make(map[string]runtime.Presence),
		Opponent:  match.OpponentRole(),
	}
	return state, tickRate, h.label(state)
}

// MatchJoinAttempt admits a user when a human seat is free. Metadata "role"
// asks for a specific seat.
func (h *Handler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	s, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	if _, seated := s.RoleOf(presence.GetUserId()); seated {
		return s, true, ""
	}
	open := s.openRoles()
	if len(open) == 0 {
		return s, false, "match full"
	}
	want := model.Role(metadata["role"])
	if want == "" {
		s.Requested[presence.GetUserId()] = open[0]
		return s, true, ""
	}
	for _, role := range open {
		if role == want {
			s.Requested[presence.GetUserId()] = want
			return s, true, ""
		}
	}
	return s, false, fmt.Sprintf("seat %s is not available", want)
}

// MatchJoin seats the joined users and sends each their view of the match.
func (h *Handler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	s, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}
	for _, p := range presences {
		userID := p.GetUserId()
		s.Presences[userID] = p
		if _, seated := s.RoleOf(userID); seated {
			continue
		}
		role, ok := s.Requested[userID]
		delete(s.Requested, userID)
		if !ok || s.Seats[role] != "" {
			open := s.openRoles()
			if len(open) == 0 {
				logger.Warn("MatchJoin: user %s joined without a free seat", userID)
				continue
			}
			role = open[0]
		}
		s.Seats[role] = userID
		logger.Debug("MatchJoin: user %s seated as %s", userID, role)
	}
	h.updateLabel(s, dispatcher, logger)
	h.broadcastState(s, dispatcher, logger)
	return s
}

// MatchLeave frees seats and ends the match once no human is left.
func (h *Handler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	s, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}
	for _, p := range presences {
		userID := p.GetUserId()
		delete(s.Presences, userID)
		if role, seated := s.RoleOf(userID); seated {
			delete(s.Seats, role)
			logger.Debug("MatchLeave: user %s left the %s seat", userID, role)
		}
	}
	if len(s.Seats) == 0 {
		logger.Info("MatchLeave: no players left, terminating %s", s.Match.ID())
		s.Match.Close()
		return nil
	}
	h.updateLabel(s, dispatcher, logger)
	return s
}

// MatchLoop applies the tick's actions in conflict order, then lets the
// computer opponent act once its thinking delay has passed.
func (h *Handler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	s, ok := state.(*MatchState)
	if !ok {
		return state
	}

	actions := make([]realtime.Action, 0, len(messages))
	senders := make(map[int]runtime.Presence, len(messages))
	for _, msg := range messages {
		action, err := h.decode(s, msg)
		if err != nil {
			h.send(dispatcher, logger, OpError, map[string]string{"error": err.Error()}, msg)
			continue
		}
		senders[len(actions)] = msg
		actions = append(actions, action)
	}
	order := make([]int, len(actions))
	for i := range order {
		order[i] = i
	}
	sortByConflict(actions, order)

	changed := false
	for i, action := range actions {
		err := h.apply(ctx, s, action)
		if err == nil {
			changed = true
			continue
		}
		sender := senders[order[i]]
		if rej, ok := rules.AsRejection(err); ok {
			h.send(dispatcher, logger, OpRejection, realtime.RejectionPayload{
				Code:        rej.Code,
				Reason:      rej.Reason,
				Suggestions: rej.Suggestions,
			}, sender)
			continue
		}
		logger.Warn("MatchLoop: action %s by %s failed: %v", action.Kind, action.Role, err)
		h.send(dispatcher, logger, OpError, map[string]string{"error": err.Error()}, sender)
	}

	if h.opponentTurn(ctx, s, tick, logger) {
		changed = true
	}
	if changed {
		h.updateLabel(s, dispatcher, logger)
		h.broadcastState(s, dispatcher, logger)
	}
	return s
}

// MatchTerminate stops the opponent timer.
func (h *Handler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	if s, ok := state.(*MatchState); ok {
		s.Match.Close()
	}
	return state
}

// MatchSignal answers "state" with the spectator view of the match.
func (h *Handler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	s, ok := state.(*MatchState)
	if !ok || data != "state" {
		return state, ""
	}
	payload, err := json.Marshal(realtime.BuildBroadcast(s.Match.State(), ""))
	if err != nil {
		return s, ""
	}
	return s, string(payload)
}

func (h *Handler) decode(s *MatchState, msg runtime.MatchData) (realtime.Action, error) {
	role, ok := s.RoleOf(msg.GetUserId())
	if !ok {
		return realtime.Action{}, errors.New("spectators cannot act")
	}
	action := realtime.Action{
		MatchID:   s.Match.ID(),
		Role:      role,
		Timestamp: time.UnixMilli(msg.GetReceiveTime()),
	}
	switch msg.GetOpCode() {
	case OpPlayCard:
		action.Kind = realtime.ActionPlayCard
	case OpEndTurn:
		action.Kind = realtime.ActionEndTurn
	case OpCounter:
		action.Kind = realtime.ActionCounter
	default:
		return action, fmt.Errorf("unknown op code %d", msg.GetOpCode())
	}
	if data := msg.GetData(); len(data) > 0 {
		var p actionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return action, fmt.Errorf("decode %s: %w", action.Kind, err)
		}
		action.InstanceID, action.TargetID, action.OpportunityID = p.InstanceID, p.TargetID, p.OpportunityID
	}
	return action, nil
}

func (h *Handler) apply(ctx context.Context, s *MatchState, action realtime.Action) error {
	var err error
	switch action.Kind {
	case realtime.ActionPlayCard:
		_, err = s.Match.PlayCard(ctx, action.Role, action.InstanceID, action.TargetID)
	case realtime.ActionEndTurn:
		_, err = s.Match.EndTurn(ctx, action.Role)
	case realtime.ActionCounter:
		_, err = s.Match.Counter(ctx, action.Role, action.OpportunityID)
	}
	return err
}

// opponentTurn plays the opponent's turn when it is due and reports whether
// the match changed.
func (h *Handler) opponentTurn(ctx context.Context, s *MatchState, tick int64, logger runtime.Logger) bool {
	current := s.Match.State()
	if s.Opponent == "" || current.Finished() || current.ActiveRole != s.Opponent {
		s.OpponentAt = 0
		return false
	}
	if s.OpponentAt == 0 {
		delay := int64(h.cfg.AI.ThinkingDelay.Seconds() * tickRate)
		s.OpponentAt = tick + max(1, delay)
		return false
	}
	if tick < s.OpponentAt {
		return false
	}
	s.OpponentAt = 0
	if _, err := s.Match.RunOpponentTurn(ctx); err != nil {
		logger.Error("opponent turn failed in %s: %v", s.Match.ID(), err)
		return false
	}
	return true
}

func (h *Handler) broadcastState(s *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	current := s.Match.State()
	for userID, presence := range s.Presences {
		role, _ := s.RoleOf(userID)
		h.send(dispatcher, logger, OpState, realtime.BuildBroadcast(current, role), presence)
	}
}

func (h *Handler) send(dispatcher runtime.MatchDispatcher, logger runtime.Logger, op int64, payload any, to runtime.Presence) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("encode op %d: %v", op, err)
		return
	}
	var presences []runtime.Presence
	if to != nil {
		presences = []runtime.Presence{to}
	}
	if err := dispatcher.BroadcastMessage(op, data, presences, nil, true); err != nil {
		logger.Warn("broadcast op %d: %v", op, err)
	}
}

func (h *Handler) label(s *MatchState) string {
	current := s.Match.State()
	data, _ := json.Marshal(matchLabel{
		Scenario:   current.ScenarioID,
		Difficulty: string(current.Difficulty),
		Open:       len(s.openRoles()),
		Status:     string(current.Status),
	})
	return string(data)
}

func (h *Handler) updateLabel(s *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if err := dispatcher.MatchLabelUpdate(h.label(s)); err != nil {
		logger.Warn("label update: %v", err)
	}
}

// sortByConflict orders actions by conflict priority and keeps order[i]
// pointing at each action's original index.
func sortByConflict(actions []realtime.Action, order []int) {
	type indexed struct {
		action realtime.Action
		index  int
	}
	pairs := make([]indexed, len(actions))
	for i := range actions {
		pairs[i] = indexed{actions[i], order[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return realtime.Before(pairs[i].action, pairs[j].action, realtime.ConflictWindow)
	})
	for i, p := range pairs {
		actions[i], order[i] = p.action, p.index
	}
}
