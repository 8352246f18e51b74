// Package game runs clinical encounter matches. A Match owns one MatchState
// and serializes every mutation behind its lock; the Manager indexes matches
// by id.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/ai"
	"github.com/clinicsim/clinic-server-go/internal/game/effects"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/clinicsim/clinic-server-go/internal/game/victory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrMatchNotFound is returned when a match id is unknown.
	ErrMatchNotFound = errors.New("match not found")
	// ErrUnknownScenario is returned when a match names a scenario the catalog lacks.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrNoOpponent is returned when the match has no computer-controlled role.
	ErrNoOpponent = errors.New("match has no computer opponent")
)

// Content is the read-only card content a match draws from.
type Content interface {
	effects.Content
	rules.DeckSource
	Scenario(id string) (model.Scenario, bool)
}

// Options configure a new match.
type Options struct {
	ID         string
	ScenarioID string
	Difficulty model.Difficulty
	// Seed drives every random choice of the match. Zero picks a random seed.
	Seed uint64
	// OpponentRole is played by the decision engine. Empty means both roles are human.
	OpponentRole model.Role
	// AutoOpponent schedules the opponent's turn after the thinking delay
	// whenever a human ends their turn.
	AutoOpponent bool
	Sink         SnapshotSink
	Logger       *zap.Logger
}

// Outcome is what an accepted action returns to the caller.
type Outcome struct {
	State        *model.MatchState
	Interactions effects.Interactions
	Progress     model.Progress
}

// Match is one running encounter.
type Match struct {
	mu    sync.Mutex
	id    string
	state *model.MatchState

	cfg       config.GameConfig
	validator *rules.Validator
	engine    *effects.Engine
	mutator   *effects.Mutator
	turns     *rules.TurnMachine
	evaluator *victory.Evaluator
	decider   *ai.DecisionEngine

	opponent     model.Role
	autoOpponent bool
	pending      *time.Timer
	last         effects.Interactions

	sink   SnapshotSink
	logger *zap.Logger
}

// NewMatch sets up a match from configuration and content.
func NewMatch(cfg config.GameConfig, content Content, opts Options) (*Match, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Difficulty == "" {
		opts.Difficulty = model.Difficulty(cfg.DefaultDifficulty)
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	if opts.OpponentRole != "" && !opts.OpponentRole.Valid() {
		return nil, fmt.Errorf("invalid opponent role %q", opts.OpponentRole)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	state, err := newState(cfg, content, opts, rng)
	if err != nil {
		return nil, fmt.Errorf("set up match %s: %w", opts.ID, err)
	}

	evaluator := victory.NewEvaluator(cfg)
	evaluator.Update(state)
	state.Version = 1

	m := &Match{
		id:           opts.ID,
		state:        state,
		cfg:          cfg,
		validator:    rules.NewValidator(),
		engine:       effects.NewEngine(cfg, content, rng),
		mutator:      effects.NewMutator(cfg, content),
		turns:        rules.NewTurnMachine(cfg, content, evaluator, rng),
		evaluator:    evaluator,
		decider:      ai.NewDecisionEngine(cfg.AI, rng),
		opponent:     opts.OpponentRole,
		autoOpponent: opts.AutoOpponent,
		sink:         opts.Sink,
		logger:       logger.With(zap.String("match_id", opts.ID)),
	}

	m.logger.Info("match created",
		zap.String("scenario", state.ScenarioID),
		zap.String("difficulty", string(state.Difficulty)),
		zap.Uint64("seed", opts.Seed),
		zap.Int("max_turns", state.MaxTurns),
	)
	m.publish(context.Background(), state)
	return m, nil
}

// ID returns the match id.
func (m *Match) ID() string {
	return m.id
}

// OpponentRole returns the computer-controlled role, or "" when there is none.
func (m *Match) OpponentRole() model.Role {
	return m.opponent
}

// State returns a copy of the current state.
func (m *Match) State() *model.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Snapshot returns the current state as a persistence snapshot.
func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewSnapshot(m.state.Clone())
}

// LastInteractions returns the interactions of the most recent card play.
func (m *Match) LastInteractions() effects.Interactions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// PlayCard plays a card from role's hand. A rejected play returns a
// *rules.Rejection and leaves the state untouched.
func (m *Match) PlayCard(ctx context.Context, role model.Role, instanceID, targetID string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playLocked(ctx, role, instanceID, targetID)
}

func (m *Match) playLocked(ctx context.Context, role model.Role, instanceID, targetID string) (Outcome, error) {
	current := m.state
	if rej := m.validator.Validate(current, instanceID, role, targetID); rej != nil {
		m.logger.Debug("play rejected",
			zap.String("role", string(role)),
			zap.String("instance_id", instanceID),
			zap.String("code", string(rej.Code)),
			zap.String("reason", rej.Reason),
		)
		return Outcome{}, rej
	}
	inst := current.Hands[role][model.FindInstance(current.Hands[role], instanceID)]

	inter, err := m.engine.ComputeInteractions(current, inst, role, targetID)
	if err != nil {
		m.logger.Error("compute interactions", zap.String("card_id", inst.Definition.ID), zap.Error(err))
		return Outcome{}, err
	}

	next := current.Clone()
	next.PendingCounters = nil
	if next, err = m.mutator.ApplyCardEffects(next, inter, inst, role); err != nil {
		return Outcome{}, fmt.Errorf("apply %s: %w", inst.Definition.ID, err)
	}
	if next, err = m.mutator.ApplyChainedEffects(next, inter.Triggered); err != nil {
		return Outcome{}, fmt.Errorf("apply chained effects of %s: %w", inst.Definition.ID, err)
	}
	next.PendingCounters = inter.Counters
	m.evaluator.Update(next)

	m.last = inter
	m.commit(ctx, next)
	m.logger.Debug("card played",
		zap.String("role", string(role)),
		zap.String("card_id", inst.Definition.ID),
		zap.Int("primary", len(inter.Primary)),
		zap.Int("triggered", len(inter.Triggered)),
		zap.Int("counters", len(inter.Counters)),
		zap.Bool("assessment_failed", inter.AssessmentFailed),
	)
	return m.outcome(inter), nil
}

// EndTurn ends role's turn. When the next role is the computer opponent and
// auto play is on, its turn is scheduled.
func (m *Match) EndTurn(ctx context.Context, role model.Role) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.endTurnLocked(ctx, role)
	if err != nil {
		return out, err
	}
	if m.autoOpponent && m.opponent != "" && m.state.ActiveRole == m.opponent && !m.state.Finished() {
		m.scheduleLocked(m.cfg.AI.ThinkingDelay)
	}
	return out, nil
}

func (m *Match) endTurnLocked(ctx context.Context, role model.Role) (Outcome, error) {
	if rej := m.validator.CheckTurn(m.state, role); rej != nil {
		return Outcome{}, rej
	}
	next := m.turns.EndTurn(m.state.Clone())
	m.commit(ctx, next)
	m.logger.Debug("turn ended",
		zap.String("role", string(role)),
		zap.String("next", string(next.ActiveRole)),
		zap.Int("turn", next.Turn),
		zap.String("phase", string(next.Phase)),
	)
	return m.outcome(effects.Interactions{}), nil
}

// Counter answers a pending counter opportunity out of turn.
func (m *Match) Counter(ctx context.Context, role model.Role, opportunityID string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, inst, rej := m.validator.ValidateCounter(m.state, role, opportunityID)
	if rej != nil {
		m.logger.Debug("counter rejected", zap.String("role", string(role)), zap.String("code", string(rej.Code)))
		return Outcome{}, rej
	}

	chained := m.engine.ComputeCounter(m.state, opp, inst, role)
	next, err := m.mutator.ApplyCounter(m.state.Clone(), opp, inst, chained)
	if err != nil {
		return Outcome{}, fmt.Errorf("apply counter %s: %w", inst.Definition.ID, err)
	}
	m.evaluator.Update(next)
	m.commit(ctx, next)
	m.logger.Debug("counter played", zap.String("role", string(role)), zap.String("card_id", inst.Definition.ID))

	inter := effects.Interactions{Triggered: chained}
	return m.outcome(inter), nil
}

// RunOpponentTurn lets the decision engine play the computer role's turn:
// it plays until it passes or hits the per-turn play cap, then ends the turn.
// The whole turn runs under the match lock.
func (m *Match) RunOpponentTurn(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil

	if m.opponent == "" {
		return Outcome{}, ErrNoOpponent
	}
	if rej := m.validator.CheckTurn(m.state, m.opponent); rej != nil {
		return Outcome{}, rej
	}

	var last Outcome
	for plays := 0; m.cfg.AI.MaxPlays <= 0 || plays < m.cfg.AI.MaxPlays; plays++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		decision := m.decider.Choose(m.state, m.opponent)
		if decision.Pass {
			m.logPass(ctx, decision.Reason)
			break
		}
		out, err := m.playLocked(ctx, m.opponent, decision.InstanceID, decision.TargetID)
		if err != nil {
			// the decision engine only proposes validated plays
			m.logger.Warn("opponent play failed", zap.String("card_id", decision.CardID), zap.Error(err))
			break
		}
		last = out
		if m.state.Finished() {
			return last, nil
		}
	}
	return m.endTurnLocked(ctx, m.opponent)
}

// ScheduleOpponentTurn runs the opponent's turn after delay. A turn already
// scheduled is left in place.
func (m *Match) ScheduleOpponentTurn(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleLocked(delay)
}

func (m *Match) scheduleLocked(delay time.Duration) {
	if m.pending != nil {
		return
	}
	m.pending = time.AfterFunc(delay, func() {
		if _, err := m.RunOpponentTurn(context.Background()); err != nil {
			if _, ok := rules.AsRejection(err); ok {
				m.logger.Debug("scheduled opponent turn skipped", zap.Error(err))
				return
			}
			m.logger.Warn("scheduled opponent turn failed", zap.Error(err))
		}
	})
}

// Close cancels a scheduled opponent turn.
func (m *Match) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

func (m *Match) logPass(ctx context.Context, reason string) {
	next := m.state.Clone()
	next.AppendLog(model.LogEntry{
		Actor:   m.opponent,
		Action:  model.ActionPass,
		Payload: map[string]string{"reason": reason},
	})
	m.commit(ctx, next)
}

// commit swaps in next as the authoritative state and publishes it.
func (m *Match) commit(ctx context.Context, next *model.MatchState) {
	next.Version = m.state.Version + 1
	m.state = next
	m.publish(ctx, next)
	if next.Finished() && next.Result != nil {
		m.logger.Info("match finished",
			zap.String("winner", string(next.Result.Winner)),
			zap.Bool("draw", next.Result.Draw),
			zap.String("reason", next.Result.Reason),
			zap.Float64("clinician_score", next.Result.ClinicianScore),
			zap.Float64("patient_score", next.Result.PatientScore),
		)
	}
}

func (m *Match) publish(ctx context.Context, state *model.MatchState) {
	if m.sink == nil {
		return
	}
	if err := m.sink.SaveSnapshot(ctx, NewSnapshot(state.Clone())); err != nil {
		m.logger.Warn("snapshot sink failed", zap.Int64("version", state.Version), zap.Error(err))
	}
}

func (m *Match) outcome(inter effects.Interactions) Outcome {
	return Outcome{
		State:        m.state.Clone(),
		Interactions: inter,
		Progress:     m.state.Progress,
	}
}
