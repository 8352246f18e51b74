package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/fixture"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func historyExam() model.CardDefinition {
	card := fixture.Card("history_exam", model.RoleClinician, model.CardAssessment, 2)
	card.Name = "Focused History"
	card.CluesRevealed = 1
	card.ClueCategory = "history"
	card.ConfidenceBoost = 10
	return card
}

func changeSubject() model.CardDefinition {
	card := fixture.Card("change_subject", model.RolePatient, model.CardDeflection, 1)
	card.Name = "Change the Subject"
	card.EmotionalChange = 1
	card.Counters = []model.EffectKind{model.EffectRevealClues}
	return card
}

// testContent deals clinicians nothing but history exams and patients
// nothing but counters to clue reveals.
func testContent() *fixture.Content {
	c := fixture.NewContent()
	for i := 0; i < 6; i++ {
		c.RoleCards[model.RoleClinician] = append(c.RoleCards[model.RoleClinician], historyExam())
		c.RoleCards[model.RolePatient] = append(c.RoleCards[model.RolePatient], changeSubject())
	}
	return c
}

func newTestMatch(t *testing.T, mutate func(*Options)) *Match {
	t.Helper()
	opts := Options{
		ID:         "match-1",
		ScenarioID: "chest_pain",
		Difficulty: model.DifficultyBeginner,
		Seed:       42,
		Logger:     zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewMatch(config.DefaultGame(), testContent(), opts)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func firstInstance(t *testing.T, state *model.MatchState, role model.Role) string {
	t.Helper()
	require.NotEmpty(t, state.Hands[role])
	return state.Hands[role][0].InstanceID
}

func TestNewMatchSetup(t *testing.T) {
	m := newTestMatch(t, nil)
	state := m.State()

	assert.Equal(t, "match-1", state.MatchID)
	assert.Equal(t, 1, state.Turn)
	assert.Equal(t, 12, state.MaxTurns)
	assert.Equal(t, model.RoleClinician, state.ActiveRole)
	assert.Equal(t, model.PhaseInvestigation, state.Phase)
	assert.Equal(t, model.StatusInProgress, state.Status)
	assert.Equal(t, int64(1), state.Version)
	assert.Len(t, state.Hands[model.RoleClinician], 5)
	assert.Len(t, state.Decks[model.RoleClinician], 1)
	assert.Len(t, state.Hands[model.RolePatient], 5)
	assert.Empty(t, state.Modifiers)
	assert.Equal(t, 10, state.Pool(model.RoleClinician).Get(resources.Energy))
	require.NotEmpty(t, state.Log)
	assert.Equal(t, model.ActionSetup, state.Log[0].Action)
}

func TestNewMatchDifficultyModifiers(t *testing.T) {
	m := newTestMatch(t, func(o *Options) { o.Difficulty = "" })
	state := m.State()
	assert.Equal(t, model.DifficultyIntermediate, state.Difficulty)
	assert.Equal(t, 10, state.MaxTurns)
	require.Len(t, state.Modifiers, 1)
	assert.Equal(t, "documentation_nightmare", state.Modifiers[0].Key)

	_, err := m.PlayCard(context.Background(), model.RoleClinician, firstInstance(t, state, model.RoleClinician), "")
	require.NoError(t, err)
	assert.Equal(t, 7, m.State().Pool(model.RoleClinician).Get(resources.Energy))
}

func TestNewMatchUnknownScenario(t *testing.T) {
	_, err := NewMatch(config.DefaultGame(), testContent(), Options{ScenarioID: "migraine"})
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestPlayCardAssessment(t *testing.T) {
	m := newTestMatch(t, nil)
	state := m.State()

	out, err := m.PlayCard(context.Background(), model.RoleClinician, firstInstance(t, state, model.RoleClinician), "")
	require.NoError(t, err)

	assert.Equal(t, 8, out.State.Pool(model.RoleClinician).Get(resources.Energy))
	assert.Equal(t, 10, out.State.Pool(model.RoleClinician).Get(resources.Confidence))
	require.Len(t, out.State.DiscoveredClues, 1)
	assert.Equal(t, "history", out.State.DiscoveredClues[0].Category)
	assert.Len(t, out.State.Hands[model.RoleClinician], 4)
	assert.Equal(t, int64(2), out.State.Version)
	assert.Equal(t, "history_exam", out.State.LastCardPlayed)
	assert.False(t, out.Interactions.AssessmentFailed)

	last := out.State.Log[len(out.State.Log)-1]
	assert.Equal(t, model.ActionPlayCard, last.Action)
	assert.Equal(t, "energy=2", last.Payload["cost"])
}

func TestPlayCardOutOfTurnLeavesStateUnchanged(t *testing.T) {
	m := newTestMatch(t, nil)
	before := m.State()

	_, err := m.PlayCard(context.Background(), model.RolePatient, firstInstance(t, before, model.RolePatient), "")
	rej, ok := rules.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeNotYourTurn, rej.Code)
	assert.Equal(t, before, m.State())

	_, err = m.EndTurn(context.Background(), model.RolePatient)
	rej, ok = rules.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeNotYourTurn, rej.Code)
	assert.Equal(t, before, m.State())
}

func TestActionsOnFinishedMatch(t *testing.T) {
	m := newTestMatch(t, nil)
	m.mu.Lock()
	m.state.Status = model.StatusFinished
	m.mu.Unlock()
	state := m.State()

	_, err := m.PlayCard(context.Background(), model.RoleClinician, firstInstance(t, state, model.RoleClinician), "")
	rej, ok := rules.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeNotYourTurn, rej.Code)

	_, err = m.EndTurn(context.Background(), model.RoleClinician)
	_, ok = rules.AsRejection(err)
	assert.True(t, ok)
}

func TestEndTurnPassesControl(t *testing.T) {
	m := newTestMatch(t, nil)
	ctx := context.Background()

	out, err := m.EndTurn(ctx, model.RoleClinician)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, out.State.ActiveRole)
	assert.Equal(t, 1, out.State.Turn)

	out, err = m.EndTurn(ctx, model.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, model.RoleClinician, out.State.ActiveRole)
	assert.Equal(t, 2, out.State.Turn)
	assert.Equal(t, int64(3), out.State.Version)
}

func TestCounterFlow(t *testing.T) {
	m := newTestMatch(t, nil)
	ctx := context.Background()
	state := m.State()

	out, err := m.PlayCard(ctx, model.RoleClinician, firstInstance(t, state, model.RoleClinician), "")
	require.NoError(t, err)
	require.NotEmpty(t, out.Interactions.Counters)
	opp := out.Interactions.Counters[0]
	assert.Equal(t, model.RolePatient, opp.Role)
	assert.Equal(t, "history_exam", opp.AgainstCardID)
	assert.Equal(t, out.Interactions.Counters, out.State.PendingCounters)

	t.Run("wrong role", func(t *testing.T) {
		_, err := m.Counter(ctx, model.RoleClinician, opp.ID)
		rej, ok := rules.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, rules.CodeNotYourTurn, rej.Code)
	})

	t.Run("answered", func(t *testing.T) {
		out, err := m.Counter(ctx, model.RolePatient, opp.ID)
		require.NoError(t, err)
		patient := out.State.Pool(model.RolePatient)
		assert.Equal(t, 4, patient.Get(resources.Deflection))
		assert.Equal(t, 5, patient.Get(resources.Emotional))
		assert.Len(t, out.State.Hands[model.RolePatient], 4)
		for _, pending := range out.State.PendingCounters {
			assert.NotEqual(t, opp.ID, pending.ID)
		}
		assert.Equal(t, model.RoleClinician, out.State.ActiveRole, "countering does not take the turn")
	})

	t.Run("expired", func(t *testing.T) {
		_, err := m.Counter(ctx, model.RolePatient, opp.ID)
		rej, ok := rules.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, rules.CodeNotFound, rej.Code)
	})
}

func TestPendingCountersClearOnNextAction(t *testing.T) {
	m := newTestMatch(t, nil)
	ctx := context.Background()

	out, err := m.PlayCard(ctx, model.RoleClinician, firstInstance(t, m.State(), model.RoleClinician), "")
	require.NoError(t, err)
	require.NotEmpty(t, out.State.PendingCounters)

	out, err = m.EndTurn(ctx, model.RoleClinician)
	require.NoError(t, err)
	assert.Empty(t, out.State.PendingCounters)
}

func TestRunOpponentTurn(t *testing.T) {
	m := newTestMatch(t, func(o *Options) { o.OpponentRole = model.RolePatient })
	ctx := context.Background()

	_, err := m.RunOpponentTurn(ctx)
	rej, ok := rules.AsRejection(err)
	require.True(t, ok, "the opponent waits for its turn")
	assert.Equal(t, rules.CodeNotYourTurn, rej.Code)

	_, err = m.EndTurn(ctx, model.RoleClinician)
	require.NoError(t, err)

	out, err := m.RunOpponentTurn(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleClinician, out.State.ActiveRole)
	assert.Equal(t, 2, out.State.Turn)

	plays := 0
	for _, entry := range out.State.Log {
		if entry.Action == model.ActionPlayCard && entry.Actor == model.RolePatient {
			plays++
		}
	}
	assert.Equal(t, config.DefaultGame().AI.MaxPlays, plays)
}

func TestRunOpponentTurnWithoutOpponent(t *testing.T) {
	m := newTestMatch(t, nil)
	_, err := m.RunOpponentTurn(context.Background())
	assert.ErrorIs(t, err, ErrNoOpponent)
}

func TestOpponentPassesWhenNothingIsPlayable(t *testing.T) {
	content := testContent()
	content.RoleCards[model.RolePatient] = nil
	m, err := NewMatch(config.DefaultGame(), content, Options{
		ScenarioID:   "chest_pain",
		Difficulty:   model.DifficultyBeginner,
		OpponentRole: model.RolePatient,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.EndTurn(ctx, model.RoleClinician)
	require.NoError(t, err)
	out, err := m.RunOpponentTurn(ctx)
	require.NoError(t, err)

	var passed bool
	for _, entry := range out.State.Log {
		if entry.Action == model.ActionPass && entry.Actor == model.RolePatient {
			passed = true
			assert.Equal(t, "no playable cards", entry.Payload["reason"])
		}
	}
	assert.True(t, passed)
	assert.Equal(t, model.RoleClinician, out.State.ActiveRole)
}

func TestScheduledOpponentTurn(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.AI.ThinkingDelay = 10 * time.Millisecond
	m, err := NewMatch(cfg, testContent(), Options{
		ScenarioID:   "chest_pain",
		Difficulty:   model.DifficultyBeginner,
		OpponentRole: model.RolePatient,
		AutoOpponent: true,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	out, err := m.EndTurn(context.Background(), model.RoleClinician)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, out.State.ActiveRole)

	require.Eventually(t, func() bool {
		s := m.State()
		return s.ActiveRole == model.RoleClinician && s.Turn == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSinkReceivesEveryVersion(t *testing.T) {
	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	sink := SinkFunc(func(_ context.Context, snap Snapshot) error {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, snap)
		return nil
	})
	m := newTestMatch(t, func(o *Options) { o.Sink = sink })
	ctx := context.Background()

	_, err := m.PlayCard(ctx, model.RoleClinician, firstInstance(t, m.State(), model.RoleClinician), "")
	require.NoError(t, err)
	_, err = m.EndTurn(ctx, model.RoleClinician)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		assert.Equal(t, int64(i+1), snap.Version)
		assert.Equal(t, "match-1", snap.MatchID)
		assert.NoError(t, snap.Verify())
	}
	assert.NotEqual(t, snaps[0].Checksum, snaps[1].Checksum)
}

func TestConcurrentPlaysSerialize(t *testing.T) {
	m := newTestMatch(t, nil)
	ctx := context.Background()
	hand := m.State().Hands[model.RoleClinician]

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, inst := range hand {
				if _, err := m.PlayCard(ctx, model.RoleClinician, inst.InstanceID, ""); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	state := m.State()
	assert.Equal(t, len(hand), accepted, "each instance is played exactly once")
	assert.Empty(t, state.Hands[model.RoleClinician])
	assert.Equal(t, 0, state.Pool(model.RoleClinician).Get(resources.Energy))
	assert.Equal(t, int64(1+len(hand)), state.Version)
	assert.Len(t, state.DiscoveredClues, 3, "history has three clues")
}

func TestUnaffordableCounterIsOfferedButRejected(t *testing.T) {
	content := testContent()
	walkOut := fixture.Card("walk_out", model.RolePatient, model.CardDeflection, 9)
	walkOut.Counters = []model.EffectKind{model.EffectRevealClues}
	content.RoleCards[model.RolePatient] = nil
	for i := 0; i < 6; i++ {
		content.RoleCards[model.RolePatient] = append(content.RoleCards[model.RolePatient], walkOut)
	}
	m, err := NewMatch(config.DefaultGame(), content, Options{
		ID:         "match-1",
		ScenarioID: "chest_pain",
		Difficulty: model.DifficultyBeginner,
		Seed:       42,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	ctx := context.Background()

	out, err := m.PlayCard(ctx, model.RoleClinician, firstInstance(t, m.State(), model.RoleClinician), "")
	require.NoError(t, err)
	require.Len(t, out.State.PendingCounters, 5)
	opp := out.State.PendingCounters[0]
	assert.Equal(t, "walk_out", opp.CardID)

	_, err = m.Counter(ctx, model.RolePatient, opp.ID)
	rej, ok := rules.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeInsufficientResources, rej.Code)

	after := m.State()
	assert.Equal(t, out.State.Version, after.Version)
	assert.Len(t, after.Hands[model.RolePatient], 5)
	assert.Equal(t, 5, after.Pool(model.RolePatient).Get(resources.Deflection))
}

func TestSameSeedReproducesMatch(t *testing.T) {
	ctx := context.Background()
	run := func() *model.MatchState {
		m := newTestMatch(t, func(o *Options) { o.Seed = 7 })
		_, err := m.PlayCard(ctx, model.RoleClinician, firstInstance(t, m.State(), model.RoleClinician), "")
		require.NoError(t, err)
		_, err = m.EndTurn(ctx, model.RoleClinician)
		require.NoError(t, err)
		_, err = m.PlayCard(ctx, model.RolePatient, firstInstance(t, m.State(), model.RolePatient), "")
		require.NoError(t, err)
		_, err = m.EndTurn(ctx, model.RolePatient)
		require.NoError(t, err)
		return m.State()
	}
	a, b := run(), run()

	for _, role := range model.Roles {
		assert.Equal(t, a.Hands[role], b.Hands[role], "hand of %s", role)
		assert.Equal(t, a.Decks[role], b.Decks[role], "deck of %s", role)
		assert.Equal(t, a.ActiveEffects[role], b.ActiveEffects[role], "active effects of %s", role)
	}
	assert.Equal(t, a.DiscoveredClues, b.DiscoveredClues)
	assert.Equal(t, a.Modifiers, b.Modifiers)
	assert.Equal(t, Checksum(a), Checksum(b))

	require.Len(t, b.Log, len(a.Log))
	for i := range a.Log {
		assert.Equal(t, a.Log[i].ID, b.Log[i].ID, "log entry %d", i)
		assert.Equal(t, a.Log[i].Action, b.Log[i].Action, "log entry %d", i)
	}

	other := newTestMatch(t, func(o *Options) { o.Seed = 8 })
	assert.NotEqual(t, a.Hands[model.RoleClinician][0].InstanceID,
		other.State().Hands[model.RoleClinician][0].InstanceID)
}
