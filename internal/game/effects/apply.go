package effects

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

var (
	// ErrNotInHand is returned when the played instance is missing from the hand.
	ErrNotInHand = errors.New("card instance not in hand")
	// ErrUnknownModifier is returned when a card grants a modifier the catalog lacks.
	ErrUnknownModifier = errors.New("unknown modifier")
)

// Mutator commits computed effects to a state. Callers pass a clone and
// swap it in only when every call returned nil.
type Mutator struct {
	cfg     config.GameConfig
	content Content
}

// NewMutator creates a mutator.
func NewMutator(cfg config.GameConfig, content Content) *Mutator {
	return &Mutator{cfg: cfg, content: content}
}

// ApplyCardEffects removes inst from role's hand, applies the primary
// effects, registers any lingering effect, logs the play and records it as
// played this turn.
func (m *Mutator) ApplyCardEffects(state *model.MatchState, inter Interactions, inst model.CardInstance, role model.Role) (*model.MatchState, error) {
	if err := removeFromHand(state, role, inst.InstanceID); err != nil {
		return state, err
	}
	def := inst.Definition
	if def.Type == model.CardTreatment {
		state.TreatmentPlays++
	}

	if err := m.apply(state, inter.Primary, role, def.ID); err != nil {
		return state, err
	}
	if def.Lingering != nil && !inter.AssessmentFailed {
		m.linger(state, inst, role)
	}

	payload := map[string]string{
		"instance_id": inst.InstanceID,
		"type":        string(def.Type),
	}
	if inter.TargetID != "" {
		payload["target"] = inter.TargetID
	}
	if spent := costSummary(inter.Cost); spent != "" {
		payload["cost"] = spent
	}
	if inter.AssessmentFailed {
		payload["assessment"] = "failed"
	}
	state.AppendLog(model.LogEntry{
		Actor:           role,
		Action:          model.ActionPlayCard,
		CardID:          def.ID,
		CardName:        def.Name,
		Payload:         payload,
		Effects:         model.Records(inter.Primary),
		EducationalNote: inter.EducationalImpact,
	})

	state.CardsPlayedThisTurn = append(state.CardsPlayedThisTurn, def.ID)
	state.LastCardPlayed = def.ID
	state.LastCardRole = role
	return state, nil
}

// ApplyChainedEffects applies triggered and counter effects. Each effect is
// applied at most once per match, keyed by its id, so replaying the same
// slice is a no-op.
func (m *Mutator) ApplyChainedEffects(state *model.MatchState, chained []model.TriggeredEffect) (*model.MatchState, error) {
	if state.AppliedChained == nil {
		state.AppliedChained = make(map[string]bool)
	}
	for _, ch := range chained {
		if state.AppliedChained[ch.ID] {
			continue
		}
		if err := m.apply(state, []model.Effect{ch.Effect}, ch.Owner, ch.SourceID); err != nil {
			return state, fmt.Errorf("chained effect %s: %w", ch.ID, err)
		}
		state.AppliedChained[ch.ID] = true
		state.AppendLog(model.LogEntry{
			Actor:  ch.Owner,
			Action: model.ActionChained,
			Payload: map[string]string{
				"source_id": ch.SourceID,
				"trigger":   string(ch.Trigger),
				"counter":   strconv.FormatBool(ch.Counter),
			},
			Effects: []model.EffectRecord{withSource(model.Record(ch.Effect), ch.SourceID)},
		})
	}
	return state, nil
}

// ApplyCounter plays the counter card named by opp out of turn: the card
// leaves the hand, the play is logged, its effects run through the chained
// pass, and every opportunity for that card is withdrawn.
func (m *Mutator) ApplyCounter(state *model.MatchState, opp model.CounterOpportunity, inst model.CardInstance, chained []model.TriggeredEffect) (*model.MatchState, error) {
	if err := removeFromHand(state, opp.Role, inst.InstanceID); err != nil {
		return state, err
	}
	def := inst.Definition
	state.AppendLog(model.LogEntry{
		Actor:    opp.Role,
		Action:   model.ActionCounter,
		CardID:   def.ID,
		CardName: def.Name,
		Payload: map[string]string{
			"opportunity_id":  opp.ID,
			"against_card_id": opp.AgainstCardID,
		},
		EducationalNote: def.EducationalNote,
	})
	if _, err := m.ApplyChainedEffects(state, chained); err != nil {
		return state, err
	}
	if def.Lingering != nil {
		m.linger(state, inst, opp.Role)
	}

	pending := state.PendingCounters[:0:0]
	for _, o := range state.PendingCounters {
		if o.ID != opp.ID && o.InstanceID != inst.InstanceID {
			pending = append(pending, o)
		}
	}
	state.PendingCounters = pending
	return state, nil
}

func (m *Mutator) apply(state *model.MatchState, effects []model.Effect, actor model.Role, sourceID string) error {
	a := &applier{m: m, state: state, actor: actor, source: sourceID}
	for _, eff := range effects {
		if err := eff.Accept(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mutator) linger(state *model.MatchState, inst model.CardInstance, role model.Role) {
	spec := inst.Definition.Lingering
	duration := model.Permanent
	if spec.Duration > 0 {
		duration = model.Turns(spec.Duration)
	}
	name := spec.Name
	if name == "" {
		name = inst.Definition.Name
	}
	if state.ActiveEffects == nil {
		state.ActiveEffects = make(map[model.Role][]model.ActiveEffect)
	}
	state.ActiveEffects[role] = append(state.ActiveEffects[role], model.ActiveEffect{
		ID:               state.NewID(),
		Name:             name,
		Owner:            role,
		SourceCardID:     inst.Definition.ID,
		SourceInstanceID: inst.InstanceID,
		Duration:         duration,
		Triggers:         append([]model.EffectKind(nil), spec.Triggers...),
		Emit:             spec.Emit,
	})
}

// applier is the type-dispatched handler set for every effect variant.
type applier struct {
	m      *Mutator
	state  *model.MatchState
	actor  model.Role
	source string
}

func (a *applier) VisitResourceChange(e model.ResourceChange) error {
	a.state.Pool(e.Role).Add(e.Resource, e.Delta)
	return nil
}

func (a *applier) VisitRevealClues(e model.RevealClues) error {
	for _, id := range e.ClueIDs {
		a.m.discover(a.state, e.Category, id)
	}
	if e.Withheld > 0 {
		a.state.InformationPenalty = max(0, a.state.InformationPenalty-e.Withheld)
	}
	return nil
}

func (a *applier) VisitDiagnosticProgress(e model.DiagnosticProgress) error {
	a.state.Pool(model.RoleClinician).Add(resources.Confidence, e.Amount)
	return nil
}

func (a *applier) VisitEmotionalStateChange(e model.EmotionalStateChange) error {
	a.state.Pool(model.RolePatient).Add(resources.Emotional, e.Delta)
	return nil
}

func (a *applier) VisitAddComplexity(e model.AddComplexity) error {
	a.state.Pool(model.RolePatient).Add(resources.Complexity, e.Amount)
	return nil
}

// VisitAssessmentFailed has no state effect beyond the play's log entry.
func (a *applier) VisitAssessmentFailed(model.AssessmentFailed) error {
	return nil
}

func (a *applier) VisitInformationReduction(e model.InformationReduction) error {
	a.state.InformationPenalty += e.Amount
	return nil
}

func (a *applier) VisitModifierGranted(e model.ModifierGranted) error {
	mod, ok := a.m.content.Modifier(e.ModifierKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModifier, e.ModifierKey)
	}
	modifiers.Apply(a.state, mod)
	added := a.state.Modifiers[len(a.state.Modifiers)-1]
	a.state.AppendLog(model.LogEntry{
		Actor:  a.actor,
		Action: model.ActionModifierAdded,
		Payload: map[string]string{
			"modifier":    added.Key,
			"modifier_id": added.ID,
			"name":        added.Name,
			"duration":    added.Duration.String(),
			"source":      a.source,
		},
	})
	return nil
}

func (a *applier) VisitDispel(e model.Dispel) error {
	switch e.Target {
	case model.TargetActiveEffect:
		for role, list := range a.state.ActiveEffects {
			kept := list[:0:0]
			for _, active := range list {
				if active.ID != e.ID {
					kept = append(kept, active)
				}
			}
			a.state.ActiveEffects[role] = kept
		}
	case model.TargetModifier:
		kept := a.state.Modifiers[:0:0]
		for _, mod := range a.state.Modifiers {
			if mod.ID != e.ID {
				kept = append(kept, mod)
			}
		}
		a.state.Modifiers = kept
		a.state.Adjustments = modifiers.Fold(kept)
	}
	return nil
}

func removeFromHand(state *model.MatchState, role model.Role, instanceID string) error {
	hand := state.Hands[role]
	idx := model.FindInstance(hand, instanceID)
	if idx < 0 {
		return fmt.Errorf("%w: %s (%s)", ErrNotInHand, instanceID, role)
	}
	state.Hands[role] = append(hand[:idx:idx], hand[idx+1:]...)
	return nil
}

// costSummary renders a paid cost in name order, e.g. "energy=2".
func costSummary(cost map[resources.Name]int) string {
	names := make([]string, 0, len(cost))
	for name, amount := range cost {
		if amount > 0 {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, cost[resources.Name(name)])
	}
	return strings.Join(parts, ",")
}

func withSource(rec model.EffectRecord, source string) model.EffectRecord {
	rec.SourceID = source
	return rec
}
