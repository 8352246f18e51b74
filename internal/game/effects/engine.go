// Package effects expands played cards into effects and applies them.
//
// Resolution happens in two steps. The Engine computes an Interactions value
// from a state without touching it: primary effects, triggered effects from
// active effects on both roles, and counter opportunities for the opposing
// hand. The Mutator then commits those effects to a state the caller owns.
package effects

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// Content supplies clue pools and catalog modifiers.
type Content interface {
	CluePool(category string) []model.ClueTemplate
	Modifier(key string) (model.Modifier, bool)
}

// Interactions is everything a single card play produces.
type Interactions struct {
	TargetID          string
	Cost              map[resources.Name]int
	Primary           []model.Effect
	Triggered         []model.TriggeredEffect
	Counters          []model.CounterOpportunity
	EducationalImpact string
	AssessmentFailed  bool
}

// Kinds returns the kinds of the primary effects.
func (i Interactions) Kinds() []model.EffectKind {
	return model.Kinds(i.Primary)
}

// Engine computes interactions. It owns the match's random source for
// assessment failure rolls and clue draws, so it must only be used under the
// match lock.
type Engine struct {
	cfg     config.GameConfig
	content Content
	rng     *rand.Rand
	mutator *Mutator
}

// NewEngine creates an effect engine.
func NewEngine(cfg config.GameConfig, content Content, rng *rand.Rand) *Engine {
	return &Engine{
		cfg:     cfg,
		content: content,
		rng:     rng,
		mutator: NewMutator(cfg, content),
	}
}

// ComputeInteractions expands a validated play of inst by role. The state is
// not modified: primary effects are applied to a scratch clone and chained
// effects are computed from that post-primary clone.
func (e *Engine) ComputeInteractions(state *model.MatchState, inst model.CardInstance, role model.Role, targetID string) (Interactions, error) {
	def := inst.Definition
	inter := Interactions{TargetID: targetID, EducationalImpact: def.EducationalNote}

	cost := modifiers.CostFor(state, def)
	inter.Cost = cost.Amounts
	inter.Primary = append(inter.Primary, costEffects(cost, def.Role)...)
	if failed, p := e.rollAssessmentFailure(state, def); failed {
		inter.AssessmentFailed = true
		inter.Primary = append(inter.Primary, model.AssessmentFailed{CardID: def.ID, Probability: p})
		inter.EducationalImpact = fmt.Sprintf("%s did not yield usable findings this time.", def.Name)
		if def.EducationalNote != "" {
			inter.EducationalImpact += " " + def.EducationalNote
		}
	} else {
		inter.Primary = append(inter.Primary, e.payloadEffects(state, def, targetID)...)
	}

	scratch := state.Clone()
	if err := e.mutator.apply(scratch, inter.Primary, role, def.ID); err != nil {
		return Interactions{}, fmt.Errorf("compute %s: %w", def.ID, err)
	}

	kinds := inter.Kinds()
	inter.Triggered = triggered(scratch, kinds, inst.InstanceID)
	inter.Counters = e.counters(scratch, kinds, role, def.ID)
	return inter, nil
}

// ComputeCounter returns the effects of answering an opportunity with inst.
// They are returned as chained effects so that the mutator's idempotent
// second pass applies them.
func (e *Engine) ComputeCounter(state *model.MatchState, opp model.CounterOpportunity, inst model.CardInstance, role model.Role) []model.TriggeredEffect {
	def := inst.Definition
	effects := costEffects(modifiers.CostFor(state, def), role)
	effects = append(effects, e.payloadEffects(state, def, "")...)

	out := make([]model.TriggeredEffect, 0, len(effects))
	for _, eff := range effects {
		out = append(out, model.TriggeredEffect{
			ID:       state.NewID(),
			SourceID: opp.ID,
			Trigger:  firstOr(opp.Matched, eff.Kind()),
			Owner:    role,
			Counter:  true,
			Effect:   eff,
		})
	}
	return out
}

// rollAssessmentFailure runs one Bernoulli trial for assessment cards.
func (e *Engine) rollAssessmentFailure(state *model.MatchState, def model.CardDefinition) (bool, float64) {
	if def.Type != model.CardAssessment {
		return false, 0
	}
	p := state.Adjustments.AssessmentFailure
	if p <= 0 {
		return false, 0
	}
	return e.rng.Float64() < p, p
}

// costEffects turns a cost into negative resource changes in name order.
func costEffects(cost modifiers.Cost, role model.Role) []model.Effect {
	if cost.Infinite {
		return nil
	}
	names := make([]resources.Name, 0, len(cost.Amounts))
	for name, amount := range cost.Amounts {
		if amount > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	out := make([]model.Effect, 0, len(names))
	for _, name := range names {
		out = append(out, model.ResourceChange{Role: role, Resource: name, Delta: -cost.Amounts[name]})
	}
	return out
}

// payloadEffects derives the card's effects from its payload, in a fixed order.
func (e *Engine) payloadEffects(state *model.MatchState, def model.CardDefinition, targetID string) []model.Effect {
	var out []model.Effect
	if def.RapportChange != 0 {
		out = append(out, model.ResourceChange{Role: model.RoleClinician, Resource: resources.Rapport, Delta: def.RapportChange})
	}
	if def.CooperationChange != 0 {
		out = append(out, model.ResourceChange{Role: model.RolePatient, Resource: resources.Cooperation, Delta: def.CooperationChange})
	}
	if def.EmotionalChange != 0 {
		out = append(out, model.EmotionalStateChange{Delta: def.EmotionalChange})
	}
	if def.ComplexityAdd != 0 {
		out = append(out, model.AddComplexity{Amount: def.ComplexityAdd})
	}
	if def.InformationReduction > 0 {
		out = append(out, model.InformationReduction{Amount: def.InformationReduction})
	}
	if def.CluesRevealed > 0 {
		out = append(out, e.revealClues(state, def))
	}
	if def.ConfidenceBoost != 0 {
		out = append(out, model.DiagnosticProgress{Amount: confidenceAmount(state, def, targetID)})
	}
	if def.GrantsModifier != "" {
		out = append(out, model.ModifierGranted{ModifierKey: def.GrantsModifier})
	}
	if (def.RequiresTarget == model.TargetActiveEffect || def.RequiresTarget == model.TargetModifier) && targetID != "" {
		out = append(out, model.Dispel{Target: def.RequiresTarget, ID: targetID})
	}
	return out
}

// confidenceAmount weights the boost of a clue-targeted card by the target
// clue's confidence. Untargeted cards apply the boost as declared.
func confidenceAmount(state *model.MatchState, def model.CardDefinition, targetID string) int {
	if def.RequiresTarget != model.TargetClue {
		return def.ConfidenceBoost
	}
	for _, clue := range state.DiscoveredClues {
		if clue.ID != targetID {
			continue
		}
		amount := int(math.Round(float64(def.ConfidenceBoost) * clue.Confidence))
		if amount == 0 && def.ConfidenceBoost > 0 {
			amount = 1
		}
		return amount
	}
	return def.ConfidenceBoost
}

func triggered(state *model.MatchState, kinds []model.EffectKind, sourceInstance string) []model.TriggeredEffect {
	var out []model.TriggeredEffect
	for _, role := range model.Roles {
		for _, active := range state.ActiveEffects[role] {
			if active.SourceInstanceID != "" && active.SourceInstanceID == sourceInstance {
				continue
			}
			trigger, ok := firstMatch(active.Triggers, kinds)
			if !ok || active.Emit.Delta == 0 {
				continue
			}
			pool := state.Pool(active.Emit.Role)
			if pool == nil {
				continue
			}
			r, ok := pool.Range(active.Emit.Resource)
			if !ok {
				continue
			}
			// already pinned at the bound it would push toward
			v := pool.Get(active.Emit.Resource)
			if (active.Emit.Delta > 0 && v >= r.Max) || (active.Emit.Delta < 0 && v <= r.Min) {
				continue
			}
			out = append(out, model.TriggeredEffect{
				ID:       state.NewID(),
				SourceID: active.ID,
				Trigger:  trigger,
				Owner:    active.Owner,
				Effect: model.ResourceChange{
					Role:     active.Emit.Role,
					Resource: active.Emit.Resource,
					Delta:    active.Emit.Delta,
				},
			})
		}
	}
	return out
}

func (e *Engine) counters(state *model.MatchState, kinds []model.EffectKind, role model.Role, against string) []model.CounterOpportunity {
	opponent := role.Opponent()
	var out []model.CounterOpportunity
	for _, inst := range state.Hands[opponent] {
		matched := inst.Definition.CountersAny(kinds)
		if len(matched) == 0 {
			continue
		}
		out = append(out, model.CounterOpportunity{
			ID:             state.NewID(),
			Role:           opponent,
			InstanceID:     inst.InstanceID,
			CardID:         inst.Definition.ID,
			Matched:        matched,
			AgainstCardID:  against,
			ResponseWindow: e.cfg.Counters.ResponseWindow,
		})
	}
	return out
}

func firstMatch(triggers, kinds []model.EffectKind) (model.EffectKind, bool) {
	for _, t := range triggers {
		if slices.Contains(kinds, t) {
			return t, true
		}
	}
	return "", false
}

func firstOr(kinds []model.EffectKind, fallback model.EffectKind) model.EffectKind {
	if len(kinds) > 0 {
		return kinds[0]
	}
	return fallback
}
