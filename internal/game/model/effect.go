package model

import (
	"fmt"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// EffectKind tags an effect variant. Cards reference kinds in their counters
// list and active effects reference them in their triggers.
type EffectKind string

const (
	EffectResourceChange       EffectKind = "resource_change"
	EffectRevealClues          EffectKind = "reveal_clues"
	EffectDiagnosticProgress   EffectKind = "diagnostic_progress"
	EffectEmotionalStateChange EffectKind = "emotional_state_change"
	EffectAddComplexity        EffectKind = "add_complexity"
	EffectAssessmentFailed     EffectKind = "assessment_failed"
	EffectInformationReduction EffectKind = "information_reduction"
	EffectModifierGranted      EffectKind = "modifier_granted"
	EffectDispel               EffectKind = "dispel"
)

var effectKinds = map[EffectKind]struct{}{
	EffectResourceChange:       {},
	EffectRevealClues:          {},
	EffectDiagnosticProgress:   {},
	EffectEmotionalStateChange: {},
	EffectAddComplexity:        {},
	EffectAssessmentFailed:     {},
	EffectInformationReduction: {},
	EffectModifierGranted:      {},
	EffectDispel:               {},
}

// ParseEffectKind converts a string into an EffectKind.
func ParseEffectKind(s string) (EffectKind, error) {
	k := EffectKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := effectKinds[k]; !ok {
		return "", fmt.Errorf("unknown effect kind %q", s)
	}
	return k, nil
}

// Effect is a closed union: only types in this package implement it, and every
// handler implements EffectVisitor, so a new variant fails to compile until
// all handlers support it.
type Effect interface {
	Kind() EffectKind
	Accept(v EffectVisitor) error
	sealed()
}

// EffectVisitor dispatches on the concrete effect variant.
type EffectVisitor interface {
	VisitResourceChange(ResourceChange) error
	VisitRevealClues(RevealClues) error
	VisitDiagnosticProgress(DiagnosticProgress) error
	VisitEmotionalStateChange(EmotionalStateChange) error
	VisitAddComplexity(AddComplexity) error
	VisitAssessmentFailed(AssessmentFailed) error
	VisitInformationReduction(InformationReduction) error
	VisitModifierGranted(ModifierGranted) error
	VisitDispel(Dispel) error
}

// ResourceChange adjusts one resource of one role.
type ResourceChange struct {
	Role     Role
	Resource resources.Name
	Delta    int
}

// RevealClues discovers clues from a category pool. ClueIDs are drawn when the
// interaction is computed so that applying the effect is deterministic.
type RevealClues struct {
	Category  string
	Requested int
	Withheld  int
	ClueIDs   []string
}

// DiagnosticProgress raises the clinician's diagnostic confidence.
type DiagnosticProgress struct {
	Amount int
}

// EmotionalStateChange moves the patient's emotional load.
type EmotionalStateChange struct {
	Delta int
}

// AddComplexity adds case complexity on the patient side.
type AddComplexity struct {
	Amount int
}

// AssessmentFailed replaces the reveal of a failed assessment.
type AssessmentFailed struct {
	CardID      string
	Probability float64
}

// InformationReduction withholds clues from the next reveal.
type InformationReduction struct {
	Amount int
}

// ModifierGranted activates a catalog modifier.
type ModifierGranted struct {
	ModifierKey string
}

// Dispel removes a targeted active effect or match modifier.
type Dispel struct {
	Target TargetKind
	ID     string
}

func (ResourceChange) Kind() EffectKind       { return EffectResourceChange }
func (RevealClues) Kind() EffectKind          { return EffectRevealClues }
func (DiagnosticProgress) Kind() EffectKind   { return EffectDiagnosticProgress }
func (EmotionalStateChange) Kind() EffectKind { return EffectEmotionalStateChange }
func (AddComplexity) Kind() EffectKind        { return EffectAddComplexity }
func (AssessmentFailed) Kind() EffectKind     { return EffectAssessmentFailed }
func (InformationReduction) Kind() EffectKind { return EffectInformationReduction }
func (ModifierGranted) Kind() EffectKind      { return EffectModifierGranted }
func (Dispel) Kind() EffectKind               { return EffectDispel }

func (e ResourceChange) Accept(v EffectVisitor) error       { return v.VisitResourceChange(e) }
func (e RevealClues) Accept(v EffectVisitor) error          { return v.VisitRevealClues(e) }
func (e DiagnosticProgress) Accept(v EffectVisitor) error   { return v.VisitDiagnosticProgress(e) }
func (e EmotionalStateChange) Accept(v EffectVisitor) error { return v.VisitEmotionalStateChange(e) }
func (e AddComplexity) Accept(v EffectVisitor) error        { return v.VisitAddComplexity(e) }
func (e AssessmentFailed) Accept(v EffectVisitor) error     { return v.VisitAssessmentFailed(e) }
func (e InformationReduction) Accept(v EffectVisitor) error { return v.VisitInformationReduction(e) }
func (e ModifierGranted) Accept(v EffectVisitor) error      { return v.VisitModifierGranted(e) }
func (e Dispel) Accept(v EffectVisitor) error               { return v.VisitDispel(e) }

func (ResourceChange) sealed()       {}
func (RevealClues) sealed()          {}
func (DiagnosticProgress) sealed()   {}
func (EmotionalStateChange) sealed() {}
func (AddComplexity) sealed()        {}
func (AssessmentFailed) sealed()     {}
func (InformationReduction) sealed() {}
func (ModifierGranted) sealed()      {}
func (Dispel) sealed()               {}

// Kinds returns the kinds of effects in order, without duplicates.
func Kinds(effects []Effect) []EffectKind {
	seen := make(map[EffectKind]struct{}, len(effects))
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		if _, ok := seen[e.Kind()]; ok {
			continue
		}
		seen[e.Kind()] = struct{}{}
		out = append(out, e.Kind())
	}
	return out
}

// TriggeredEffect is a chained effect emitted by an active effect or by a counter play.
type TriggeredEffect struct {
	ID       string
	SourceID string
	Trigger  EffectKind
	Owner    Role
	Counter  bool
	Effect   Effect
}

// EffectRecord is the serializable form of an effect kept in logs and snapshots.
type EffectRecord struct {
	Kind     EffectKind     `json:"kind"`
	Role     Role           `json:"role,omitempty"`
	Resource resources.Name `json:"resource,omitempty"`
	Amount   int            `json:"amount,omitempty"`
	Category string         `json:"category,omitempty"`
	Refs     []string       `json:"refs,omitempty"`
	SourceID string         `json:"source_id,omitempty"`
}

type recorder struct{ rec EffectRecord }

func (r *recorder) VisitResourceChange(e ResourceChange) error {
	r.rec.Role, r.rec.Resource, r.rec.Amount = e.Role, e.Resource, e.Delta
	return nil
}

func (r *recorder) VisitRevealClues(e RevealClues) error {
	r.rec.Role = RoleClinician
	r.rec.Category = e.Category
	r.rec.Amount = len(e.ClueIDs)
	r.rec.Refs = append([]string(nil), e.ClueIDs...)
	return nil
}

func (r *recorder) VisitDiagnosticProgress(e DiagnosticProgress) error {
	r.rec.Role, r.rec.Resource, r.rec.Amount = RoleClinician, resources.Confidence, e.Amount
	return nil
}

func (r *recorder) VisitEmotionalStateChange(e EmotionalStateChange) error {
	r.rec.Role, r.rec.Resource, r.rec.Amount = RolePatient, resources.Emotional, e.Delta
	return nil
}

func (r *recorder) VisitAddComplexity(e AddComplexity) error {
	r.rec.Role, r.rec.Resource, r.rec.Amount = RolePatient, resources.Complexity, e.Amount
	return nil
}

func (r *recorder) VisitAssessmentFailed(e AssessmentFailed) error {
	r.rec.Refs = []string{e.CardID}
	return nil
}

func (r *recorder) VisitInformationReduction(e InformationReduction) error {
	r.rec.Amount = e.Amount
	return nil
}

func (r *recorder) VisitModifierGranted(e ModifierGranted) error {
	r.rec.Refs = []string{e.ModifierKey}
	return nil
}

func (r *recorder) VisitDispel(e Dispel) error {
	r.rec.Category = string(e.Target)
	r.rec.Refs = []string{e.ID}
	return nil
}

// Record converts an effect into its serializable form.
func Record(e Effect) EffectRecord {
	r := &recorder{rec: EffectRecord{Kind: e.Kind()}}
	_ = e.Accept(r)
	return r.rec
}

// Records converts a slice of effects.
func Records(effects []Effect) []EffectRecord {
	out := make([]EffectRecord, 0, len(effects))
	for _, e := range effects {
		out = append(out, Record(e))
	}
	return out
}
