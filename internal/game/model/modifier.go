package model

import (
	"fmt"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// ModifierKind is the closed set of adjustments a modifier effect can make.
type ModifierKind int

const (
	ModifierCardCost ModifierKind = iota + 1
	ModifierRegeneration
	ModifierTreatmentLimit
	ModifierAssessmentFailure
	ModifierCooperationBonus
	ModifierResourceShift
)

var modifierKindNames = map[ModifierKind]string{
	ModifierCardCost:          "card_cost",
	ModifierRegeneration:      "regeneration",
	ModifierTreatmentLimit:    "treatment_limit",
	ModifierAssessmentFailure: "assessment_failure_chance",
	ModifierCooperationBonus:  "cooperation_bonus",
	ModifierResourceShift:     "resource_shift",
}

func (k ModifierKind) String() string {
	if name, ok := modifierKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("MODIFIER_%d", int(k))
}

// ParseModifierKind converts an authored kind name. Unknown names are an error
// rather than a silently ignored adjustment.
func ParseModifierKind(s string) (ModifierKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for kind, n := range modifierKindNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown modifier kind %q", s)
}

// Duration is either permanent or a number of remaining turn cycles.
type Duration struct {
	Permanent bool `json:"permanent"`
	Turns     int  `json:"turns,omitempty"`
}

// Permanent is the duration of modifiers that never expire.
var Permanent = Duration{Permanent: true}

// Turns returns a timed duration.
func Turns(n int) Duration {
	return Duration{Turns: n}
}

func (d Duration) String() string {
	if d.Permanent {
		return "permanent"
	}
	return fmt.Sprintf("%d", d.Turns)
}

// ModifierEffect is one adjustment inside a modifier.
// CardType scopes card_cost (CardAnyType or empty for all types); Role scopes
// regeneration and resource_shift (empty means both roles for regeneration).
type ModifierEffect struct {
	Kind      ModifierKind   `json:"kind"`
	Magnitude float64        `json:"magnitude"`
	CardType  CardType       `json:"card_type,omitempty"`
	Role      Role           `json:"role,omitempty"`
	Resource  resources.Name `json:"resource,omitempty"`
}

// Modifier is a named, possibly timed, set of adjustments.
type Modifier struct {
	ID       string           `json:"id"`
	Key      string           `json:"key"`
	Name     string           `json:"name"`
	Tier     Difficulty       `json:"tier,omitempty"`
	Effects  []ModifierEffect `json:"effects"`
	Duration Duration         `json:"duration"`
}

// Copy returns a deep copy of the modifier.
func (m Modifier) Copy() Modifier {
	m.Effects = append([]ModifierEffect(nil), m.Effects...)
	return m
}

// Adjustments is the derived side table produced by folding active modifiers.
type Adjustments struct {
	CostDelta         map[CardType]int `json:"cost_delta,omitempty"`
	RegenDelta        map[Role]int     `json:"regen_delta,omitempty"`
	TreatmentLimit    int              `json:"treatment_limit,omitempty"`
	AssessmentFailure float64          `json:"assessment_failure,omitempty"`
	CooperationBonus  int              `json:"cooperation_bonus,omitempty"`
}

// Copy returns a deep copy of the adjustments.
func (a Adjustments) Copy() Adjustments {
	cp := a
	if a.CostDelta != nil {
		cp.CostDelta = make(map[CardType]int, len(a.CostDelta))
		for k, v := range a.CostDelta {
			cp.CostDelta[k] = v
		}
	}
	if a.RegenDelta != nil {
		cp.RegenDelta = make(map[Role]int, len(a.RegenDelta))
		for k, v := range a.RegenDelta {
			cp.RegenDelta[k] = v
		}
	}
	return cp
}
