package model

import (
	"slices"

	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/google/uuid"
)

// CardDefinition is the immutable authored template of a card.
type CardDefinition struct {
	ID    string                 `yaml:"id" json:"id"`
	Name  string                 `yaml:"name" json:"name"`
	Text  string                 `yaml:"text" json:"text,omitempty"`
	Role  Role                   `yaml:"role" json:"role"`
	Type  CardType               `yaml:"type" json:"type"`
	Costs map[resources.Name]int `yaml:"costs" json:"costs,omitempty"`

	CluesRevealed        int    `yaml:"clues_revealed" json:"clues_revealed,omitempty"`
	ClueCategory         string `yaml:"clue_category" json:"clue_category,omitempty"`
	ConfidenceBoost      int    `yaml:"confidence_boost" json:"confidence_boost,omitempty"`
	RapportChange        int    `yaml:"rapport_change" json:"rapport_change,omitempty"`
	CooperationChange    int    `yaml:"cooperation_change" json:"cooperation_change,omitempty"`
	EmotionalChange      int    `yaml:"emotional_change" json:"emotional_change,omitempty"`
	ComplexityAdd        int    `yaml:"complexity_add" json:"complexity_add,omitempty"`
	InformationReduction int    `yaml:"information_reduction" json:"information_reduction,omitempty"`

	Counters          []EffectKind   `yaml:"counters" json:"counters,omitempty"`
	RequiresTarget    TargetKind     `yaml:"requires_target" json:"requires_target,omitempty"`
	PhaseRestrictions []Phase        `yaml:"phase_restrictions" json:"phase_restrictions,omitempty"`
	OncePerTurn       bool           `yaml:"once_per_turn" json:"once_per_turn,omitempty"`
	RequiresClues     int            `yaml:"requires_clues" json:"requires_clues,omitempty"`
	GrantsModifier    string         `yaml:"grants_modifier" json:"grants_modifier,omitempty"`
	Lingering         *LingeringSpec `yaml:"lingering" json:"lingering,omitempty"`
	EducationalNote   string         `yaml:"educational_note" json:"educational_note,omitempty"`
}

// LingeringSpec describes an active effect a card leaves behind after it resolves.
// Duration counts full turn cycles; zero means it lasts for the rest of the match.
type LingeringSpec struct {
	Name     string       `yaml:"name" json:"name"`
	Duration int          `yaml:"duration" json:"duration"`
	Triggers []EffectKind `yaml:"triggers" json:"triggers"`
	Emit     EmitSpec     `yaml:"emit" json:"emit"`
}

// EmitSpec is the resource change a triggered active effect produces.
type EmitSpec struct {
	Role     Role           `yaml:"role" json:"role"`
	Resource resources.Name `yaml:"resource" json:"resource"`
	Delta    int            `yaml:"delta" json:"delta"`
}

// CountersAny returns the effect kinds in kinds that the card declares it counters.
func (d CardDefinition) CountersAny(kinds []EffectKind) []EffectKind {
	var matched []EffectKind
	for _, k := range d.Counters {
		if slices.Contains(kinds, k) && !slices.Contains(matched, k) {
			matched = append(matched, k)
		}
	}
	return matched
}

// AllowedIn reports whether the card may be played in phase.
func (d CardDefinition) AllowedIn(phase Phase) bool {
	return len(d.PhaseRestrictions) == 0 || slices.Contains(d.PhaseRestrictions, phase)
}

// CardInstance is a concrete playable copy of a definition.
type CardInstance struct {
	InstanceID string         `json:"instance_id"`
	Definition CardDefinition `json:"definition"`
}

// NewCardInstance wraps a definition with a fresh instance id.
func NewCardInstance(def CardDefinition) CardInstance {
	return CardInstance{InstanceID: uuid.NewString(), Definition: def}
}

// FindInstance returns the index of instanceID in hand, or -1.
func FindInstance(hand []CardInstance, instanceID string) int {
	for i, card := range hand {
		if card.InstanceID == instanceID {
			return i
		}
	}
	return -1
}
