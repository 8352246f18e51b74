package model

import (
	"fmt"
	"strings"
)

// Role is one of the two match participants.
type Role string

const (
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
)

// Roles lists both roles in seating order.
var Roles = []Role{RoleClinician, RolePatient}

// Opponent returns the other role.
func (r Role) Opponent() Role {
	if r == RoleClinician {
		return RolePatient
	}
	return RoleClinician
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClinician || r == RolePatient
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Phase is the broad stage of an encounter.
type Phase string

const (
	PhaseSetup         Phase = "setup"
	PhaseInvestigation Phase = "investigation"
	PhaseDiagnosis     Phase = "diagnosis"
	PhaseScoring       Phase = "scoring"
)

// ParsePhase converts a string into a Phase.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhaseSetup, PhaseInvestigation, PhaseDiagnosis, PhaseScoring:
		return p, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// Status tracks whether a match still accepts actions.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Difficulty selects the turn band and modifier tier of a match.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty converts a string into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// CardType is the closed set of card type tags.
type CardType string

const (
	CardAssessment        CardType = "assessment"
	CardHistoryTaking     CardType = "history_taking"
	CardClinicalReasoning CardType = "clinical_reasoning"
	CardCommunication     CardType = "communication"
	CardTreatment         CardType = "treatment"
	CardDeflection        CardType = "deflection"
	CardEmotionalState    CardType = "emotional_state"
	CardComplexity        CardType = "complexity"

	// CardAnyType is the wildcard used by cost modifiers.
	CardAnyType CardType = "*"
)

var cardTypes = map[CardType]struct{}{
	CardAssessment:        {},
	CardHistoryTaking:     {},
	CardClinicalReasoning: {},
	CardCommunication:     {},
	CardTreatment:         {},
	CardDeflection:        {},
	CardEmotionalState:    {},
	CardComplexity:        {},
}

// ParseCardType converts a string into a CardType. The wildcard is not a card type.
func ParseCardType(s string) (CardType, error) {
	t := CardType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := cardTypes[t]; !ok {
		return "", fmt.Errorf("unknown card type %q", s)
	}
	return t, nil
}

// TargetKind names what a card may target.
type TargetKind string

const (
	TargetNone         TargetKind = ""
	TargetClue         TargetKind = "clue"
	TargetActiveEffect TargetKind = "active_effect"
	TargetModifier     TargetKind = "modifier"
)

// ParseTargetKind converts a string into a TargetKind.
func ParseTargetKind(s string) (TargetKind, error) {
	switch t := TargetKind(strings.ToLower(strings.TrimSpace(s))); t {
	case TargetNone, TargetClue, TargetActiveEffect, TargetModifier:
		return t, nil
	}
	return "", fmt.Errorf("unknown target kind %q", s)
}
