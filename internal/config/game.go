package config

import (
	"fmt"
	"time"
)

// GameConfig is the numeric configuration injected into every match.
type GameConfig struct {
	Roles    map[string]RoleConfig `mapstructure:"roles"`
	Turns    map[string]int        `mapstructure:"turns"`
	Hand     HandConfig            `mapstructure:"hand"`
	Victory  VictoryConfig         `mapstructure:"victory"`
	Phases   PhaseConfig           `mapstructure:"phases"`
	Clues    ClueConfig            `mapstructure:"clues"`
	AI       AIConfig              `mapstructure:"ai"`
	Counters CounterConfig         `mapstructure:"counters"`

	// DefaultDifficulty is used when a match is created without one.
	DefaultDifficulty string `mapstructure:"default_difficulty"`
}

// RoleConfig describes one role's resources. Primary is the resource that
// regenerates each turn and that card cost modifiers adjust. Modifiers never
// push regeneration below MinRegeneration.
type RoleConfig struct {
	Primary         string                    `mapstructure:"primary"`
	Regeneration    int                       `mapstructure:"regeneration"`
	MinRegeneration int                       `mapstructure:"min_regeneration"`
	Resources       map[string]ResourceConfig `mapstructure:"resources"`
}

// ResourceConfig is the range and starting value of a resource.
type ResourceConfig struct {
	Min   int `mapstructure:"min"`
	Max   int `mapstructure:"max"`
	Start int `mapstructure:"start"`
}

// HandConfig bounds hand sizes. A role below Floor draws one card when its turn begins.
type HandConfig struct {
	Initial int `mapstructure:"initial"`
	Floor   int `mapstructure:"floor"`
	Max     int `mapstructure:"max"`
}

// VictoryConfig holds the thresholds and point values used by the evaluator.
type VictoryConfig struct {
	DiagnosisConfidence int                             `mapstructure:"diagnosis_confidence"`
	ClueThreshold       int                             `mapstructure:"clue_threshold"`
	ClueWeight          float64                         `mapstructure:"clue_weight"`
	CompletionBonus     float64                         `mapstructure:"completion_bonus"`
	LearningMoments     map[string]LearningMomentConfig `mapstructure:"learning_moments"`
	// FailureResources maps a role to resources whose depletion ends the match.
	FailureResources map[string][]string `mapstructure:"failure_resources"`
}

// LearningMomentConfig is a patient-side condition. Direction is "below"
// (progress grows as the resource falls toward Threshold) or "above".
type LearningMomentConfig struct {
	Role      string  `mapstructure:"role"`
	Resource  string  `mapstructure:"resource"`
	Direction string  `mapstructure:"direction"`
	Threshold int     `mapstructure:"threshold"`
	Points    float64 `mapstructure:"points"`
}

// PhaseConfig controls the investigation to diagnosis transition.
type PhaseConfig struct {
	DiagnosisTurnFraction float64 `mapstructure:"diagnosis_turn_fraction"`
	DiagnosisClues        int     `mapstructure:"diagnosis_clues"`
}

// ClueConfig holds the discovery confidence formula parameters.
type ClueConfig struct {
	CooperationWeight float64 `mapstructure:"cooperation_weight"`
	RapportWeight     float64 `mapstructure:"rapport_weight"`
	Pivot             int     `mapstructure:"pivot"`
	MinConfidence     float64 `mapstructure:"min_confidence"`
	MaxConfidence     float64 `mapstructure:"max_confidence"`
}

// AIConfig tunes the opponent decision engine.
type AIConfig struct {
	TopN           int           `mapstructure:"top_n"`
	BaseWeight     float64       `mapstructure:"base_weight"`
	StrategicBonus float64       `mapstructure:"strategic_bonus"`
	UrgencyBonus   float64       `mapstructure:"urgency_bonus"`
	UrgencyTurns   int           `mapstructure:"urgency_turns"`
	LowRapport     int           `mapstructure:"low_rapport"`
	HighRapport    int           `mapstructure:"high_rapport"`
	ThinkingDelay  time.Duration `mapstructure:"thinking_delay"`
	MaxPlays       int           `mapstructure:"max_plays"`
}

// CounterConfig controls counter opportunities.
type CounterConfig struct {
	ResponseWindow time.Duration `mapstructure:"response_window"`
}

// DefaultGame returns the built-in game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		Roles: map[string]RoleConfig{
			"clinician": {
				Primary:         "energy",
				Regeneration:    3,
				MinRegeneration: 1,
				Resources: map[string]ResourceConfig{
					"energy":     {Min: 0, Max: 15, Start: 10},
					"rapport":    {Min: 0, Max: 10, Start: 5},
					"confidence": {Min: 0, Max: 100, Start: 0},
				},
			},
			"patient": {
				Primary:         "deflection",
				Regeneration:    2,
				MinRegeneration: 1,
				Resources: map[string]ResourceConfig{
					"cooperation": {Min: 0, Max: 10, Start: 5},
					"deflection":  {Min: 0, Max: 15, Start: 5},
					"emotional":   {Min: 0, Max: 12, Start: 4},
					"complexity":  {Min: 0, Max: 10, Start: 0},
				},
			},
		},
		Turns: map[string]int{
			"beginner":     12,
			"intermediate": 10,
			"advanced":     8,
		},
		Hand: HandConfig{Initial: 5, Floor: 3, Max: 7},
		Victory: VictoryConfig{
			DiagnosisConfidence: 85,
			ClueThreshold:       5,
			ClueWeight:          2,
			CompletionBonus:     25,
			LearningMoments: map[string]LearningMomentConfig{
				"rapport_breakdown": {
					Role: "clinician", Resource: "rapport", Direction: "below", Threshold: 1, Points: 40,
				},
				"information_withheld": {
					Role: "patient", Resource: "cooperation", Direction: "below", Threshold: 1, Points: 35,
				},
				"emotional_overload": {
					Role: "patient", Resource: "emotional", Direction: "above", Threshold: 11, Points: 35,
				},
			},
			FailureResources: map[string][]string{
				"clinician": {"rapport"},
				"patient":   {"cooperation"},
			},
		},
		Phases: PhaseConfig{
			DiagnosisTurnFraction: 0.6,
			DiagnosisClues:        4,
		},
		Clues: ClueConfig{
			CooperationWeight: 0.05,
			RapportWeight:     0.03,
			Pivot:             5,
			MinConfidence:     0.1,
			MaxConfidence:     1.0,
		},
		AI: AIConfig{
			TopN:           3,
			BaseWeight:     1,
			StrategicBonus: 2,
			UrgencyBonus:   1.5,
			UrgencyTurns:   2,
			LowRapport:     3,
			HighRapport:    7,
			ThinkingDelay:  1500 * time.Millisecond,
			MaxPlays:       3,
		},
		Counters: CounterConfig{
			ResponseWindow: 5 * time.Second,
		},
		DefaultDifficulty: "intermediate",
	}
}

// MaxTurns returns the turn band for a difficulty.
func (g GameConfig) MaxTurns(difficulty string) (int, error) {
	n, ok := g.Turns[difficulty]
	if !ok {
		return 0, fmt.Errorf("no turn band for difficulty %q", difficulty)
	}
	return n, nil
}

// Validate checks that the game configuration is usable.
func (g GameConfig) Validate() error {
	for _, role := range []string{"clinician", "patient"} {
		rc, ok := g.Roles[role]
		if !ok {
			return fmt.Errorf("game.roles.%s: missing", role)
		}
		if _, ok := rc.Resources[rc.Primary]; !ok {
			return fmt.Errorf("game.roles.%s: primary resource %q not declared", role, rc.Primary)
		}
		if rc.MinRegeneration < 0 {
			return fmt.Errorf("game.roles.%s.min_regeneration: negative", role)
		}
		for name, r := range rc.Resources {
			if r.Min > r.Max {
				return fmt.Errorf("game.roles.%s.resources.%s: min %d exceeds max %d", role, name, r.Min, r.Max)
			}
			if r.Min < 0 {
				return fmt.Errorf("game.roles.%s.resources.%s: negative min", role, name)
			}
		}
	}
	if len(g.Turns) == 0 {
		return fmt.Errorf("game.turns: at least one difficulty band required")
	}
	for difficulty, n := range g.Turns {
		if n < 1 {
			return fmt.Errorf("game.turns.%s: must be positive", difficulty)
		}
	}
	if g.Hand.Floor < 0 || g.Hand.Initial < 0 || g.Hand.Max < g.Hand.Initial {
		return fmt.Errorf("game.hand: invalid bounds %+v", g.Hand)
	}
	if g.AI.TopN < 1 {
		return fmt.Errorf("game.ai.top_n: must be at least 1")
	}
	for name, lm := range g.Victory.LearningMoments {
		if lm.Direction != "below" && lm.Direction != "above" {
			return fmt.Errorf("game.victory.learning_moments.%s: direction must be below or above", name)
		}
	}
	return nil
}
