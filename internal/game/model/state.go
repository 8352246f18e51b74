package model

import (
	"time"

	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// ClueTemplate is an authored clue in a category pool.
type ClueTemplate struct {
	ID          string  `yaml:"id" json:"id"`
	Description string  `yaml:"description" json:"description"`
	Reliability float64 `yaml:"reliability" json:"reliability"`
}

// Clue is a discovered fact with the confidence derived at discovery time.
type Clue struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Reliability float64 `json:"reliability"`
	Confidence  float64 `json:"confidence"`
	Turn        int     `json:"turn"`
}

// ActiveEffect is a lingering card effect that can emit chained effects.
type ActiveEffect struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Owner            Role         `json:"owner"`
	SourceCardID     string       `json:"source_card_id"`
	SourceInstanceID string       `json:"source_instance_id"`
	Duration         Duration     `json:"duration"`
	Triggers         []EffectKind `json:"triggers"`
	Emit             EmitSpec     `json:"emit"`
}

// CounterOpportunity offers the opposing role a response. The window is advisory.
type CounterOpportunity struct {
	ID             string        `json:"id"`
	Role           Role          `json:"role"`
	InstanceID     string        `json:"instance_id"`
	CardID         string        `json:"card_id"`
	Matched        []EffectKind  `json:"matched"`
	AgainstCardID  string        `json:"against_card_id"`
	ResponseWindow time.Duration `json:"response_window"`
}

// ActionKind classifies log entries.
type ActionKind string

const (
	ActionSetup           ActionKind = "setup"
	ActionPlayCard        ActionKind = "play_card"
	ActionChained         ActionKind = "chained_effect"
	ActionCounter         ActionKind = "counter"
	ActionTurnChange      ActionKind = "turn_change"
	ActionDraw            ActionKind = "draw"
	ActionPass            ActionKind = "pass"
	ActionModifierAdded   ActionKind = "modifier_added"
	ActionModifierExpired ActionKind = "modifier_expired"
	ActionPhaseChange     ActionKind = "phase_change"
	ActionMatchEnd        ActionKind = "match_end"
)

// LogEntry is an immutable record of something that happened in a match.
type LogEntry struct {
	ID              string            `json:"id"`
	Sequence        int               `json:"sequence"`
	Timestamp       time.Time         `json:"timestamp"`
	Turn            int               `json:"turn"`
	Actor           Role              `json:"actor,omitempty"`
	Action          ActionKind        `json:"action"`
	CardID          string            `json:"card_id,omitempty"`
	CardName        string            `json:"card_name,omitempty"`
	Payload         map[string]string `json:"payload,omitempty"`
	Effects         []EffectRecord    `json:"effects,omitempty"`
	EducationalNote string            `json:"educational_note,omitempty"`
}

// ConditionProgress is the live progress of one victory condition.
type ConditionProgress struct {
	Name     string  `json:"name"`
	Role     Role    `json:"role"`
	Progress float64 `json:"progress"`
	Points   float64 `json:"points"`
	Complete bool    `json:"complete"`
}

// Progress is the victory evaluation of a state.
type Progress struct {
	Conditions     []ConditionProgress `json:"conditions"`
	ClinicianScore float64             `json:"clinician_score"`
	PatientScore   float64             `json:"patient_score"`
	Terminal       bool                `json:"terminal"`
	Reason         string              `json:"reason,omitempty"`
}

// Condition returns the named condition progress.
func (p Progress) Condition(name string) (ConditionProgress, bool) {
	for _, c := range p.Conditions {
		if c.Name == name {
			return c, true
		}
	}
	return ConditionProgress{}, false
}

// Result is the outcome of a finished match. Winner is empty on a draw.
type Result struct {
	Winner         Role    `json:"winner,omitempty"`
	Draw           bool    `json:"draw"`
	Reason         string  `json:"reason"`
	ClinicianScore float64 `json:"clinician_score"`
	PatientScore   float64 `json:"patient_score"`
}

// MatchState is the canonical snapshot of one match.
type MatchState struct {
	MatchID    string     `json:"match_id"`
	ScenarioID string     `json:"scenario_id"`
	Seed       uint64     `json:"seed"`
	Difficulty Difficulty `json:"difficulty"`

	Turn       int    `json:"turn"`
	MaxTurns   int    `json:"max_turns"`
	ActiveRole Role   `json:"active_role"`
	FirstRole  Role   `json:"first_role"`
	Phase      Phase  `json:"phase"`
	Status     Status `json:"status"`

	Pools           map[Role]*resources.Pool  `json:"pools"`
	PrimaryResource map[Role]resources.Name   `json:"primary_resource"`
	Hands           map[Role][]CardInstance   `json:"hands"`
	Decks           map[Role][]CardDefinition `json:"decks"`
	ActiveEffects   map[Role][]ActiveEffect   `json:"active_effects"`
	ClueCategories  []string                  `json:"clue_categories"`
	DiscoveredClues []Clue                    `json:"discovered_clues"`
	Modifiers       []Modifier                `json:"modifiers"`
	Adjustments     Adjustments               `json:"adjustments"`

	CardsPlayedThisTurn []string             `json:"cards_played_this_turn"`
	TreatmentPlays      int                  `json:"treatment_plays"`
	LastCardPlayed      string               `json:"last_card_played,omitempty"`
	LastCardRole        Role                 `json:"last_card_role,omitempty"`
	PendingCounters     []CounterOpportunity `json:"pending_counters,omitempty"`
	InformationPenalty  int                  `json:"information_penalty"`
	AppliedChained      map[string]bool      `json:"applied_chained,omitempty"`

	Progress Progress   `json:"progress"`
	Result   *Result    `json:"result,omitempty"`
	Log      []LogEntry `json:"log"`
	Version  int64      `json:"version"`

	ids IDSource
}

// Finished reports whether the match accepts no more actions.
func (s *MatchState) Finished() bool {
	return s.Status == StatusFinished
}

// Pool returns the resource pool of a role.
func (s *MatchState) Pool(role Role) *resources.Pool {
	return s.Pools[role]
}

// HasClue reports whether a clue id has been discovered.
func (s *MatchState) HasClue(id string) bool {
	for _, c := range s.DiscoveredClues {
		if c.ID == id {
			return true
		}
	}
	return false
}

// PlayedThisTurn reports whether a card definition was played this turn.
func (s *MatchState) PlayedThisTurn(cardID string) bool {
	for _, id := range s.CardsPlayedThisTurn {
		if id == cardID {
			return true
		}
	}
	return false
}

// AppendLog stamps and appends a log entry.
func (s *MatchState) AppendLog(entry LogEntry) LogEntry {
	if entry.ID == "" {
		entry.ID = s.NewID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Sequence = len(s.Log) + 1
	entry.Turn = s.Turn
	s.Log = append(s.Log, entry)
	return entry
}

// Clone returns a deep copy. Card definitions are shared read-only data and
// are copied by value.
func (s *MatchState) Clone() *MatchState {
	if s == nil {
		return nil
	}
	cp := *s

	cp.Pools = make(map[Role]*resources.Pool, len(s.Pools))
	for role, pool := range s.Pools {
		cp.Pools[role] = pool.Copy()
	}
	cp.PrimaryResource = make(map[Role]resources.Name, len(s.PrimaryResource))
	for role, name := range s.PrimaryResource {
		cp.PrimaryResource[role] = name
	}
	cp.Hands = make(map[Role][]CardInstance, len(s.Hands))
	for role, hand := range s.Hands {
		cp.Hands[role] = append([]CardInstance(nil), hand...)
	}
	cp.Decks = make(map[Role][]CardDefinition, len(s.Decks))
	for role, deck := range s.Decks {
		cp.Decks[role] = append([]CardDefinition(nil), deck...)
	}
	cp.ActiveEffects = make(map[Role][]ActiveEffect, len(s.ActiveEffects))
	for role, effects := range s.ActiveEffects {
		list := make([]ActiveEffect, len(effects))
		for i, e := range effects {
			e.Triggers = append([]EffectKind(nil), e.Triggers...)
			list[i] = e
		}
		cp.ActiveEffects[role] = list
	}
	cp.ClueCategories = append([]string(nil), s.ClueCategories...)
	cp.DiscoveredClues = append([]Clue(nil), s.DiscoveredClues...)
	cp.Modifiers = make([]Modifier, len(s.Modifiers))
	for i, m := range s.Modifiers {
		cp.Modifiers[i] = m.Copy()
	}
	cp.Adjustments = s.Adjustments.Copy()
	cp.CardsPlayedThisTurn = append([]string(nil), s.CardsPlayedThisTurn...)
	if s.PendingCounters != nil {
		cp.PendingCounters = make([]CounterOpportunity, len(s.PendingCounters))
		for i, o := range s.PendingCounters {
			o.Matched = append([]EffectKind(nil), o.Matched...)
			cp.PendingCounters[i] = o
		}
	}
	if s.AppliedChained != nil {
		cp.AppliedChained = make(map[string]bool, len(s.AppliedChained))
		for id, v := range s.AppliedChained {
			cp.AppliedChained[id] = v
		}
	}
	cp.Progress.Conditions = append([]ConditionProgress(nil), s.Progress.Conditions...)
	if s.Result != nil {
		r := *s.Result
		cp.Result = &r
	}
	cp.Log = make([]LogEntry, len(s.Log))
	copy(cp.Log, s.Log)
	return &cp
}
