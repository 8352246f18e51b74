package victory

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// AccurateDiagnosis is the clinician's win condition.
const AccurateDiagnosis = "accurate_diagnosis"

// Terminal reasons.
const (
	ReasonMaxTurns  = "max_turns"
	ReasonCondition = "condition"
	ReasonDepleted  = "depleted"
)

// Evaluator computes victory progress and detects the end of a match.
type Evaluator struct {
	cfg     config.GameConfig
	moments []string
}

// NewEvaluator creates an evaluator for the given game configuration.
func NewEvaluator(cfg config.GameConfig) *Evaluator {
	moments := make([]string, 0, len(cfg.Victory.LearningMoments))
	for name := range cfg.Victory.LearningMoments {
		moments = append(moments, name)
	}
	sort.Strings(moments)
	return &Evaluator{cfg: cfg, moments: moments}
}

// Evaluate returns the progress of every condition, both scores, and whether
// the state is terminal.
func (e *Evaluator) Evaluate(state *model.MatchState) model.Progress {
	var p model.Progress

	diag := e.diagnosis(state)
	p.Conditions = append(p.Conditions, diag)
	confidence := float64(state.Pool(model.RoleClinician).Get(resources.Confidence))
	p.ClinicianScore = confidence + e.cfg.Victory.ClueWeight*float64(len(state.DiscoveredClues))
	if diag.Complete {
		p.ClinicianScore += e.cfg.Victory.CompletionBonus
	}

	for _, name := range e.moments {
		c := e.learningMoment(state, name, e.cfg.Victory.LearningMoments[name])
		p.Conditions = append(p.Conditions, c)
		p.PatientScore += c.Points * c.Progress
	}
	p.ClinicianScore = round2(p.ClinicianScore)
	p.PatientScore = round2(p.PatientScore)

	switch {
	case diag.Complete:
		p.Terminal, p.Reason = true, AccurateDiagnosis
	case state.Turn >= state.MaxTurns:
		p.Terminal, p.Reason = true, ReasonMaxTurns
	}
	if !p.Terminal {
		for _, c := range p.Conditions[1:] {
			if c.Complete {
				p.Terminal, p.Reason = true, ReasonCondition+":"+c.Name
				break
			}
		}
	}
	if !p.Terminal {
		if role, name, ok := e.depleted(state); ok {
			p.Terminal, p.Reason = true, fmt.Sprintf("%s:%s.%s", ReasonDepleted, role, name)
		}
	}
	return p
}

func (e *Evaluator) diagnosis(state *model.MatchState) model.ConditionProgress {
	threshold := e.cfg.Victory.DiagnosisConfidence
	confidence := state.Pool(model.RoleClinician).Get(resources.Confidence)
	clues := len(state.DiscoveredClues)

	confPart := 1.0
	if threshold > 0 {
		confPart = math.Min(1, float64(confidence)/float64(threshold))
	}
	cluePart := 1.0
	if need := e.cfg.Victory.ClueThreshold; need > 0 {
		cluePart = math.Min(1, float64(clues)/float64(need))
	}
	complete := confidence >= threshold && clues >= e.cfg.Victory.ClueThreshold
	return model.ConditionProgress{
		Name:     AccurateDiagnosis,
		Role:     model.RoleClinician,
		Progress: round2(math.Min(confPart, cluePart)),
		Points:   e.cfg.Victory.CompletionBonus,
		Complete: complete,
	}
}

func (e *Evaluator) learningMoment(state *model.MatchState, name string, lm config.LearningMomentConfig) model.ConditionProgress {
	role := model.Role(lm.Role)
	res := resources.Name(lm.Resource)
	value := 0
	if pool := state.Pool(role); pool != nil {
		value = pool.Get(res)
	}
	start := e.cfg.Roles[lm.Role].Resources[lm.Resource].Start

	var progress float64
	switch lm.Direction {
	case "below":
		if start <= lm.Threshold {
			progress = boolProgress(value <= lm.Threshold)
		} else {
			progress = float64(start-value) / float64(start-lm.Threshold)
		}
	default:
		if start >= lm.Threshold {
			progress = boolProgress(value >= lm.Threshold)
		} else {
			progress = float64(value-start) / float64(lm.Threshold-start)
		}
	}
	progress = math.Max(0, math.Min(1, progress))
	return model.ConditionProgress{
		Name:     name,
		Role:     model.RolePatient,
		Progress: round2(progress),
		Points:   lm.Points,
		Complete: progress >= 1,
	}
}

func (e *Evaluator) depleted(state *model.MatchState) (model.Role, resources.Name, bool) {
	for _, role := range model.Roles {
		pool := state.Pool(role)
		if pool == nil {
			continue
		}
		for _, name := range e.cfg.Victory.FailureResources[string(role)] {
			if pool.AtFloor(resources.Name(name)) {
				return role, resources.Name(name), true
			}
		}
	}
	return "", "", false
}

// Decide picks the winner of a terminal evaluation. An accurate diagnosis
// wins outright; otherwise the strictly greater score wins and equal scores
// are a draw.
func Decide(p model.Progress) *model.Result {
	result := &model.Result{
		Reason:         p.Reason,
		ClinicianScore: p.ClinicianScore,
		PatientScore:   p.PatientScore,
	}
	switch {
	case p.Reason == AccurateDiagnosis:
		result.Winner = model.RoleClinician
	case p.ClinicianScore > p.PatientScore:
		result.Winner = model.RoleClinician
	case p.PatientScore > p.ClinicianScore:
		result.Winner = model.RolePatient
	default:
		result.Draw = true
	}
	return result
}

// Update stores fresh progress on the state and, when terminal, finishes the
// match: phase moves to scoring, the result is recorded and logged. It reports
// whether the match is over.
func (e *Evaluator) Update(state *model.MatchState) bool {
	if state.Finished() {
		return true
	}
	p := e.Evaluate(state)
	state.Progress = p
	if !p.Terminal {
		return false
	}

	result := Decide(p)
	state.Status = model.StatusFinished
	state.Phase = model.PhaseScoring
	state.Result = result
	state.PendingCounters = nil

	winner := string(result.Winner)
	if result.Draw {
		winner = "draw"
	}
	state.AppendLog(model.LogEntry{
		Action: model.ActionMatchEnd,
		Payload: map[string]string{
			"winner":          winner,
			"reason":          result.Reason,
			"clinician_score": strconv.FormatFloat(result.ClinicianScore, 'f', 2, 64),
			"patient_score":   strconv.FormatFloat(result.PatientScore, 'f', 2, 64),
		},
	})
	return true
}

func boolProgress(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
