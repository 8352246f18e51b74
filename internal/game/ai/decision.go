// Package ai picks plays for the computer-controlled role.
package ai

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/clinicsim/clinic-server-go/internal/game/targeting"
)

// Candidate is one scored card in the acting role's hand.
type Candidate struct {
	InstanceID string
	CardID     string
	TargetID   string
	Weight     float64
	Reasons    []string
}

// Decision is the engine's choice. Pass is set when nothing is playable so
// the caller can end the turn instead of waiting.
type Decision struct {
	Pass       bool
	InstanceID string
	CardID     string
	TargetID   string
	Score      float64
	Reason     string
	Candidates []Candidate
}

// DecisionEngine scores hands and picks a play with weighted randomness.
type DecisionEngine struct {
	cfg       config.AIConfig
	validator *rules.Validator
	rng       *rand.Rand
}

// NewDecisionEngine creates a decision engine drawing from rng.
func NewDecisionEngine(cfg config.AIConfig, rng *rand.Rand) *DecisionEngine {
	return &DecisionEngine{cfg: cfg, validator: rules.NewValidator(), rng: rng}
}

// Score returns the playable cards of role's hand, highest weight first.
// Cards that fail validation score zero and are left out.
func (d *DecisionEngine) Score(state *model.MatchState, role model.Role) []Candidate {
	var out []Candidate
	for _, inst := range state.Hands[role] {
		c, ok := d.score(state, role, inst)
		if ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].CardID < out[j].CardID
	})
	return out
}

// Choose picks one of the top-N candidates, weighted by score.
func (d *DecisionEngine) Choose(state *model.MatchState, role model.Role) Decision {
	candidates := d.Score(state, role)
	if len(candidates) == 0 {
		return Decision{Pass: true, Reason: "no playable cards"}
	}

	top := candidates
	if n := max(1, d.cfg.TopN); len(top) > n {
		top = top[:n]
	}
	var total float64
	for _, c := range top {
		total += c.Weight
	}
	pick := top[0]
	r := d.rng.Float64() * total
	for _, c := range top {
		if r < c.Weight {
			pick = c
			break
		}
		r -= c.Weight
	}

	return Decision{
		InstanceID: pick.InstanceID,
		CardID:     pick.CardID,
		TargetID:   pick.TargetID,
		Score:      pick.Weight,
		Reason:     strings.Join(pick.Reasons, ", "),
		Candidates: candidates,
	}
}

func (d *DecisionEngine) score(state *model.MatchState, role model.Role, inst model.CardInstance) (Candidate, bool) {
	def := inst.Definition
	c := Candidate{InstanceID: inst.InstanceID, CardID: def.ID}

	if def.RequiresTarget != model.TargetNone {
		target, ok := pickTarget(state, role, def.RequiresTarget)
		if !ok {
			return c, false
		}
		c.TargetID = target
	}
	if rej := d.validator.Validate(state, inst.InstanceID, role, c.TargetID); rej != nil {
		return c, false
	}

	c.Weight = d.cfg.BaseWeight
	c.Reasons = append(c.Reasons, "playable")
	if reason, ok := d.deficiency(state, role, def); ok {
		c.Weight += d.cfg.StrategicBonus
		c.Reasons = append(c.Reasons, reason)
	}
	if d.urgent(state, def) {
		c.Weight += d.cfg.UrgencyBonus
		c.Reasons = append(c.Reasons, "late in the encounter")
	}
	return c, c.Weight > 0
}

// deficiency reports whether def addresses a weakness in the current state.
func (d *DecisionEngine) deficiency(state *model.MatchState, role model.Role, def model.CardDefinition) (string, bool) {
	rapport := state.Pool(model.RoleClinician).Get(resources.Rapport)
	switch role {
	case model.RoleClinician:
		if rapport <= d.cfg.LowRapport && (def.Type == model.CardCommunication || def.RapportChange > 0) {
			return "rebuilds low rapport", true
		}
		cooperation := state.Pool(model.RolePatient).Get(resources.Cooperation)
		if cooperation <= d.cfg.LowRapport && def.CooperationChange > 0 {
			return "restores cooperation", true
		}
	case model.RolePatient:
		if rapport >= d.cfg.HighRapport && (def.Type == model.CardDeflection || def.Type == model.CardEmotionalState) {
			return "resists a trusted clinician", true
		}
		if len(state.DiscoveredClues) > 0 && def.InformationReduction > 0 {
			return "withholds further findings", true
		}
	}
	return "", false
}

func (d *DecisionEngine) urgent(state *model.MatchState, def model.CardDefinition) bool {
	if state.Turn <= state.MaxTurns-d.cfg.UrgencyTurns {
		return false
	}
	switch def.Type {
	case model.CardAssessment, model.CardClinicalReasoning:
		return true
	}
	return false
}

// pickTarget prefers the most confident clue; other kinds take the first
// legal candidate.
func pickTarget(state *model.MatchState, role model.Role, kind model.TargetKind) (string, bool) {
	candidates := targeting.Candidates(state, role, kind)
	if len(candidates) == 0 {
		return "", false
	}
	if kind != model.TargetClue {
		return candidates[0], true
	}
	best, bestConf := "", -1.0
	for _, clue := range state.DiscoveredClues {
		if clue.Confidence > bestConf {
			best, bestConf = clue.ID, clue.Confidence
		}
	}
	return best, true
}
