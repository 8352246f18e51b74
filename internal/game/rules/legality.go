package rules

import (
	"fmt"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/targeting"
)

// Validator gatekeeps proposed plays. Checks run in a fixed order and stop
// at the first failure: turn ownership, hand membership, resources,
// targeting, timing.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// CheckTurn rejects actions by a role that does not hold the turn. Actions on
// a finished match are rejected the same way.
func (v *Validator) CheckTurn(state *model.MatchState, role model.Role) *Rejection {
	if state.Finished() {
		rej := reject(CodeNotYourTurn, "the encounter has ended", "start a new encounter to keep practising")
		rej.Details = map[string]string{"status": string(state.Status)}
		return rej
	}
	if state.ActiveRole != role {
		return reject(CodeNotYourTurn,
			fmt.Sprintf("it is the %s's turn", state.ActiveRole),
			fmt.Sprintf("wait for the %s to end their turn", state.ActiveRole))
	}
	return nil
}

// Validate checks whether role may play the card instance, optionally at targetID.
// A nil result means the play is legal.
func (v *Validator) Validate(state *model.MatchState, instanceID string, role model.Role, targetID string) *Rejection {
	if rej := v.CheckTurn(state, role); rej != nil {
		return rej
	}

	idx := model.FindInstance(state.Hands[role], strings.TrimSpace(instanceID))
	if idx < 0 {
		rej := reject(CodeNotFound,
			fmt.Sprintf("card %q is not in the %s's hand", instanceID, role),
			"choose a card from your current hand")
		rej.Details = map[string]string{"instance_id": instanceID}
		return rej
	}
	card := state.Hands[role][idx].Definition

	if rej := v.checkResources(state, card); rej != nil {
		return rej
	}

	if res := targeting.Check(state, role, card.RequiresTarget, targetID); !res.Legal {
		suggestions := []string{"pick a different target"}
		if candidates := targeting.Candidates(state, role, card.RequiresTarget); len(candidates) > 0 {
			suggestions = []string{"target one of: " + strings.Join(candidates, ", ")}
		} else if card.RequiresTarget == model.TargetClue {
			suggestions = []string{"reveal a clue before playing this card"}
		}
		return reject(CodeInvalidTarget, res.Reason, suggestions...)
	}

	return v.checkTiming(state, card)
}

// CheckAffordable reports whether role could pay for card right now,
// ignoring turn ownership and targeting.
func (v *Validator) CheckAffordable(state *model.MatchState, card model.CardDefinition) *Rejection {
	return v.checkResources(state, card)
}

func (v *Validator) checkResources(state *model.MatchState, card model.CardDefinition) *Rejection {
	cost := modifiers.CostFor(state, card)
	name, short := cost.Shortfall(state.Pool(card.Role))
	if !short {
		return nil
	}
	if cost.Infinite {
		rej := reject(CodeInsufficientResources,
			fmt.Sprintf("insufficient %s: treatment plays are limited to %d this turn", name, state.Adjustments.TreatmentLimit),
			"play a non-treatment card", "end your turn to reset the treatment limit")
		rej.Details = map[string]string{"resource": string(name), "cost": "infinite"}
		return rej
	}
	have := state.Pool(card.Role).Get(name)
	rej := reject(CodeInsufficientResources,
		fmt.Sprintf("insufficient %s: need %d, have %d", name, cost.Amounts[name], have),
		fmt.Sprintf("end your turn to regenerate %s", state.PrimaryResource[card.Role]),
		"play a cheaper card")
	rej.Details = map[string]string{
		"resource": string(name),
		"cost":     fmt.Sprintf("%d", cost.Amounts[name]),
		"have":     fmt.Sprintf("%d", have),
	}
	return rej
}

func (v *Validator) checkTiming(state *model.MatchState, card model.CardDefinition) *Rejection {
	if !card.AllowedIn(state.Phase) {
		phases := make([]string, len(card.PhaseRestrictions))
		for i, p := range card.PhaseRestrictions {
			phases[i] = string(p)
		}
		return reject(CodeWrongPhase,
			fmt.Sprintf("%s cannot be played during %s", card.Name, state.Phase),
			"this card can be played during: "+strings.Join(phases, ", "))
	}
	if card.OncePerTurn && state.PlayedThisTurn(card.ID) {
		return reject(CodeOncePerTurn,
			fmt.Sprintf("%s can only be played once per turn", card.Name),
			"play it again next turn")
	}
	if have := len(state.DiscoveredClues); have < card.RequiresClues {
		return reject(CodeRequiresClues,
			fmt.Sprintf("%s needs %d discovered clues, have %d", card.Name, card.RequiresClues, have),
			fmt.Sprintf("reveal %d more clue(s) first", card.RequiresClues-have))
	}
	return nil
}

// ValidateCounter checks that role may answer the pending opportunity. Counters
// are played out of turn, so turn ownership is replaced by the opportunity
// itself; resources are still checked against the modified cost.
func (v *Validator) ValidateCounter(state *model.MatchState, role model.Role, opportunityID string) (model.CounterOpportunity, model.CardInstance, *Rejection) {
	if state.Finished() {
		return model.CounterOpportunity{}, model.CardInstance{}, v.CheckTurn(state, role)
	}
	for _, opp := range state.PendingCounters {
		if opp.ID != opportunityID {
			continue
		}
		if opp.Role != role {
			return opp, model.CardInstance{}, reject(CodeNotYourTurn,
				fmt.Sprintf("counter opportunity belongs to the %s", opp.Role))
		}
		idx := model.FindInstance(state.Hands[role], opp.InstanceID)
		if idx < 0 {
			return opp, model.CardInstance{}, reject(CodeNotFound,
				"the counter card is no longer in hand")
		}
		inst := state.Hands[role][idx]
		if rej := v.checkResources(state, inst.Definition); rej != nil {
			return opp, inst, rej
		}
		return opp, inst, nil
	}
	return model.CounterOpportunity{}, model.CardInstance{}, reject(CodeNotFound,
		fmt.Sprintf("no pending counter opportunity %q", opportunityID),
		"counter opportunities expire when the active role acts again")
}
