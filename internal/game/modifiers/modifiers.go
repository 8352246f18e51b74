package modifiers

import (
	"math"
	"sort"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// Fold sums the effects of all modifiers into the derived adjustment table.
// Every kind is additive; opposing signs cancel by summation.
func Fold(mods []model.Modifier) model.Adjustments {
	adj := model.Adjustments{
		CostDelta:  make(map[model.CardType]int),
		RegenDelta: make(map[model.Role]int),
	}
	for _, mod := range mods {
		for _, eff := range mod.Effects {
			switch eff.Kind {
			case model.ModifierCardCost:
				key := eff.CardType
				if key == "" {
					key = model.CardAnyType
				}
				adj.CostDelta[key] += magnitude(eff)
			case model.ModifierRegeneration:
				if eff.Role == "" {
					for _, role := range model.Roles {
						adj.RegenDelta[role] += magnitude(eff)
					}
					continue
				}
				adj.RegenDelta[eff.Role] += magnitude(eff)
			case model.ModifierTreatmentLimit:
				adj.TreatmentLimit += magnitude(eff)
			case model.ModifierAssessmentFailure:
				adj.AssessmentFailure += eff.Magnitude
			case model.ModifierCooperationBonus:
				adj.CooperationBonus += magnitude(eff)
			case model.ModifierResourceShift:
				// applied to pools once, on activation
			}
		}
	}
	if adj.AssessmentFailure < 0 {
		adj.AssessmentFailure = 0
	}
	if adj.AssessmentFailure > 1 {
		adj.AssessmentFailure = 1
	}
	return adj
}

func magnitude(eff model.ModifierEffect) int {
	return int(math.Round(eff.Magnitude))
}

// Apply activates modifiers on the state: each gets an instance id, resource
// shifts are written into the pools, and the adjustment table is rebuilt.
func Apply(state *model.MatchState, mods ...model.Modifier) *model.MatchState {
	for _, mod := range mods {
		mod = mod.Copy()
		if mod.ID == "" {
			mod.ID = state.NewID()
		}
		for _, eff := range mod.Effects {
			if eff.Kind != model.ModifierResourceShift {
				continue
			}
			if pool := state.Pools[eff.Role]; pool != nil {
				pool.Add(eff.Resource, magnitude(eff))
			}
		}
		state.Modifiers = append(state.Modifiers, mod)
	}
	state.Adjustments = Fold(state.Modifiers)
	return state
}

// Tick advances timed modifiers by one turn cycle. Permanent modifiers pass
// through; timed ones are decremented and dropped at zero. The expired
// modifiers are returned so callers can log them.
func Tick(state *model.MatchState) (*model.MatchState, []model.Modifier) {
	var (
		kept    = make([]model.Modifier, 0, len(state.Modifiers))
		expired []model.Modifier
	)
	for _, mod := range state.Modifiers {
		if mod.Duration.Permanent {
			kept = append(kept, mod)
			continue
		}
		mod.Duration.Turns--
		if mod.Duration.Turns <= 0 {
			expired = append(expired, mod)
			continue
		}
		kept = append(kept, mod)
	}
	state.Modifiers = kept
	state.Adjustments = Fold(kept)
	return state, expired
}

// Cost is the modified cost of a card. Infinite marks a card that cannot be
// paid for at all, such as a treatment past its play limit.
type Cost struct {
	Amounts  map[resources.Name]int
	Primary  resources.Name
	Infinite bool
}

// TreatmentLimitReached reports whether another treatment play is blocked.
func TreatmentLimitReached(state *model.MatchState) bool {
	limit := state.Adjustments.TreatmentLimit
	return limit > 0 && state.TreatmentPlays >= limit
}

// CostFor computes the cost of card under the state's adjustments. Card cost
// deltas apply to the primary resource of the card's role; matching deltas for
// the card's type and the wildcard are summed and the result floored at zero.
func CostFor(state *model.MatchState, card model.CardDefinition) Cost {
	primary := state.PrimaryResource[card.Role]
	if card.Type == model.CardTreatment && TreatmentLimitReached(state) {
		return Cost{Primary: primary, Infinite: true}
	}

	amounts := make(map[resources.Name]int, len(card.Costs)+1)
	for name, amount := range card.Costs {
		amounts[name] = amount
	}

	delta := state.Adjustments.CostDelta[card.Type] + state.Adjustments.CostDelta[model.CardAnyType]
	if delta != 0 && primary != "" {
		amounts[primary] += delta
	}
	for name, amount := range amounts {
		if amount < 0 {
			amounts[name] = 0
		}
	}
	return Cost{Amounts: amounts, Primary: primary}
}

// Shortfall returns the first resource (in name order) the pool cannot cover.
func (c Cost) Shortfall(pool *resources.Pool) (resources.Name, bool) {
	if c.Infinite {
		if c.Primary == "" {
			return resources.Energy, true
		}
		return c.Primary, true
	}
	names := make([]resources.Name, 0, len(c.Amounts))
	for name := range c.Amounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		if c.Amounts[name] > 0 && (pool == nil || pool.Get(name) < c.Amounts[name]) {
			return name, true
		}
	}
	return "", false
}

// Pay deducts the cost from pool.
func (c Cost) Pay(pool *resources.Pool) {
	if c.Infinite || pool == nil {
		return
	}
	for name, amount := range c.Amounts {
		pool.Add(name, -amount)
	}
}

// Regeneration returns the per-turn regeneration of role: base plus all
// regeneration deltas, never less than floor.
func Regeneration(state *model.MatchState, role model.Role, base, floor int) int {
	return max(base+state.Adjustments.RegenDelta[role], floor)
}
