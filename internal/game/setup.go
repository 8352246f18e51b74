package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/modifiers"
	"github.com/clinicsim/clinic-server-go/internal/game/resources"
)

// BuildPools creates both roles' resource pools and primary resources from
// configuration.
func BuildPools(cfg config.GameConfig) (map[model.Role]*resources.Pool, map[model.Role]resources.Name, error) {
	pools := make(map[model.Role]*resources.Pool, len(model.Roles))
	primary := make(map[model.Role]resources.Name, len(model.Roles))
	for _, role := range model.Roles {
		rc, ok := cfg.Roles[string(role)]
		if !ok {
			return nil, nil, fmt.Errorf("no resource configuration for role %s", role)
		}
		ranges := make(map[resources.Name]resources.Range, len(rc.Resources))
		start := make(map[resources.Name]int, len(rc.Resources))
		for name, r := range rc.Resources {
			ranges[resources.Name(name)] = resources.Range{Min: r.Min, Max: r.Max}
			start[resources.Name(name)] = r.Start
		}
		pool, err := resources.NewPool(ranges, start)
		if err != nil {
			return nil, nil, fmt.Errorf("role %s: %w", role, err)
		}
		pools[role] = pool
		primary[role] = resources.Name(rc.Primary)
	}
	return pools, primary, nil
}

// newState builds the opening state of a match: configured pools, shuffled
// decks, initial hands and the scenario's difficulty modifiers.
func newState(cfg config.GameConfig, content Content, opts Options, rng *rand.Rand) (*model.MatchState, error) {
	scenario, ok := content.Scenario(opts.ScenarioID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, opts.ScenarioID)
	}
	maxTurns, err := cfg.MaxTurns(string(opts.Difficulty))
	if err != nil {
		return nil, err
	}
	pools, primary, err := BuildPools(cfg)
	if err != nil {
		return nil, err
	}

	state := &model.MatchState{
		MatchID:         opts.ID,
		ScenarioID:      scenario.ID,
		Seed:            opts.Seed,
		Difficulty:      opts.Difficulty,
		Turn:            1,
		MaxTurns:        maxTurns,
		ActiveRole:      model.RoleClinician,
		FirstRole:       model.RoleClinician,
		Phase:           model.PhaseSetup,
		Status:          model.StatusInProgress,
		Pools:           pools,
		PrimaryResource: primary,
		Hands:           make(map[model.Role][]model.CardInstance, len(model.Roles)),
		Decks:           make(map[model.Role][]model.CardDefinition, len(model.Roles)),
		ActiveEffects:   make(map[model.Role][]model.ActiveEffect, len(model.Roles)),
		ClueCategories:  append([]string(nil), scenario.ClueCategories...),
		Adjustments:     modifiers.Fold(nil),
	}
	state.SetIDSource(model.NewSeededIDs(rng))

	for _, role := range model.Roles {
		deck := append([]model.CardDefinition(nil), content.RolePool(role)...)
		rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
		n := min(cfg.Hand.Initial, len(deck))
		hand := make([]model.CardInstance, 0, n)
		for _, def := range deck[:n] {
			hand = append(hand, state.NewCard(def))
		}
		state.Hands[role] = hand
		state.Decks[role] = deck[n:]
		state.ActiveEffects[role] = []model.ActiveEffect{}
	}

	keys := scenario.ModifiersFor(opts.Difficulty)
	mods := make([]model.Modifier, 0, len(keys))
	for _, key := range keys {
		mod, ok := content.Modifier(key)
		if !ok {
			return nil, fmt.Errorf("scenario %s: unknown modifier %q", scenario.ID, key)
		}
		mods = append(mods, mod)
	}
	modifiers.Apply(state, mods...)

	state.AppendLog(model.LogEntry{
		Action: model.ActionSetup,
		Payload: map[string]string{
			"scenario":   scenario.ID,
			"difficulty": string(opts.Difficulty),
			"max_turns":  fmt.Sprintf("%d", maxTurns),
			"seed":       fmt.Sprintf("%d", opts.Seed),
			"modifiers":  fmt.Sprintf("%v", keys),
		},
	})
	state.Phase = model.PhaseInvestigation
	return state, nil
}
