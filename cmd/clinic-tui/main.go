// Command clinic-tui plays one encounter in the terminal against the
// computer-controlled side.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/clinicsim/clinic-server-go/internal/bootstrap"
	"github.com/clinicsim/clinic-server-go/internal/catalog"
	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
)

func main() {
	configPath := flag.String("config", "", "optional configuration file")
	catalogPath := flag.String("catalog", "data/catalog.yaml", "card catalog")
	scenarioID := flag.String("scenario", "chest_pain", "scenario to play")
	difficulty := flag.String("difficulty", "beginner", "beginner, intermediate or advanced")
	roleFlag := flag.String("role", "clinician", "role to play")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// The terminal belongs to bubbletea, so only errors are logged.
	cfg.Logging.Level = "error"
	logger, err := bootstrap.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	content, err := catalog.Load(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	diff, err := model.ParseDifficulty(*difficulty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	role, err := model.ParseRole(*roleFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	matches := game.NewManager(cfg.Game, content, nil, logger)
	defer matches.Close()

	match, err := matches.Create(game.Options{
		ScenarioID:   *scenarioID,
		Difficulty:   diff,
		OpponentRole: role.Opponent(),
		AutoOpponent: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create match: %v\n", err)
		os.Exit(1)
	}
	if match.State().ActiveRole != role {
		match.ScheduleOpponentTurn(cfg.Game.AI.ThinkingDelay)
	}

	if _, err := tea.NewProgram(newModel(match, role), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
