package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/clinicsim/clinic-server-go/internal/bootstrap"
	"github.com/clinicsim/clinic-server-go/internal/catalog"
	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game"
	clinicmcp "github.com/clinicsim/clinic-server-go/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var version = "dev"

func main() {
	catalogPath := flag.String("catalog", "data/catalog.yaml", "path to the card catalog")
	logLevel := flag.String("log-level", "warn", "log level; logs go to stderr")
	flag.Parse()

	logger, err := bootstrap.NewLogger(config.LoggingConfig{Level: *logLevel, Format: "json"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	content, err := catalog.Load(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	matches := game.NewManager(config.DefaultGame(), content, nil, logger)
	defer matches.Close()

	s := server.NewMCPServer("clinic", version)
	clinicmcp.NewTools(matches, content).Register(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
