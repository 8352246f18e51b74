// Command web-demo serves a single computer-played encounter over the
// websocket hub so a browser can spectate it.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/bootstrap"
	"github.com/clinicsim/clinic-server-go/internal/catalog"
	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/ai"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/realtime"
	"go.uber.org/zap"
)

var (
	addr        = flag.String("addr", ":8080", "websocket listen address")
	catalogPath = flag.String("catalog", "data/catalog.yaml", "card catalog")
	scenarioID  = flag.String("scenario", "chest_pain", "scenario to play")
	difficulty  = flag.String("difficulty", "beginner", "beginner, intermediate or advanced")
	replayDir   = flag.String("replays", "data/replays", "directory finished replays are saved to")
	pace        = flag.Duration("pace", 2*time.Second, "delay between clinician plays")
)

func main() {
	flag.Parse()

	logger, err := bootstrap.NewLogger(config.LoggingConfig{Level: "info", Format: "console"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	content, err := catalog.Load(*catalogPath)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	diff, err := model.ParseDifficulty(*difficulty)
	if err != nil {
		logger.Fatal("bad difficulty", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.DefaultGame()
	recorder := game.NewReplayRecorder(logger, *replayDir)
	matches := game.NewManager(cfg, content, recorder, logger)
	defer matches.Close()

	wsCfg := config.Default().Server.WebSocket
	wsCfg.Address = *addr
	hub := realtime.NewHub(matches, wsCfg, logger)
	matches.AddSink(hub)
	go hub.Run(ctx)

	match, err := matches.Create(game.Options{
		ScenarioID:   *scenarioID,
		Difficulty:   diff,
		OpponentRole: model.RolePatient,
		AutoOpponent: true,
	})
	if err != nil {
		logger.Fatal("failed to create match", zap.Error(err))
	}
	recorder.StartRecording(match.ID())
	logger.Info("demo match created",
		zap.String("match_id", match.ID()),
		zap.String("join", `{"type":"join","match_id":"`+match.ID()+`"}`),
	)

	srv := &http.Server{Addr: *addr, Handler: hub, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("web demo listening", zap.String("address", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	autoplay(ctx, match, ai.NewDecisionEngine(cfg.AI, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))), logger)

	if err := recorder.SaveReplay(match.ID()); err != nil {
		logger.Warn("failed to save replay", zap.Error(err))
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// autoplay drives the clinician side until the match ends. The patient side
// is played by the match's own scheduled opponent.
func autoplay(ctx context.Context, match *game.Match, engine *ai.DecisionEngine, logger *zap.Logger) {
	ticker := time.NewTicker(*pace)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := match.State()
		if state.Finished() {
			if state.Result != nil {
				logger.Info("demo match finished",
					zap.String("winner", string(state.Result.Winner)),
					zap.String("reason", state.Result.Reason),
				)
			}
			return
		}
		if state.ActiveRole != model.RoleClinician {
			continue
		}

		decision := engine.Choose(state, model.RoleClinician)
		var err error
		if decision.Pass {
			_, err = match.EndTurn(ctx, model.RoleClinician)
		} else {
			_, err = match.PlayCard(ctx, model.RoleClinician, decision.InstanceID, decision.TargetID)
		}
		if err != nil {
			logger.Warn("clinician action refused", zap.String("card", decision.CardID), zap.Error(err))
			if _, err := match.EndTurn(ctx, model.RoleClinician); err != nil {
				logger.Warn("end turn refused", zap.Error(err))
			}
		}
	}
}
