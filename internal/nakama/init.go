package nakama

import (
	"context"
	"database/sql"

	"github.com/clinicsim/clinic-server-go/internal/catalog"
	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule loads configuration and content and registers the match handler.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	cfg := config.Default()
	if path := env[envConfigPath]; path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	catalogPath := cfg.Catalog.Path
	if path := env[envCatalogPath]; path != "" {
		catalogPath = path
	}
	content, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}

	handler := NewHandler(cfg.Game, content)
	if err := initializer.RegisterMatch(MatchName, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return handler, nil
	}); err != nil {
		return err
	}

	logger.Info("clinic module loaded with %d scenarios", len(content.Scenarios()))
	return nil
}
