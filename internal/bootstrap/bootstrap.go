// Package bootstrap assembles the pieces every binary needs from
// configuration: the logger, card content and snapshot persistence.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicsim/clinic-server-go/internal/archive"
	"github.com/clinicsim/clinic-server-go/internal/catalog"
	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/repository"
	"github.com/clinicsim/clinic-server-go/internal/storage/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the logging section.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// Storage is the persistence a process writes snapshots to.
type Storage struct {
	DB      *repository.DB
	SQLite  *sqlite.Store
	Archive *archive.Sink
	Sink    game.MultiSink
}

// OpenStorage opens the configured database and archive. A "none" driver with
// the archive disabled yields an empty sink.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Storage, error) {
	s := &Storage{}
	switch cfg.Database.Driver {
	case "postgres":
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		s.DB = db
		s.Sink = append(s.Sink, repository.NewSnapshotRepository(db))
	case "sqlite":
		store, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.SQLite = store
		s.Sink = append(s.Sink, store)
		logger.Info("sqlite snapshot store opened", zap.String("path", cfg.Database.Path))
	}
	if cfg.Archive.Enabled {
		sink, err := archive.NewSink(cfg.Archive.Dir, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Archive = sink
		s.Sink = append(s.Sink, sink)
	}
	return s, nil
}

// Close flushes the archive and closes every store.
func (s *Storage) Close() error {
	var errs []error
	if s.Archive != nil {
		errs = append(errs, s.Archive.Close())
	}
	if s.SQLite != nil {
		errs = append(errs, s.SQLite.Close())
	}
	if s.DB != nil {
		s.DB.Close()
	}
	return errors.Join(errs...)
}

// LoadCatalog reads the catalog file and, for the postgres source, replaces
// its cards and decks with the stored ones.
func LoadCatalog(ctx context.Context, cfg *config.Config, db *repository.DB) (*catalog.Catalog, error) {
	base, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.Source != "postgres" {
		return base, nil
	}
	if db == nil {
		return nil, fmt.Errorf("catalog source postgres needs a database connection")
	}
	return repository.NewCardRepository(db).Catalog(ctx, base)
}
