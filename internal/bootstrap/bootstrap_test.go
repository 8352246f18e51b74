package bootstrap

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(config.LoggingConfig{Level: tt.level, Format: "json"})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func repoFile(t *testing.T, parts ...string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(append([]string{filepath.Dir(file), "..", ".."}, parts...)...)
}

func TestOpenStorageSQLiteAndArchive(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(dir, "clinic.db")
	cfg.Archive.Enabled = true
	cfg.Archive.Dir = filepath.Join(dir, "archive")

	storage, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, storage.Sink, 2)
	assert.NotNil(t, storage.SQLite)
	assert.NotNil(t, storage.Archive)
	assert.Nil(t, storage.DB)
	require.NoError(t, storage.Close())
}

func TestOpenStorageNone(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "none"
	cfg.Archive.Enabled = false

	storage, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, storage.Sink)
	assert.NoError(t, storage.Close())
}

func TestLoadCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Source = "yaml"
	cfg.Catalog.Path = repoFile(t, "data", "catalog.yaml")

	c, err := LoadCatalog(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, c.RolePool(model.RoleClinician))

	cfg.Catalog.Source = "postgres"
	_, err = LoadCatalog(context.Background(), cfg, nil)
	assert.Error(t, err)
}
