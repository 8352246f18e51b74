package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Game.Turns["intermediate"])
	assert.Equal(t, 85, cfg.Game.Victory.DiagnosisConfidence)
	assert.Equal(t, HandConfig{Initial: 5, Floor: 3, Max: 7}, cfg.Game.Hand)
	assert.Equal(t, 15, cfg.Game.Roles["clinician"].Resources["energy"].Max)
	assert.Equal(t, 1, cfg.Game.Roles["patient"].MinRegeneration)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  grpc:
    address: "127.0.0.1:9000"
logging:
  level: debug
  format: json
game:
  turns:
    advanced: 6
  hand:
    initial: 4
    floor: 2
    max: 6
  counters:
    response_window: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.GRPC.Address)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 6, cfg.Game.Turns["advanced"])
	assert.Equal(t, 10, cfg.Game.Turns["intermediate"], "unset bands keep defaults")
	assert.Equal(t, 2, cfg.Game.Hand.Floor)
	assert.Equal(t, 3*time.Second, cfg.Game.Counters.ResponseWindow)
	assert.Equal(t, 0.05, cfg.Game.Clues.CooperationWeight)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLINIC_SERVER_GRPC_ADDRESS", ":7000")
	t.Setenv("CLINIC_DATABASE_DRIVER", "none")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.GRPC.Address)
	assert.Equal(t, "none", cfg.Database.Driver)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		_, err := Load(writeConfig(t, "database:\n  driver: mongo\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mongo")
	})

	t.Run("postgres catalog without postgres database", func(t *testing.T) {
		_, err := Load(writeConfig(t, "catalog:\n  source: postgres\n"))
		require.Error(t, err)
	})
}

func TestGameValidate(t *testing.T) {
	g := DefaultGame()
	require.NoError(t, g.Validate())

	bad := DefaultGame()
	bad.Roles["clinician"] = RoleConfig{Primary: "mana", Resources: map[string]ResourceConfig{"energy": {Max: 5}}}
	assert.Error(t, bad.Validate())

	bad = DefaultGame()
	bad.AI.TopN = 0
	assert.Error(t, bad.Validate())

	bad = DefaultGame()
	patient := bad.Roles["patient"]
	patient.MinRegeneration = -1
	bad.Roles["patient"] = patient
	assert.Error(t, bad.Validate())

	n, err := g.MaxTurns("advanced")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	_, err = g.MaxTurns("legendary")
	assert.Error(t, err)
}
