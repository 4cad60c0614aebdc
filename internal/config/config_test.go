package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "feedsim.yaml")
	cfg := Default()
	cfg.Feed.PromoteMax = 8
	cfg.Feed.StockInterval = 90 * time.Second
	cfg.Generation.Chain = cfg.Generation.Chain[1:]
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Feed.PromoteMax)
	assert.Equal(t, 90*time.Second, got.Feed.StockInterval)
	assert.Len(t, got.Generation.Chain, 2)
	assert.Equal(t, "gemini-2.5-flash", got.Generation.Chain[0].Model)
	assert.False(t, got.Generation.Chain[0].UseSearch)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  minStock: 2\n"), 0o644))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Feed.MinStock)
	assert.Equal(t, 10, got.Feed.BatchSize)
	assert.Len(t, got.Generation.Chain, 3)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEEDSIM_GENERATION_API_KEY", "env-key")
	t.Setenv("FEEDSIM_DB_PATH", ":memory:")
	t.Setenv("FEEDSIM_LOG_LEVEL", "debug")
	t.Setenv("FEEDSIM_GEN_RPS", "2.5")
	t.Setenv("FEEDSIM_GEN_BURST", "7")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Credentials.DefaultAPIKey)
	assert.Equal(t, ":memory:", cfg.Storage.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.InDelta(t, 2.5, cfg.Generation.RequestsPerSecond, 1e-9)
	assert.Equal(t, 7, cfg.Generation.Burst)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty chain":     func(c *Config) { c.Generation.Chain = nil },
		"negative burst":  func(c *Config) { c.Generation.Burst = -1 },
		"blank model":     func(c *Config) { c.Generation.Chain[0].Model = "" },
		"language":        func(c *Config) { c.Generation.Language = "fr" },
		"promote range":   func(c *Config) { c.Feed.PromoteMin, c.Feed.PromoteMax = 4, 2 },
		"batch size":      func(c *Config) { c.Feed.BatchSize = 0 },
		"negative weight": func(c *Config) { c.Reactions["cat"] = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
