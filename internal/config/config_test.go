package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "agscout.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.InDelta(t, 1.0, cfg.Fetch.HostRate, 0.001)
	assert.Equal(t, 2, cfg.Fetch.HostBurst)
	assert.Equal(t, 512, cfg.Fetch.MaxBodyKB)
	assert.Equal(t, 10, cfg.Discovery.TargetCount)
	assert.Equal(t, 2, cfg.Discovery.MaxRetries)
	assert.Equal(t, 2, cfg.Discovery.RetryDelaySecs)
	assert.Equal(t, "agriculture", cfg.Discovery.Query)
	assert.Equal(t, 6, cfg.Extract.MaxCandidates)
	assert.Equal(t, "AgTech", cfg.Extract.Industry)
	assert.False(t, cfg.Extract.Synthesize)
	assert.Equal(t, 30, cfg.Validation.AcceptScore)
	assert.Equal(t, 60, cfg.Validation.ValidScore)
	assert.Equal(t, 3, cfg.Enrich.Concurrency)
	assert.Equal(t, 168, cfg.Enrich.MaxAgeHours)
	assert.Equal(t, 10, cfg.Enrich.MaxEmails)
	assert.Equal(t, 3, cfg.Enrich.MaxPhones)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/agscout
log:
  level: debug
  format: console
server:
  port: 9090
discovery:
  target_count: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/agscout", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Discovery.TargetCount)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Validation.AcceptScore)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("AGSCOUT_STORE_DRIVER", "postgres")
	t.Setenv("AGSCOUT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("AGSCOUT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation cares about.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "agscout.db"
	cfg.Server.Port = 8080
	cfg.Discovery.TargetCount = 10
	cfg.Validation.AcceptScore = 30
	cfg.Validation.ValidScore = 60
	cfg.Enrich.Concurrency = 3
	return cfg
}

func TestValidateDiscover_OK(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("discover"))
}

func TestValidateDiscover_BadTarget(t *testing.T) {
	cfg := validDefaults()
	cfg.Discovery.TargetCount = 0

	err := cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "discovery.target_count must be >= 1")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/agscout"
	assert.NoError(t, cfg.Validate("discover"))

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateThresholdOrdering(t *testing.T) {
	cfg := validDefaults()
	cfg.Validation.AcceptScore = 80
	cfg.Validation.ValidScore = 60

	err := cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed validation.valid_score")

	cfg.Validation.AcceptScore = 101
	err = cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation.accept_score must be between 0 and 100")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateEnrichConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Enrich.Concurrency = 0
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.concurrency must be between 1 and 20")

	cfg.Enrich.Concurrency = 21
	err = cfg.Validate("enrich")
	assert.Error(t, err)

	cfg.Enrich.Concurrency = 20
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
