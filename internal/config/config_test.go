package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingofeed/internal/bandit"
	"github.com/example/lingofeed/internal/database"
)

// inTempDir runs the test from an empty directory so no stray .env or
// config.yaml is picked up
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, defaultConfig().Validate())
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, database.TypeSQLite, cfg.Database.Type)
	assert.Equal(t, 20, cfg.Feed.DefaultLimit)
	assert.Equal(t, bandit.DefaultConfig(), cfg.Bandit)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.FlushInterval)
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	yaml := `
database:
  type: memory
feed:
  default_limit: 30
  pacing:
    boost: 5
scheduler:
  flush_interval: 10s
bandit:
  exploration_rate: 0.2
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LINGOFEED_BANDIT__EXPLORATION_RATE", "0.3")
	t.Setenv("LINGOFEED_SRS__MAX_CARDS", "2")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, database.TypeMemory, cfg.Database.Type)
	assert.Equal(t, 30, cfg.Feed.DefaultLimit)
	assert.InDelta(t, 5.0, cfg.Feed.Pacing.Boost, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.FlushInterval)
	assert.InDelta(t, 0.3, cfg.Bandit.ExplorationRate, 1e-9)
	assert.Equal(t, 2, cfg.SRS.MaxCards)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	// Untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Feed.Pacing.EarlyEnd)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LINGOFEED_LOG__LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LINGOFEED_LOG__LEVEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	inTempDir(t)
	t.Setenv("LINGOFEED_DATABASE__TYPE", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "database.dsn")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Feed.DefaultLimit = 0
	cfg.Feed.Pacing.EarlyEnd = 30
	cfg.Scheduler.CleanupAt = "3am"
	cfg.Bandit.ExplorationRate = 2

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"feed.default_limit", "early_end", "cleanup_at", "exploration rate"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "bandit.exploration_rate", envTransform("LINGOFEED_BANDIT__EXPLORATION_RATE"))
	assert.Equal(t, "feed.pacing.early_end", envTransform("LINGOFEED_FEED__PACING__EARLY_END"))
	assert.Equal(t, "database.dsn", envTransform("DATABASE_URL"))
	assert.Equal(t, "", envTransform("PATH"))
}
