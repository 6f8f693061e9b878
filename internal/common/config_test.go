package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "colligo_tasks", config.Queue.Name)
	assert.Equal(t, 4, config.Workers.Concurrency)
	assert.Equal(t, 3, config.Workers.MaxRetries)
	assert.Equal(t, 5*time.Second, config.PollTimeout())
	assert.Equal(t, 2*time.Second, config.BackoffBase())
	assert.Equal(t, 10*time.Minute, config.StaleAfter())
	assert.Equal(t, 500*time.Millisecond, config.ScrapeRateLimit())
}

func TestLoadFromFilesMerge(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[workers]
concurrency = 8
`), 0644))

	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	// Later files win; untouched sections keep earlier or default values.
	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, 8, config.Workers.Concurrency)
	assert.Equal(t, "colligo_tasks", config.Queue.Name)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COLLIGO_SERVER_PORT", "7070")
	t.Setenv("COLLIGO_WORKERS_MAX_RETRIES", "5")
	t.Setenv("COLLIGO_QUEUE_POLL_TIMEOUT", "2s")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, 5, config.Workers.MaxRetries)
	assert.Equal(t, 2*time.Second, config.PollTimeout())
}

func TestFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 9999, "0.0.0.0")

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave the config untouched.
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestValidateMaintenanceSchedule(t *testing.T) {
	assert.NoError(t, ValidateMaintenanceSchedule("*/5 * * * *"))
	assert.Error(t, ValidateMaintenanceSchedule("every five minutes"))
}

func TestDurationFallbacks(t *testing.T) {
	config := NewDefaultConfig()
	config.Queue.PollTimeout = "garbage"
	config.Workers.BackoffBase = ""
	config.Maintenance.StaleAfter = "-1m"

	// Unparseable or non-positive values fall back to defaults.
	assert.Equal(t, 5*time.Second, config.PollTimeout())
	assert.Equal(t, 2*time.Second, config.BackoffBase())
	assert.Equal(t, 10*time.Minute, config.StaleAfter())
}

func TestEnvironmentHelpers(t *testing.T) {
	config := NewDefaultConfig()
	assert.False(t, config.IsProduction())
	assert.True(t, config.AllowTestURLs())

	config.Environment = "Production"
	assert.True(t, config.IsProduction())
	assert.False(t, config.AllowTestURLs())
}
