package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Browser.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout())
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 3, cfg.Pipeline.ExtractionRetryLimit)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.ShutdownGrace())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Generation.Model)
	assert.Equal(t, 2, cfg.Generation.RetryLimit)
	assert.Equal(t, float64(30), cfg.Generation.RateLimitPerMin)
	assert.Equal(t, 24000, cfg.Generation.TruncationBudget)
	assert.Equal(t, "prospector_results.xlsx", cfg.Export.XLSXPath)
	assert.Equal(t, "prospector.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
browser:
  pool_size: 5
  navigation_timeout_secs: 10
generation:
  model: claude-sonnet-4-5-20250929
  retry_limit: 0
export:
  xlsx_path: out.xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Browser.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.Browser.NavigationTimeout())
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Generation.Model)
	assert.Zero(t, cfg.Generation.RetryLimit)
	assert.Equal(t, "out.xlsx", cfg.Export.XLSXPath)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Pipeline.ExtractionRetryLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROSPECTOR_GENERATION_API_KEY", "sk-test")
	t.Setenv("PROSPECTOR_BROWSER_POOL_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, 7, cfg.Browser.PoolSize)
}

func TestLoad_RejectsInvalidPoolSize(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("browser:\n  pool_size: 0\n"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
