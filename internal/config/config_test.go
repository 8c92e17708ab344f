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

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.apify.com/v2", cfg.Apify.BaseURL)
	assert.Equal(t, "apify~instagram-profile-scraper", cfg.Apify.InstagramActor)
	assert.Equal(t, 120, cfg.Apify.WaitSecs)
	assert.Equal(t, "https://graph.facebook.com/v21.0", cfg.Graph.BaseURL)
	assert.Equal(t, "profile-pics", cfg.Image.Collection)
	assert.Equal(t, 15, cfg.Image.TimeoutSecs)
	assert.Equal(t, 1024, cfg.Image.MinSizeBytes)
	assert.Equal(t, 7, cfg.Sync.CreatorMaxAgeDays)
	assert.Equal(t, 30, cfg.Sync.CompanyMaxAgeDays)
	assert.Equal(t, 50, cfg.Sync.ChunkSize)
	assert.Equal(t, 3, cfg.Sync.ChunkDelaySecs)
	assert.Equal(t, 10, cfg.Sync.FreeConcurrency)
	assert.Equal(t, 1500, cfg.Queue.ItemDelayMillis)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
sync:
  chunk_size: 25
  hour: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 25, cfg.Sync.ChunkSize)
	assert.Equal(t, 2, cfg.Sync.Hour)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Sync.CompanyMaxAgeDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ENRICH_STORE_DRIVER", "sqlite")
	t.Setenv("ENRICH_APIFY_TOKEN", "apify_api_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "apify_api_test", cfg.Apify.Token)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
