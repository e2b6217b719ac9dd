package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "localhost:7432", cfg.ListenAddr)
	assert.Equal(t, "http://localhost:7432", cfg.BaseURL)
	assert.Equal(t, filepath.Join(dir, "connectors"), cfg.CatalogDir)
	assert.Equal(t, filepath.Join(dir, "instances"), cfg.StateDir)
	assert.Equal(t, 10*time.Second, cfg.Lifecycle.HealthInterval)
	assert.Equal(t, 64, cfg.EventBufferSize)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
listen_addr: 0.0.0.0:9000
catalog_dir: /opt/connectors
lifecycle:
  health_interval: 3s
  graceful_stop_timeout: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "http://0.0.0.0:9000", cfg.BaseURL)
	assert.Equal(t, "/opt/connectors", cfg.CatalogDir)
	assert.Equal(t, 3*time.Second, cfg.Lifecycle.HealthInterval)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.GracefulStopTimeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Lifecycle.HeartbeatStaleness)
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("listen_addr: [oops"), 0644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := GetDefaultConfig(dir)

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.CatalogDir, cfg.StateDir, cfg.LogDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
