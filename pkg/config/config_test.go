package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutConfigFile(t *testing.T) {
	// Point the default search path at an empty directory.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "memory", cfg.Catalog.Type)
	assert.Equal(t, "memory", cfg.Accounts.Type)
	assert.True(t, cfg.Adapters.TCP.Enabled)
	assert.Equal(t, DefaultTCPPort, cfg.Adapters.TCP.Port)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: json
server:
  shutdown_timeout: 10s
  login:
    rate_limit: 5
catalog:
  type: sqlite
  sqlite:
    path: /var/lib/catalogd/catalog.db
accounts:
  type: sqlite
  sqlite:
    path: /var/lib/catalogd/catalog.db
adapters:
  tcp:
    enabled: true
    port: 4321
  ws:
    enabled: true
    port: 4322
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, uint(5), cfg.Server.Login.RateLimit)
	assert.Equal(t, uint(5), cfg.Server.Login.RateBurst, "burst defaults to the rate")
	assert.Equal(t, "sqlite", cfg.Catalog.Type)
	assert.Equal(t, "/var/lib/catalogd/catalog.db", cfg.Catalog.SQLite["path"])
	assert.Equal(t, 4321, cfg.Adapters.TCP.Port)
	assert.True(t, cfg.Adapters.WS.Enabled)
	assert.Equal(t, 4322, cfg.Adapters.WS.Port)
}

func TestLoadRejectsBadStoreType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  type: oracle\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [not: a map\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
