package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

func TestLoadConfigWritesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	v, err := loadConfig(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfigYAML, string(data))

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.LocalJSONL, cfg.Local.Driver)
	assert.Equal(t, types.RemoteMemory, cfg.Remote.Driver)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, defaultMetricsAddr, v.GetString(cfgKeyMetricsAddr))
}

func TestLoadConfigKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `local:
  driver: badger
remote:
  driver: postgres
  dsn: postgres://db/casebook
  timeout: 250ms
data_dir: /var/lib/casebook
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	v, err := loadConfig(dir)
	require.NoError(t, err)
	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, types.LocalBadger, cfg.Local.Driver)
	assert.Equal(t, types.RemotePostgres, cfg.Remote.Driver)
	assert.Equal(t, "postgres://db/casebook", cfg.Remote.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.Timeout)
	assert.Equal(t, "/var/lib/casebook", cfg.DataDir)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CASEBOOK_REMOTE_DRIVER", "redis")
	t.Setenv("CASEBOOK_REMOTE_ADDR", "cache:6379")

	v, err := loadConfig(dir)
	require.NoError(t, err)
	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.RemoteRedis, cfg.Remote.Driver)
	assert.Equal(t, "cache:6379", cfg.Remote.Addr)
}

func TestDecodeConfigRejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("local:\n  driver: floppy\n"), 0o644))

	v, err := loadConfig(dir)
	require.NoError(t, err)
	_, err = decodeConfig(v)
	assert.ErrorIs(t, err, types.ErrLocalDriverUnknown)
}

func TestSessionToken(t *testing.T) {
	dir := t.TempDir()

	token, err := loadSessionToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, saveSessionToken(dir, "abc"))
	token, err = loadSessionToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, saveSessionToken(dir, ""))
	token, err = loadSessionToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)
}
