package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points BACKBOX_CONFIG at a throwaway file so the loader
// never touches the real home or /etc paths.
func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backboxd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("BACKBOX_CONFIG", path)
}

func TestDefaults(t *testing.T) {
	writeConfig(t, "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Listen.Host)
	assert.Equal(t, 9001, cfg.Listen.Port)
	assert.Equal(t, 4096, cfg.Listen.ReadBuffer)
	assert.Equal(t, 512, cfg.Dispatch.QueueCapacity)
	assert.Equal(t, 33*time.Millisecond, cfg.Dispatch.TickInterval)
	assert.True(t, cfg.Dispatch.TimerTriggers)
	assert.False(t, cfg.Dispatch.StrictUnknown)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.ToStdout)
	assert.False(t, cfg.Log.ToFile)
}

func TestLoadFromFile(t *testing.T) {
	writeConfig(t, `
listen:
  host: 127.0.0.1
  port: 9999
dispatch:
  tick_interval: 50ms
  timer_triggers: false
log:
  level: debug
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Listen.Host)
	assert.Equal(t, 9999, cfg.Listen.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatch.TickInterval)
	assert.False(t, cfg.Dispatch.TimerTriggers)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 4096, cfg.Listen.ReadBuffer)
	assert.Equal(t, 512, cfg.Dispatch.QueueCapacity)
}

func TestEnvOverridesFile(t *testing.T) {
	writeConfig(t, "listen:\n  port: 9999\n")
	t.Setenv("BACKBOX_LISTEN_PORT", "7777")
	t.Setenv("BACKBOX_DISPATCH_STRICT_UNKNOWN", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Listen.Port)
	assert.True(t, cfg.Dispatch.StrictUnknown)
}

func TestExplicitConfigMustExist(t *testing.T) {
	t.Setenv("BACKBOX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestResolveConfigPathPrefersEnv(t *testing.T) {
	t.Setenv("BACKBOX_CONFIG", "/tmp/custom.yaml")

	path, err := ResolveConfigPath("backboxd", "backboxd.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", path)
}

func TestResolveConfigPathUserFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BACKBOX_CONFIG", "")
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".backbox", "backboxd")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	want := filepath.Join(dir, "backboxd.yaml")
	require.NoError(t, os.WriteFile(want, []byte("listen:\n  port: 9001\n"), 0o644))

	path, err := ResolveConfigPath("backboxd", "backboxd.yaml")
	require.NoError(t, err)
	assert.Equal(t, want, path)
}
