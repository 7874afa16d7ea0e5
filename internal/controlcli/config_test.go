package controlcli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingConfigUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadCTLConfig()
	require.NoError(t, err)

	addr, err := cfg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddress, addr)
	assert.Equal(t, 3*time.Second, cfg.DialTimeout())
}

func TestLoadAndResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".backbox"), 0o755))
	body := `
default: cabinet
timeout_seconds: 10
daemons:
  cabinet:
    address: 10.0.0.5:9001
  bench:
    address: 127.0.0.1:9101
`
	require.NoError(t, os.WriteFile(filepath.Join(home, ".backbox", "ctl.yaml"), []byte(body), 0o644))

	cfg, err := LoadCTLConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout())

	addr, err := cfg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:9001", addr)

	addr, err = cfg.Resolve("bench")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9101", addr)

	_, err = cfg.Resolve("garage")
	require.Error(t, err)
}

func TestMalformedConfigFails(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".backbox"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".backbox", "ctl.yaml"), []byte("daemons: ["), 0o644))

	_, err := LoadCTLConfig()
	require.Error(t, err)
}
