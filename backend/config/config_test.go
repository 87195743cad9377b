package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lysn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listenAddr: ":4000"
staticDir: /srv/www
logLevel: info
sync:
  tick: 500ms
  stale: 3s
`), 0o600))

	env := func(k string) string {
		if k == "PORT" {
			return "5000"
		}
		return ""
	}

	cfg, err := Load([]string{"--config", path, "--log-level", "warn"}, env)
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.ListenAddr, "PORT overrides file")
	assert.Equal(t, "/srv/www", cfg.StaticDir)
	assert.Equal(t, "warn", cfg.LogLevel, "flag overrides file")
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.Tick)
	assert.Equal(t, 3*time.Second, cfg.Sync.Stale)
	assert.Equal(t, time.Hour, cfg.Cleanup.RoomMaxAge)

	cfg, err = Load([]string{"-c", path, "-a", ":6000"}, env)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.ListenAddr, "flag overrides PORT")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"--sync-tick", "0s"}, noEnv)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load([]string{"--bogus"}, noEnv)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, noEnv)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [1, 2"), 0o600))
	_, err = Load([]string{"--config", path}, noEnv)
	assert.ErrorIs(t, err, ErrInvalid)
}
