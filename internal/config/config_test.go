package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, STORAGE_MEMORY, cfg.Storage.Driver)
	assert.Equal(t, 8, cfg.Registry.CodeAttempts)
	assert.Equal(t, 30*time.Second, cfg.Presence.Timeout)
	assert.Equal(t, time.Minute, cfg.Presence.HostGrace)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("PARTY_PORT", "9000")
	t.Setenv("PARTY_PRESENCE_TIMEOUT", "45s")
	t.Setenv("PARTY_STORAGE_DRIVER", "sqlite")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "9100", "--sqlite-path", "/tmp/x.db"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Presence.Timeout)
	assert.Equal(t, STORAGE_SQLITE, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "party.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 7000,
		"public_url": "https://party.example",
		"presence": {"host_grace": "0s"},
		"ws": {"rate_burst": 3}
	}`), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "https://party.example", cfg.PublicURL)
	assert.Equal(t, time.Duration(0), cfg.Presence.HostGrace)
	assert.Equal(t, 3, cfg.WS.RateBurst)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("PARTY_STORAGE_DRIVER", "redis")
		_, err := Load(nil)
		assert.Error(t, err)
	})

	t.Run("timeout shorter than heartbeat", func(t *testing.T) {
		t.Setenv("PARTY_PRESENCE_TIMEOUT", "1s")
		_, err := Load(nil)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		BindFlags(fs)
		require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.json")}))

		_, err := Load(fs)
		assert.Error(t, err)
	})
}
