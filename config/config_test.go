package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "UPSTREAM_BASE_URL", "LOG_LEVEL", "LOG_FILE"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, errorMsg: "server config"},
		{name: "http upstream", mutate: func(c *Config) { c.Upstream.BaseURL = "http://example.com" }, errorMsg: "ws or wss"},
		{name: "upstream without host", mutate: func(c *Config) { c.Upstream.BaseURL = "ws:///calls" }, errorMsg: "host"},
		{name: "zero batch size", mutate: func(c *Config) { c.Stream.MaxChunks = 0 }, errorMsg: "max_chunks"},
		{name: "zero delay", mutate: func(c *Config) { c.Stream.MaxDelayMs = 0 }, errorMsg: "max_delay_ms"},
		{name: "no workers", mutate: func(c *Config) { c.Encoder.Workers = 0 }, errorMsg: "workers"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, errorMsg: "level"},
		{name: "file without size", mutate: func(c *Config) { c.Logging.File = "x.log"; c.Logging.MaxSizeMB = 0 }, errorMsg: "max_size_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 100*time.Millisecond, cfg.Stream.MaxDelay())
	assert.Equal(t, ":3000", cfg.Server.Address())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
upstream:
  base_url: wss://calls.example.com/audio
stream:
  max_delay_ms: 250
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "wss://calls.example.com/audio", cfg.Upstream.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.MaxDelay())
	assert.Equal(t, 10, cfg.Stream.MaxChunks, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvironmentWins(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("PORT", "4000")
	t.Setenv("UPSTREAM_BASE_URL", "ws://10.0.0.5:7000/stream")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "ws://10.0.0.5:7000/stream", cfg.Upstream.BaseURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o644))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "failed to parse")

	t.Setenv("PORT", "eighty")
	_, err = Load("")
	assert.ErrorContains(t, err, "PORT")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_FILE=/tmp/bridge.log\n"), 0o644))

	assert.False(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
	require.True(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bridge.log", cfg.Logging.File)
}
