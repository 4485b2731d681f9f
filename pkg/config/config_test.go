package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultRealtimeURL, cfg.Realtime.URL)
	assert.Equal(t, 5, cfg.Realtime.ReconnectionAttempts)
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectionDelay)
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"pong timeout not above ping interval", func(c *Config) { c.Chat.PongTimeout = c.Chat.PingInterval }},
		{"empty realtime url", func(c *Config) { c.Realtime.URL = "" }},
		{"negative reconnection attempts", func(c *Config) { c.Realtime.ReconnectionAttempts = -1 }},
		{"zero reconnection delay", func(c *Config) { c.Realtime.ReconnectionDelay = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Store.BreakerThreshold = 0 }},
		{"retries without delay", func(c *Config) { c.Store.RetryAttempts = 3; c.Store.RetryDelay = 0 }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"unknown logging format", func(c *Config) { c.Logging.Format = "xml" }},
		{"redis without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"tracing sample rate above one", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.SampleRate = 1.5 }},
		{"http rps must be > 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"ws burst must be > 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.WebSocket.Burst = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
server:
  address: ":9000"
realtime:
  url: "ws://chat.internal:8081/ws"
  reconnection_attempts: 3
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("CREATORHUB_JWT_SECRET", "from-env")
	t.Setenv("CREATORHUB_REALTIME_URL", "wss://chat.example.com/ws")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Realtime.ReconnectionAttempts)
	assert.Equal(t, "wss://chat.example.com/ws", cfg.Realtime.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	// untouched sections keep defaults
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectionDelay)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFirst_SkipsMissingPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  address: \":7000\"\n"), 0o600))

	cfg, used, err := LoadFirst(filepath.Join(dir, "nope.yaml"), path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, ":7000", cfg.Chat.Address)
}
