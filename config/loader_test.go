package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Session.Type)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 2000, cfg.LLM.Compaction.MaxTokens)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
session:
  type: redis
  redis:
    addr: redis.internal:6380
llm:
  timeout: 30s
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Session.Type)
	assert.Equal(t, "redis.internal:6380", cfg.Session.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	// Untouched values keep their defaults.
	assert.Equal(t, 10, cfg.Session.Redis.PoolSize)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  type: redis\n"), 0o600))

	t.Setenv("AGENTCORE_SESSION_TYPE", "postgres")
	t.Setenv("AGENTCORE_SESSION_POSTGRES_PORT", "5433")
	t.Setenv("AGENTCORE_TELEMETRY_ENABLED", "true")
	t.Setenv("AGENTCORE_LLM_COMPACTION_MAX_TOKENS", "512")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Session.Type)
	assert.Equal(t, 5433, cfg.Session.Postgres.Port)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 512, cfg.LLM.Compaction.MaxTokens)
}

func TestLoader_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Session.Type)
}

func TestLoader_ValidationFailures(t *testing.T) {
	t.Setenv("AGENTCORE_SESSION_TYPE", "cassandra")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session store type")
}

func TestLoader_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.LLM.APIKey == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	dsn := cfg.Session.Postgres.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "sslmode=disable")
}
