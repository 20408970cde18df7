package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateMatchesDefault(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
server:
  addr: ":9000"
auth:
  session_ttl: 30m
redis:
  addr: localhost:6379
log:
  level: debug
  format: text
`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, DefaultBasePath, cfg.Server.BasePath)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Auth.Sliding)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"addr", func(c *Config) { c.Server.Addr = "" }},
		{"base path", func(c *Config) { c.Server.BasePath = "api" }},
		{"ttl", func(c *Config) { c.Auth.SessionTTL = 0 }},
		{"short secret", func(c *Config) { c.Auth.SessionSecret = "short" }},
		{"relay batch", func(c *Config) { c.Relay.Batch = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TASKDASH_SESSION_SECRET": "0123456789abcdef-secret",
		"TASKDASH_REDIS_ADDR":     "redis:6379",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "0123456789abcdef-secret", cfg.Auth.SessionSecret)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Redis.Password)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.ErrorContains(t, err, "not found")

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "taskdash.yml"), []byte("relay:\n  batch: 5\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Relay.Batch)

	require.NoError(t, os.WriteFile(Path(dir), []byte("server: ["), 0o644))
	_, err = LoadOptional(dir)
	assert.ErrorContains(t, err, "invalid config yaml")
}
