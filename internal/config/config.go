package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultBasePath        = "/api"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultSessionTTL      = 8 * time.Hour
	DefaultRedisKeyPrefix  = "taskdash:session:revoked:"
	DefaultRelayInterval   = 2 * time.Second
	DefaultRelayBatch      = 100

	fileName = "taskdash.yml"
)

// Config models taskdash.yml.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Redis  RedisConfig  `yaml:"redis"`
	Relay  RelayConfig  `yaml:"relay"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	BasePath        string        `yaml:"base_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// SecureCookies marks session cookies Secure and enables HSTS.
	SecureCookies bool `yaml:"secure_cookies"`
}

type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	Sliding       bool          `yaml:"sliding"`
}

// RedisConfig configures the session revocation store. An empty Addr keeps
// revocations in memory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type RelayConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Batch        int           `yaml:"batch"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config usable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			BasePath:        DefaultBasePath,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Auth: AuthConfig{
			SessionTTL: DefaultSessionTTL,
			Sliding:    true,
		},
		Redis: RedisConfig{KeyPrefix: DefaultRedisKeyPrefix},
		Relay: RelayConfig{PollInterval: DefaultRelayInterval, Batch: DefaultRelayBatch},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with '/': %q", c.Server.BasePath)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("config.server.shutdown_timeout must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("config.auth.session_ttl must be positive")
	}
	if c.Auth.SessionSecret != "" && len(c.Auth.SessionSecret) < 16 {
		return errors.New("config.auth.session_secret must be at least 16 characters")
	}
	if c.Redis.DB < 0 {
		return errors.New("config.redis.db must not be negative")
	}
	if c.Relay.PollInterval <= 0 {
		return errors.New("config.relay.poll_interval must be positive")
	}
	if c.Relay.Batch <= 0 {
		return errors.New("config.relay.batch must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config.log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("TASKDASH_SESSION_SECRET"); ok && v != "" {
		c.Auth.SessionSecret = v
	}
	if v, ok := lookup("TASKDASH_REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("TASKDASH_REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
}

// ParseLevel converts a config level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", level)
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with td init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config as YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api
  shutdown_timeout: 10s
  secure_cookies: false

auth:
  # Leave empty and set TASKDASH_SESSION_SECRET instead to keep it out of the file.
  session_secret: ""
  session_ttl: 8h
  sliding: true

redis:
  # Empty addr keeps revoked sessions in memory.
  addr: ""
  db: 0
  key_prefix: "taskdash:session:revoked:"

relay:
  poll_interval: 2s
  batch: 100

log:
  level: info
  format: json
`
