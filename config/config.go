// Package config provides unified configuration for the module: defaults,
// YAML file loading, and environment variable overrides, in that
// precedence order.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete configuration tree.
type Config struct {
	// Log controls structured logging output.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry controls OTLP trace/metric export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Session selects and configures the session store backend.
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// LLM configures the text-generation provider.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console
	Format string `yaml:"format" env:"FORMAT"`
	// Development enables caller info and stacktraces on warnings
	Development bool `yaml:"development" env:"DEVELOPMENT"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName    string  `yaml:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string  `yaml:"service_version" env:"SERVICE_VERSION"`
	// OTLP gRPC endpoint, host:port
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool    `yaml:"insecure" env:"INSECURE"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	// Type: memory, redis, mongo, postgres
	Type     string         `yaml:"type" env:"TYPE"`
	Redis    RedisConfig    `yaml:"redis" env:"REDIS"`
	Mongo    MongoConfig    `yaml:"mongo" env:"MONGO"`
	Postgres PostgresConfig `yaml:"postgres" env:"POSTGRES"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE"`
}

// MongoConfig configures the MongoDB session backend.
type MongoConfig struct {
	URI      string `yaml:"uri" env:"URI"`
	Database string `yaml:"database" env:"DATABASE"`
}

// PostgresConfig configures the PostgreSQL session backend.
type PostgresConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Name, p.SSLMode,
	)
}

// LLMConfig configures the text-generation provider and compaction.
type LLMConfig struct {
	// Provider: gemini
	Provider     string           `yaml:"provider" env:"PROVIDER"`
	APIKey       string           `yaml:"api_key" env:"API_KEY"`
	BaseURL      string           `yaml:"base_url" env:"BASE_URL"`
	DefaultModel string           `yaml:"default_model" env:"DEFAULT_MODEL"`
	Temperature  float64          `yaml:"temperature" env:"TEMPERATURE"`
	Timeout      time.Duration    `yaml:"timeout" env:"TIMEOUT"`
	Compaction   CompactionConfig `yaml:"compaction" env:"COMPACTION"`
}

// CompactionConfig bounds context assembled for generation.
type CompactionConfig struct {
	MaxTokens  int `yaml:"max_tokens" env:"MAX_TOKENS"`
	WindowSize int `yaml:"window_size" env:"WINDOW_SIZE"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			ServiceName:    "agentcore",
			ServiceVersion: "dev",
			Endpoint:       "localhost:4317",
			Insecure:       true,
			SampleRatio:    1.0,
		},
		Session: SessionConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "agentcore",
			},
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "agentcore",
				Name:            "agentcore",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
			},
		},
		LLM: LLMConfig{
			Provider:     "gemini",
			DefaultModel: "gemini-2.0-flash",
			Temperature:  0.7,
			Timeout:      60 * time.Second,
			Compaction: CompactionConfig{
				MaxTokens:  2000,
				WindowSize: 10,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log level must be one of debug, info, warn, error")
	}

	switch c.Session.Type {
	case "memory", "redis", "mongo", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown session store type %q", c.Session.Type))
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, "telemetry sample_ratio must be between 0 and 1")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}
	if c.LLM.Compaction.MaxTokens <= 0 {
		errs = append(errs, "compaction max_tokens must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
