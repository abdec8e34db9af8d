package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Common errors
var (
	ErrNotFound     = errors.New("session not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeMongo    StoreType = "mongo"
	StoreTypePostgres StoreType = "postgres"
)

// Store is the session persistence contract. All backends expose identical
// behavior: Save is last-write-wins with no optimistic concurrency, Delete
// of an absent session is a no-op, and scoped ("user:"/"app:") state keys
// are persisted with cross-session visibility.
type Store interface {
	// Create allocates a new session id, applies initialState, persists it,
	// and returns the created session.
	Create(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error)

	// Get retrieves a session by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Save persists the full current state of a session. Idempotent,
	// last-write-wins.
	Save(ctx context.Context, sess *Session) error

	// Delete removes persisted session state. Deleting an absent session
	// is a no-op. Scoped state survives the session that wrote it.
	Delete(ctx context.Context, sessionID string) error

	// ListByUser retrieves all sessions owned by userID.
	ListByUser(ctx context.Context, userID string) ([]*Session, error)

	// Close closes the store and releases resources.
	Close() error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// MongoConfig contains MongoDB-specific configuration.
type MongoConfig struct {
	URI        string `yaml:"uri" json:"uri"`
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
}

// PostgresConfig contains relational-backend configuration.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// Config is the configuration for all store implementations.
type Config struct {
	Type     StoreType      `yaml:"type" json:"type"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Mongo    MongoConfig    `yaml:"mongo" json:"mongo"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Type: StoreTypeMemory,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "agentcore:",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "agentcore",
			Collection: "sessions",
		},
		Postgres: PostgresConfig{
			DSN:             "postgres://localhost:5432/agentcore_sessions",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
	}
}

// sortByCreation orders sessions oldest first, by id on equal timestamps
// so listings are deterministic.
func sortByCreation(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

// NewStore creates a session store for the configured backend type.
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis, logger)
	case StoreTypeMongo:
		return NewMongoStore(context.Background(), cfg.Mongo, logger)
	case StoreTypePostgres:
		return NewPostgresStore(cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
