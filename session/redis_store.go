package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore is a Redis-based implementation of Store. Suitable for
// distributed deployments. Sessions are JSON documents keyed by id with a
// per-user sorted-set index; scoped state lives in per-user and per-app
// hashes.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore creates a new Redis-based session store.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "agentcore:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "session:",
		logger:    logger.With(zap.String("component", "redis_session_store")),
	}, nil
}

// Close closes the store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.keyPrefix + "data:" + sessionID
}

func (s *RedisStore) userIndexKey(userID string) string {
	return s.keyPrefix + "user:" + userID
}

func (s *RedisStore) userStateKey(userID string) string {
	return s.keyPrefix + "user_state:" + userID
}

func (s *RedisStore) appStateKey(appName string) string {
	return s.keyPrefix + "app_state:" + appName
}

// Create allocates a new session and persists it.
func (s *RedisStore) Create(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error) {
	if appName == "" || userID == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		AppName:   appName,
		UserID:    userID,
		State:     make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range initialState {
		sess.State[k] = v
	}

	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.Get(ctx, sess.ID)
}

// Save persists the session document and updates the indexes.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	local, userScoped, appScoped := splitPersistent(sess.State)

	doc := sess.Clone()
	doc.State = local
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(sess.ID), data, 0)
	pipe.ZAdd(ctx, s.userIndexKey(sess.UserID), redis.Z{
		Score:  float64(doc.CreatedAt.UnixNano()),
		Member: sess.ID,
	})
	for k, v := range userScoped {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal scoped value %q: %w", k, err)
		}
		pipe.HSet(ctx, s.userStateKey(sess.UserID), k, encoded)
	}
	for k, v := range appScoped {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal scoped value %q: %w", k, err)
		}
		pipe.HSet(ctx, s.appStateKey(sess.AppName), k, encoded)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a session by id with scoped state merged in.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if err := s.mergeScopedState(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete removes the session document and its index entry. Deleting an
// absent session is a no-op; scoped state survives.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	pipe.ZRem(ctx, s.userIndexKey(sess.UserID), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

// ListByUser retrieves all sessions owned by userID, oldest first.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.client.ZRange(ctx, s.userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// Index entry for a deleted session; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, sess)
	}
	return result, nil
}

// mergeScopedState overlays the per-user and per-app hashes onto sess.
func (s *RedisStore) mergeScopedState(ctx context.Context, sess *Session) error {
	for _, key := range []string{s.userStateKey(sess.UserID), s.appStateKey(sess.AppName)} {
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read scoped state: %w", err)
		}
		for k, raw := range fields {
			if _, exists := sess.State[k]; exists {
				continue
			}
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				s.logger.Warn("skipping undecodable scoped value",
					zap.String("key", k), zap.Error(err))
				continue
			}
			sess.Set(k, v)
		}
	}
	return nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
