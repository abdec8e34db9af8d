package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormStore is a relational implementation of Store backed by GORM.
// PostgreSQL is the production backend; tests use SQLite through the same
// code path. State maps are serialized into a JSON text column.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

type sessionRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	AppName   string `gorm:"index;size:128"`
	UserID    string `gorm:"index;size:128"`
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (sessionRecord) TableName() string { return "agent_sessions" }

type scopedStateRecord struct {
	ID    string `gorm:"primaryKey;size:256"` // "user:<id>" or "app:<name>"
	State string
}

func (scopedStateRecord) TableName() string { return "agent_scoped_state" }

// NewPostgresStore opens a PostgreSQL connection and returns a session
// store. Connection pool limits come from cfg.
func NewPostgresStore(cfg PostgresConfig, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewGormStore(db, logger)
}

// NewGormStore wraps an existing GORM handle (any dialect) as a session
// store and migrates the schema.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := db.AutoMigrate(&sessionRecord{}, &scopedStateRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session schema: %w", err)
	}

	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_session_store")),
	}, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the store is healthy.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Create allocates a new session and persists it.
func (s *GormStore) Create(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error) {
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

// Save upserts the session row, last-write-wins.
func (s *GormStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	local, userScoped, appScoped := splitPersistent(sess.State)

	encoded, err := json.Marshal(local)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	record := sessionRecord{
		ID:        sess.ID,
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		State:     string(encoded),
		CreatedAt: sess.CreatedAt.UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		if err := s.saveScoped(tx, "user:"+sess.UserID, userScoped); err != nil {
			return err
		}
		return s.saveScoped(tx, "app:"+sess.AppName, appScoped)
	})
}

// saveScoped merges state into the scoped row identified by recordID.
func (s *GormStore) saveScoped(tx *gorm.DB, recordID string, state map[string]any) error {
	if len(state) == 0 {
		return nil
	}

	merged := make(map[string]any)
	var existing scopedStateRecord
	err := tx.First(&existing, "id = ?", recordID).Error
	if err == nil {
		if err := json.Unmarshal([]byte(existing.State), &merged); err != nil {
			s.logger.Warn("resetting undecodable scoped state",
				zap.String("record_id", recordID), zap.Error(err))
			merged = make(map[string]any)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to read scoped state: %w", err)
	}

	for k, v := range state {
		merged[k] = v
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal scoped state: %w", err)
	}

	return tx.Save(&scopedStateRecord{ID: recordID, State: string(encoded)}).Error
}

// Get retrieves a session by id with scoped state merged in.
func (s *GormStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var record sessionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess, err := s.fromRecord(record)
	if err != nil {
		return nil, err
	}
	if err := s.mergeScoped(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session row. Deleting an absent session is a no-op;
// scoped state survives.
func (s *GormStore) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", sessionID).Error
}

// ListByUser retrieves all sessions owned by userID, oldest first.
func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	var records []sessionRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*Session, 0, len(records))
	for _, record := range records {
		sess, err := s.fromRecord(record)
		if err != nil {
			return nil, err
		}
		if err := s.mergeScoped(ctx, sess); err != nil {
			return nil, err
		}
		result = append(result, sess)
	}
	return result, nil
}

func (s *GormStore) fromRecord(record sessionRecord) (*Session, error) {
	state := make(map[string]any)
	if record.State != "" {
		if err := json.Unmarshal([]byte(record.State), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
		}
	}
	return &Session{
		ID:        record.ID,
		AppName:   record.AppName,
		UserID:    record.UserID,
		State:     state,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func (s *GormStore) mergeScoped(ctx context.Context, sess *Session) error {
	for _, recordID := range []string{"user:" + sess.UserID, "app:" + sess.AppName} {
		var record scopedStateRecord
		err := s.db.WithContext(ctx).First(&record, "id = ?", recordID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read scoped state: %w", err)
		}
		scoped := make(map[string]any)
		if err := json.Unmarshal([]byte(record.State), &scoped); err != nil {
			s.logger.Warn("skipping undecodable scoped state",
				zap.String("record_id", recordID), zap.Error(err))
			continue
		}
		mergeState(sess, scoped)
	}
	return nil
}

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)
