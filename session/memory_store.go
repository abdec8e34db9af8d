package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store. Suitable for
// development and testing. Data is lost on restart.
type MemoryStore struct {
	sessions  map[string]*Session
	userState map[string]map[string]any // userID -> user-scoped keys
	appState  map[string]map[string]any // appName -> app-scoped keys
	mu        sync.RWMutex
	closed    bool
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		userState: make(map[string]map[string]any),
		appState:  make(map[string]map[string]any),
	}
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Create allocates a new session and persists it.
func (s *MemoryStore) Create(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error) {
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

// Get retrieves a session by id with scoped state merged in.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	return s.withScopedState(stored), nil
}

// Save persists the full current state of a session. Scoped keys are
// extracted into the shared per-user and per-app maps.
func (s *MemoryStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	local, userScoped, appScoped := splitPersistent(sess.State)

	stored := sess.Clone()
	stored.State = local
	stored.UpdatedAt = time.Now().UTC()
	s.sessions[sess.ID] = stored

	if len(userScoped) > 0 {
		if s.userState[sess.UserID] == nil {
			s.userState[sess.UserID] = make(map[string]any)
		}
		for k, v := range userScoped {
			s.userState[sess.UserID][k] = v
		}
	}
	if len(appScoped) > 0 {
		if s.appState[sess.AppName] == nil {
			s.appState[sess.AppName] = make(map[string]any)
		}
		for k, v := range appScoped {
			s.appState[sess.AppName][k] = v
		}
	}

	return nil
}

// Delete removes a session. Deleting an absent session is a no-op; scoped
// state written through the session survives.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.sessions, sessionID)
	return nil
}

// ListByUser retrieves all sessions owned by userID, oldest first.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			result = append(result, s.withScopedState(sess))
		}
	}
	sortByCreation(result)
	return result, nil
}

// withScopedState returns a clone with user- and app-scoped keys merged.
// Caller must hold at least the read lock.
func (s *MemoryStore) withScopedState(stored *Session) *Session {
	sess := stored.Clone()
	mergeState(sess, s.userState[stored.UserID])
	mergeState(sess, s.appState[stored.AppName])
	return sess
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
