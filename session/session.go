// Package session provides the persisted state record tracking agent
// interactions and long-running operations, plus interchangeable storage
// backends (memory, Redis, MongoDB, relational via GORM) behind one
// contract. Callers never branch on which backend is active.
package session

import (
	"fmt"
	"strings"
	"time"
)

// Scope identifies how widely a persistent state key is visible.
type Scope string

const (
	// ScopeUser persists a key across all sessions of one user.
	ScopeUser Scope = "user"
	// ScopeApp persists a key across all sessions of an app.
	ScopeApp Scope = "app"
)

// Session is the state record for one interaction or long-running
// operation. It is created once, mutated in place through its lifecycle,
// and never deleted automatically.
type Session struct {
	ID        string         `json:"id"`
	AppName   string         `json:"app_name"`
	UserID    string         `json:"user_id"`
	State     map[string]any `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Get returns the state value for key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.State[key]
	return v, ok
}

// Set stores a state value under key.
func (s *Session) Set(key string, value any) {
	if s.State == nil {
		s.State = make(map[string]any)
	}
	s.State[key] = value
}

// Clone returns a deep-enough copy for handing out of a store: the state
// map is copied, values are shared. Backends return clones so callers
// cannot mutate stored state without Save.
func (s *Session) Clone() *Session {
	c := *s
	c.State = make(map[string]any, len(s.State))
	for k, v := range s.State {
		c.State[k] = v
	}
	return &c
}

// PersistentKey builds a scoped state key. Keys written under a "user:"
// prefix are visible to every session of the owning user; "app:" keys to
// every session of the app. The prefix is a naming convention consumed by
// the backing store.
func PersistentKey(scope Scope, key string) (string, error) {
	switch scope {
	case ScopeUser, ScopeApp:
		return string(scope) + ":" + key, nil
	default:
		return "", fmt.Errorf("scope must be %q or %q, got %q", ScopeUser, ScopeApp, scope)
	}
}

// KeyScope reports the scope of a state key, or false for plain
// session-local keys.
func KeyScope(key string) (Scope, bool) {
	switch {
	case strings.HasPrefix(key, string(ScopeUser)+":"):
		return ScopeUser, true
	case strings.HasPrefix(key, string(ScopeApp)+":"):
		return ScopeApp, true
	default:
		return "", false
	}
}

// splitPersistent partitions state into session-local, user-scoped, and
// app-scoped maps. Scoped keys keep their prefix so reads merge them back
// under the name the caller wrote.
func splitPersistent(state map[string]any) (local, userScoped, appScoped map[string]any) {
	local = make(map[string]any)
	for k, v := range state {
		switch scope, ok := KeyScope(k); {
		case ok && scope == ScopeUser:
			if userScoped == nil {
				userScoped = make(map[string]any)
			}
			userScoped[k] = v
		case ok && scope == ScopeApp:
			if appScoped == nil {
				appScoped = make(map[string]any)
			}
			appScoped[k] = v
		default:
			local[k] = v
		}
	}
	return local, userScoped, appScoped
}

// mergeState overlays src onto dst without overwriting session-local keys.
func mergeState(dst *Session, src map[string]any) {
	for k, v := range src {
		if _, exists := dst.State[k]; !exists {
			dst.Set(k, v)
		}
	}
}
