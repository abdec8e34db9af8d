package longrunning

import (
	"time"

	"github.com/intervu-ai/agentcore/session"
)

// Session state keys under which an operation's record lives. Timestamps
// are stored as RFC 3339 strings so every store backend round-trips them
// identically.
const (
	keyOperationID = "operation_id"
	keyStatus      = "status"
	keyProgress    = "progress"
	keyStartedAt   = "started_at"
	keyPausedAt    = "paused_at"
	keyResumedAt   = "resumed_at"
	keyCompletedAt = "completed_at"
	keyFailedAt    = "failed_at"
	keyCancelledAt = "cancelled_at"
	keyResult      = "result"
	keyError       = "error"
	keyKwargs      = "kwargs"
)

// appName is the session scope all operation records are created under.
const appName = "long_running"

// Snapshot is a read-only projection of an operation's state, as returned
// by Manager.GetStatus. Absent timestamps are nil.
type Snapshot struct {
	OperationID string         `json:"operation_id"`
	Status      Status         `json:"status"`
	Progress    int            `json:"progress"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	PausedAt    *time.Time     `json:"paused_at,omitempty"`
	ResumedAt   *time.Time     `json:"resumed_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	FailedAt    *time.Time     `json:"failed_at,omitempty"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Kwargs      map[string]any `json:"kwargs,omitempty"`
}

func snapshotFrom(sess *session.Session) *Snapshot {
	snap := &Snapshot{
		OperationID: stateString(sess, keyOperationID),
		Status:      Status(stateString(sess, keyStatus)),
		Progress:    stateInt(sess, keyProgress),
		StartedAt:   stateTime(sess, keyStartedAt),
		PausedAt:    stateTime(sess, keyPausedAt),
		ResumedAt:   stateTime(sess, keyResumedAt),
		CompletedAt: stateTime(sess, keyCompletedAt),
		FailedAt:    stateTime(sess, keyFailedAt),
		CancelledAt: stateTime(sess, keyCancelledAt),
		Error:       stateString(sess, keyError),
	}
	if v, ok := sess.Get(keyResult); ok {
		snap.Result = v
	}
	if v, ok := sess.Get(keyKwargs); ok {
		if kwargs, ok := v.(map[string]any); ok {
			snap.Kwargs = kwargs
		}
	}
	return snap
}

func stateString(sess *session.Session, key string) string {
	if v, ok := sess.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// stateInt tolerates the numeric types JSON round-trips produce.
func stateInt(sess *session.Session, key string) int {
	v, ok := sess.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func stateTime(sess *session.Session, key string) *time.Time {
	raw := stateString(sess, key)
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &ts
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
