// Package longrunning tracks background operations through a session-backed
// lifecycle: start schedules a unit in the background, pause cancels the
// live task and marks the record paused, resume flips the record back to
// running (execution is not restarted), cancel stops a live task, and
// status queries project the persisted record.
package longrunning

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/intervu-ai/agentcore/session"
	"github.com/intervu-ai/agentcore/types"
)

const tracerName = "agentcore/longrunning"

// Recorder receives operation lifecycle transitions for metrics.
type Recorder interface {
	RecordOperationTransition(status string)
}

// taskHandle is the in-memory reference to one live background task.
// At most one handle exists per operation id; the entry is removed when
// the operation leaves the running state.
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs units of work as background tasks and tracks each one in a
// session record owned by the store.
type Manager struct {
	sessions session.Store
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder

	mu      sync.Mutex
	handles map[string]*taskHandle
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder attaches a metrics recorder for lifecycle transitions.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates an operation manager on top of store. A nil logger
// falls back to a nop logger.
func NewManager(store session.Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions: store,
		logger:   logger.With(zap.String("component", "longrunning_manager")),
		tracer:   otel.Tracer(tracerName),
		handles:  make(map[string]*taskHandle),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger.Info("long-running manager initialized")
	return m
}

// Start creates the tracking session with status running and schedules
// unit in the background, then returns immediately. kwargs is passed to
// the unit as its input and retained on the record. The background task
// detaches from ctx: cancelling the caller's context does not cancel the
// operation.
func (m *Manager) Start(ctx context.Context, operationID, userID string, unit types.Executor, kwargs map[string]any) (string, error) {
	ctx, span := m.tracer.Start(ctx, "operation.start",
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("user.id", userID),
		))
	defer span.End()

	if operationID == "" || userID == "" || unit == nil {
		return "", types.NewError(types.ErrInvalidRequest, "operation id, user id and unit are required")
	}

	sess, err := m.sessions.Create(ctx, appName, userID, map[string]any{
		keyOperationID: operationID,
		keyStatus:      string(StatusRunning),
		keyStartedAt:   nowStamp(),
		keyProgress:    0,
		keyKwargs:      kwargs,
	})
	if err != nil {
		return "", types.NewError(types.ErrUnitFailure, "failed to create operation session").WithCause(err)
	}

	m.logger.Info("operation started",
		zap.String("operation_id", operationID),
		zap.String("session_id", sess.ID),
	)
	m.recordTransition(StatusRunning)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &taskHandle{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.handles[operationID] = handle
	m.mu.Unlock()

	go m.runTask(taskCtx, handle, sess.ID, operationID, unit, kwargs)

	return operationID, nil
}

// runTask executes the unit and writes the terminal outcome back onto the
// session. Failures never propagate to the caller of Start; a cancelled
// task leaves the record as whatever the canceller already set.
func (m *Manager) runTask(ctx context.Context, handle *taskHandle, sessionID, operationID string, unit types.Executor, kwargs map[string]any) {
	defer close(handle.done)
	defer m.removeHandle(operationID)

	result, err := unit.Execute(ctx, kwargs)

	if ctx.Err() != nil {
		m.logger.Info("operation task cancelled",
			zap.String("operation_id", operationID),
			zap.String("session_id", sessionID),
		)
		return
	}

	sess, getErr := m.sessions.Get(context.WithoutCancel(ctx), sessionID)
	if getErr != nil {
		m.logger.Error("failed to load operation session",
			zap.String("operation_id", operationID), zap.Error(getErr))
		return
	}

	if err != nil {
		sess.Set(keyStatus, string(StatusFailed))
		sess.Set(keyError, err.Error())
		sess.Set(keyFailedAt, nowStamp())
		m.persist(sess, operationID)
		m.recordTransition(StatusFailed)
		m.logger.Error("operation failed",
			zap.String("operation_id", operationID),
			zap.Error(err),
		)
		return
	}

	sess.Set(keyStatus, string(StatusCompleted))
	sess.Set(keyProgress, 100)
	sess.Set(keyCompletedAt, nowStamp())
	sess.Set(keyResult, result)
	m.persist(sess, operationID)
	m.recordTransition(StatusCompleted)
	m.logger.Info("operation completed", zap.String("operation_id", operationID))
}

// Pause marks the operation paused and cancels its live task, if any.
// Fails with OPERATION_NOT_FOUND when no record matches. The paused
// stamp is written even when the operation is not currently running;
// callers wanting stricter validation must check status first.
func (m *Manager) Pause(ctx context.Context, operationID, userID string) error {
	ctx, span := m.tracer.Start(ctx, "operation.pause",
		trace.WithAttributes(attribute.String("operation.id", operationID)))
	defer span.End()

	sess, err := m.findSession(ctx, operationID, userID)
	if err != nil {
		return err
	}

	sess.Set(keyStatus, string(StatusPaused))
	sess.Set(keyPausedAt, nowStamp())
	if err := m.sessions.Save(ctx, sess); err != nil {
		return types.NewError(types.ErrUnitFailure, "failed to persist paused operation").WithCause(err)
	}

	m.cancelHandle(operationID)
	m.recordTransition(StatusPaused)
	m.logger.Info("operation paused", zap.String("operation_id", operationID))
	return nil
}

// Resume flips a paused operation back to running. Resuming an operation
// that is not paused logs a warning and has no effect. Execution is not
// restarted: no new background task is scheduled and prior progress is
// not replayed.
func (m *Manager) Resume(ctx context.Context, operationID, userID string) error {
	ctx, span := m.tracer.Start(ctx, "operation.resume",
		trace.WithAttributes(attribute.String("operation.id", operationID)))
	defer span.End()

	sess, err := m.findSession(ctx, operationID, userID)
	if err != nil {
		return err
	}

	if status := Status(stateString(sess, keyStatus)); status != StatusPaused {
		m.logger.Warn("operation not paused, resume ignored",
			zap.String("operation_id", operationID),
			zap.String("status", status.String()),
		)
		return nil
	}

	sess.Set(keyStatus, string(StatusRunning))
	sess.Set(keyResumedAt, nowStamp())
	if err := m.sessions.Save(ctx, sess); err != nil {
		return types.NewError(types.ErrUnitFailure, "failed to persist resumed operation").WithCause(err)
	}

	m.recordTransition(StatusRunning)
	m.logger.Info("operation resumed", zap.String("operation_id", operationID))
	return nil
}

// Cancel stops the live task and marks the record cancelled. Cancel is
// only effective while a task handle is tracked; without one it is a
// silent no-op even if a record exists, which makes repeated cancels
// harmless.
func (m *Manager) Cancel(ctx context.Context, operationID, userID string) error {
	ctx, span := m.tracer.Start(ctx, "operation.cancel",
		trace.WithAttributes(attribute.String("operation.id", operationID)))
	defer span.End()

	if !m.cancelHandle(operationID) {
		m.logger.Debug("no live task to cancel", zap.String("operation_id", operationID))
		return nil
	}

	sess, err := m.findSession(ctx, operationID, userID)
	if err != nil {
		if types.IsNotFound(err) {
			return nil
		}
		return err
	}

	sess.Set(keyStatus, string(StatusCancelled))
	sess.Set(keyCancelledAt, nowStamp())
	if err := m.sessions.Save(ctx, sess); err != nil {
		return types.NewError(types.ErrUnitFailure, "failed to persist cancelled operation").WithCause(err)
	}

	m.recordTransition(StatusCancelled)
	m.logger.Info("operation cancelled", zap.String("operation_id", operationID))
	return nil
}

// GetStatus returns a read-only snapshot of the operation's record. It
// has no side effects and fails with OPERATION_NOT_FOUND when no record
// matches.
func (m *Manager) GetStatus(ctx context.Context, operationID, userID string) (*Snapshot, error) {
	sess, err := m.findSession(ctx, operationID, userID)
	if err != nil {
		return nil, err
	}
	return snapshotFrom(sess), nil
}

// SetProgress writes a best-effort progress value (0-100) onto the
// operation record. Progress is never derived automatically.
func (m *Manager) SetProgress(ctx context.Context, operationID, userID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	sess, err := m.findSession(ctx, operationID, userID)
	if err != nil {
		return err
	}
	sess.Set(keyProgress, progress)
	if err := m.sessions.Save(ctx, sess); err != nil {
		return types.NewError(types.ErrUnitFailure, "failed to persist operation progress").WithCause(err)
	}
	return nil
}

// Active returns the operation ids with a live task handle.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until the operation's background task finishes or ctx is
// done. Returns immediately when no task is live.
func (m *Manager) Wait(ctx context.Context, operationID string) error {
	m.mu.Lock()
	handle, ok := m.handles[operationID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// findSession scans the user's sessions for the one tracking operationID.
func (m *Manager) findSession(ctx context.Context, operationID, userID string) (*session.Session, error) {
	sessions, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, types.NewError(types.ErrUnitFailure, "failed to list operation sessions").WithCause(err)
	}
	for _, sess := range sessions {
		if stateString(sess, keyOperationID) == operationID {
			return sess, nil
		}
	}

	m.logger.Error("operation not found", zap.String("operation_id", operationID))
	return nil, types.NewError(types.ErrOperationNotFound, "operation '"+operationID+"' not found")
}

// cancelHandle cancels and removes the live task handle, reporting whether
// one was tracked. Removal of an absent entry is a no-op.
func (m *Manager) cancelHandle(operationID string) bool {
	m.mu.Lock()
	handle, ok := m.handles[operationID]
	if ok {
		delete(m.handles, operationID)
	}
	m.mu.Unlock()

	if ok {
		handle.cancel()
	}
	return ok
}

func (m *Manager) removeHandle(operationID string) {
	m.mu.Lock()
	delete(m.handles, operationID)
	m.mu.Unlock()
}

func (m *Manager) persist(sess *session.Session, operationID string) {
	if err := m.sessions.Save(context.Background(), sess); err != nil {
		m.logger.Error("failed to persist operation outcome",
			zap.String("operation_id", operationID), zap.Error(err))
	}
}

func (m *Manager) recordTransition(status Status) {
	if m.recorder != nil {
		m.recorder.RecordOperationTransition(string(status))
	}
}
