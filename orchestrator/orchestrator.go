// Package orchestrator provides the named agent registry and dispatcher
// for agent-to-agent calls. Every dispatch is wrapped in a trace span and
// structured log events; workflow builders resolve registered names into
// compositions from the workflow package.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/intervu-ai/agentcore/types"
	"github.com/intervu-ai/agentcore/workflow"
)

const tracerName = "agentcore/orchestrator"

// Recorder receives per-dispatch metrics.
type Recorder interface {
	RecordAgentCall(agent string, success bool, duration time.Duration)
}

// Orchestrator is the registry and dispatcher for units of work. Agents
// are registered under unique names and dispatched by name; registration
// silently overwrites any prior entry.
type Orchestrator struct {
	agents   map[string]types.Executor
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
	mu       sync.RWMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder attaches a metrics recorder for agent dispatches.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an orchestrator. A nil logger falls back to a nop logger.
func New(logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		agents: make(map[string]types.Executor),
		logger: logger.With(zap.String("component", "orchestrator")),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register stores unit under name, overwriting any prior registration.
func (o *Orchestrator) Register(name string, unit types.Executor) {
	o.mu.Lock()
	o.agents[name] = unit
	o.mu.Unlock()

	o.logger.Info("agent registered", zap.String("agent", name))
}

// Get returns the agent registered under name.
func (o *Orchestrator) Get(name string) (types.Executor, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	unit, ok := o.agents[name]
	if !ok {
		return nil, types.NewError(types.ErrAgentNotFound, "agent '"+name+"' not found in registry")
	}
	return unit, nil
}

// List returns the names of all registered agents.
func (o *Orchestrator) List() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.agents))
	for name := range o.agents {
		names = append(names, name)
	}
	return names
}

// Call dispatches input to the named agent. The call is observed (span +
// structured events with duration) regardless of outcome, and any failure
// from the agent is re-raised to the caller after being recorded.
// callCtx is attached to observability output only; it never affects
// dispatch.
func (o *Orchestrator) Call(ctx context.Context, name string, input any, callCtx map[string]any) (any, error) {
	unit, err := o.Get(name)
	if err != nil {
		o.logger.Error("agent not found", zap.String("agent", name))
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "a2a.call",
		trace.WithAttributes(
			attribute.String("agent.name", name),
			attribute.Bool("has_context", callCtx != nil),
		))
	defer span.End()

	o.logger.Info("a2a call started",
		zap.String("agent", name),
		zap.Strings("context_keys", contextKeys(callCtx)),
	)

	start := time.Now()
	result, err := unit.Execute(ctx, input)
	duration := time.Since(start)

	if o.recorder != nil {
		o.recorder.RecordAgentCall(name, err == nil, duration)
	}

	if err != nil {
		span.SetAttributes(attribute.Bool("success", false))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("a2a call failed",
			zap.String("agent", name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("success", true))
	o.logger.Info("a2a call completed",
		zap.String("agent", name),
		zap.Duration("duration", duration),
		zap.Bool("success", true),
	)
	return result, nil
}

// resolve maps agent names to registered units, failing on the first
// missing name.
func (o *Orchestrator) resolve(names []string) ([]types.Executor, error) {
	units := make([]types.Executor, 0, len(names))
	for _, name := range names {
		unit, err := o.Get(name)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

// SequentialWorkflow builds a sequential composition over registered
// agents, in the given order.
func (o *Orchestrator) SequentialWorkflow(name string, agentNames ...string) (*workflow.Sequential, error) {
	units, err := o.resolve(agentNames)
	if err != nil {
		return nil, err
	}

	o.logger.Info("sequential workflow created",
		zap.String("workflow", name),
		zap.Strings("agents", agentNames),
	)
	return workflow.NewSequential(name, units...), nil
}

// ParallelWorkflow builds a parallel composition over registered agents.
func (o *Orchestrator) ParallelWorkflow(name string, agentNames ...string) (*workflow.Parallel, error) {
	units, err := o.resolve(agentNames)
	if err != nil {
		return nil, err
	}

	o.logger.Info("parallel workflow created",
		zap.String("workflow", name),
		zap.Strings("agents", agentNames),
	)
	return workflow.NewParallel(name, units...), nil
}

// LoopWorkflow builds a loop composition over one registered agent.
func (o *Orchestrator) LoopWorkflow(name, agentName string, maxIterations int) (*workflow.Loop, error) {
	unit, err := o.Get(agentName)
	if err != nil {
		return nil, err
	}

	o.logger.Info("loop workflow created",
		zap.String("workflow", name),
		zap.String("agent", agentName),
		zap.Int("max_iterations", maxIterations),
	)
	return workflow.NewLoop(name, unit, maxIterations), nil
}

func contextKeys(callCtx map[string]any) []string {
	if len(callCtx) == 0 {
		return nil
	}
	keys := make([]string, 0, len(callCtx))
	for k := range callCtx {
		keys = append(keys, k)
	}
	return keys
}
