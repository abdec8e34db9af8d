// Package workflow provides composition of asynchronous units of work.
//
// Three composition shapes are supported: Sequential (output of step i is
// input to step i+1), Parallel (all units share one input, outputs keep
// unit order), and Loop (a fixed number of iterations feeding each
// iteration's output into the next). Every composition satisfies
// types.Executor, so workflows nest inside other workflows.
package workflow

import (
	"context"

	"github.com/intervu-ai/agentcore/types"
)

// Workflow is a named composition of units of work.
type Workflow interface {
	types.Executor
	// Description returns a human-readable summary of the composition.
	Description() string
}

// Func adapts a plain function into a types.Executor. It is the cheapest
// way to register a unit with the orchestrator or embed one in a workflow.
type Func struct {
	id string
	fn func(ctx context.Context, input any) (any, error)
}

// NewFunc wraps fn as an executor identified by id.
func NewFunc(id string, fn func(ctx context.Context, input any) (any, error)) *Func {
	return &Func{id: id, fn: fn}
}

func (f *Func) ID() string { return f.id }

func (f *Func) Execute(ctx context.Context, input any) (any, error) {
	return f.fn(ctx, input)
}
