package workflow

import (
	"context"
	"fmt"

	"github.com/intervu-ai/agentcore/types"
)

// Loop executes a single unit a fixed number of times, feeding each
// iteration's output into the next iteration's input. There is no
// convergence predicate: the unit runs exactly maxIterations times, and
// zero iterations returns the input unchanged. Callers that want an early
// exit on a quality threshold wrap the unit themselves.
type Loop struct {
	name          string
	description   string
	unit          types.Executor
	maxIterations int
}

// NewLoop creates a loop composition over unit with a fixed iteration count.
func NewLoop(name string, unit types.Executor, maxIterations int) *Loop {
	return &Loop{
		name:          name,
		description:   "loop composition",
		unit:          unit,
		maxIterations: maxIterations,
	}
}

func (w *Loop) ID() string          { return w.name }
func (w *Loop) Name() string        { return w.name }
func (w *Loop) Description() string { return w.description }
func (w *Loop) MaxIterations() int  { return w.maxIterations }

// Execute runs the unit maxIterations times in strict sequence.
func (w *Loop) Execute(ctx context.Context, input any) (any, error) {
	current := input

	for i := 0; i < w.maxIterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := w.unit.Execute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("iteration %d (%s) failed: %w", i+1, w.unit.ID(), err)
		}

		current = result
	}

	return current, nil
}
