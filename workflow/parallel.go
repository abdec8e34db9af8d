package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/intervu-ai/agentcore/types"
)

// Parallel executes all units concurrently against the same input and
// collects their outputs in unit order, regardless of completion order.
//
// Failure policy: the first unit error wins and cancels the group context,
// so still-running siblings observe cancellation instead of being silently
// abandoned. Partial outputs are never returned.
type Parallel struct {
	name        string
	description string
	units       []types.Executor
}

// NewParallel creates a parallel composition over units.
func NewParallel(name string, units ...types.Executor) *Parallel {
	return &Parallel{
		name:        name,
		description: "parallel composition",
		units:       units,
	}
}

func (w *Parallel) ID() string              { return w.name }
func (w *Parallel) Name() string            { return w.name }
func (w *Parallel) Description() string     { return w.description }
func (w *Parallel) Units() []types.Executor { return w.units }

// Execute fans the input out to every unit and joins on all of them.
// Returns a []any whose index i holds the output of units[i].
func (w *Parallel) Execute(ctx context.Context, input any) (any, error) {
	if len(w.units) == 0 {
		return nil, fmt.Errorf("no units to execute")
	}

	results := make([]any, len(w.units))
	g, gctx := errgroup.WithContext(ctx)

	for i, unit := range w.units {
		g.Go(func() error {
			result, err := unit.Execute(gctx, input)
			if err != nil {
				return fmt.Errorf("unit %s failed: %w", unit.ID(), err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// AddUnit appends a unit to the composition.
func (w *Parallel) AddUnit(unit types.Executor) {
	w.units = append(w.units, unit)
}
