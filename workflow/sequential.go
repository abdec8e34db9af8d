package workflow

import (
	"context"
	"fmt"

	"github.com/intervu-ai/agentcore/types"
)

// Sequential executes its units strictly in order. Each unit receives the
// immediately preceding unit's output; the first receives the external
// input. The first failing unit aborts the run and the remaining units do
// not execute.
type Sequential struct {
	name        string
	description string
	units       []types.Executor
}

// NewSequential creates a sequential composition over units.
func NewSequential(name string, units ...types.Executor) *Sequential {
	return &Sequential{
		name:        name,
		description: "sequential composition",
		units:       units,
	}
}

func (w *Sequential) ID() string              { return w.name }
func (w *Sequential) Name() string            { return w.name }
func (w *Sequential) Description() string     { return w.description }
func (w *Sequential) Units() []types.Executor { return w.units }

// Execute runs each unit in order, threading outputs into inputs.
func (w *Sequential) Execute(ctx context.Context, input any) (any, error) {
	current := input

	for i, unit := range w.units {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := unit.Execute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s) failed: %w", i+1, unit.ID(), err)
		}

		current = result
	}

	return current, nil
}

// AddUnit appends a unit to the composition.
func (w *Sequential) AddUnit(unit types.Executor) {
	w.units = append(w.units, unit)
}
