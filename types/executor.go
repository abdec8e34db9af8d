package types

import "context"

// =============================================================================
// Minimal Agent Execution Interfaces
// =============================================================================
// These interfaces define the smallest common contract shared by every unit
// of work in the module (llm.Agent, the workflow compositions, and any
// caller-provided executor registered with the orchestrator).
//
// The types package is the lowest-level package with no internal
// dependencies, so placing these interfaces here avoids circular imports.
// =============================================================================

// Executor is the minimal unit-of-work interface. A unit takes one input
// value and returns one output value or fails with an error. Units own no
// composer-visible state.
type Executor interface {
	// ID returns the unit's unique identifier.
	ID() string
	// Execute runs the unit with the given input and returns the result.
	Execute(ctx context.Context, input any) (any, error)
}

// Named is an optional interface for executors that have a display name.
// Use a type assertion to check if an Executor also implements Named:
//
//	if named, ok := executor.(types.Named); ok {
//	    fmt.Println(named.Name())
//	}
type Named interface {
	// Name returns the executor's human-readable display name.
	Name() string
}
