// Package toolweave provides the foundational types for the ToolWeave
// capability registry and composition engine.
//
// This package contains:
//   - The Tool interface every registered callable must satisfy
//   - ToolDescriptor and related registration metadata
//   - The error taxonomy shared by registry and composition
//   - The runtime Event stream used for observability
package toolweave

import (
	"context"
)

// Tool is the minimal execute contract a registered callable must satisfy.
// Tools are opaque to the engine: their business logic is never inspected,
// only invoked.
type Tool interface {
	// Name returns the tool's unique reference.
	Name() string

	// Execute runs the tool with the given parameters.
	// Implementations should honor context cancellation for long calls.
	Execute(ctx context.Context, params map[string]any) (map[string]any, error)
}

// FuncTool is a simple function-backed tool.
// Useful for creating tools inline without implementing a full interface.
type FuncTool struct {
	name        string
	description string
	fn          func(ctx context.Context, params map[string]any) (map[string]any, error)
}

// NewFuncTool creates a new function-backed tool.
func NewFuncTool(name, description string, fn func(ctx context.Context, params map[string]any) (map[string]any, error)) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		fn:          fn,
	}
}

// Name returns the tool's name.
func (t *FuncTool) Name() string {
	return t.name
}

// Description returns the tool's description.
func (t *FuncTool) Description() string {
	return t.description
}

// Execute runs the wrapped function.
func (t *FuncTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	if t.fn == nil {
		return map[string]any{}, nil
	}
	return t.fn(ctx, params)
}

// Ensure interface compliance at compile time.
var _ Tool = (*FuncTool)(nil)
