package composition

import (
	"log/slog"
	"time"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/capability"
	"github.com/weave-labs/toolweave/metrics"
)

// ToolSource is the registry surface the engine depends on. *registry.Registry
// satisfies it.
type ToolSource interface {
	// Get returns the descriptor registered under ref.
	Get(ref string) (toolweave.ToolDescriptor, bool)

	// Resolve returns the callable registered under ref.
	Resolve(ref string) (toolweave.Tool, bool)

	// Catalog returns the capability catalog used for compatibility checks.
	Catalog() *capability.Catalog

	// RecordMetric applies an invocation outcome. Implementations must
	// swallow unknown refs.
	RecordMetric(ref string, out metrics.Outcome)

	// GetMetrics returns a snapshot of the tool's metrics record.
	GetMetrics(ref string) (*metrics.ToolMetrics, bool)
}

// Engine validates, executes, and analyzes compositions against a tool
// source.
type Engine struct {
	source  ToolSource
	logger  *slog.Logger
	handler toolweave.EventHandler
	now     func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventHandler sets a handler invoked for every execution event.
func WithEventHandler(h toolweave.EventHandler) EngineOption {
	return func(e *Engine) {
		e.handler = h
	}
}

// WithClock overrides the engine's time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an execution engine backed by the given tool source.
func NewEngine(source ToolSource, opts ...EngineOption) *Engine {
	e := &Engine{
		source: source,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
