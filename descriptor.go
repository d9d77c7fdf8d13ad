package toolweave

import (
	"slices"
	"time"
)

// Source indicates where a tool implementation lives.
type Source string

const (
	// SourceInternal marks tools compiled into the host process.
	SourceInternal Source = "internal"
	// SourceExternal marks tools provided by an outside collaborator.
	SourceExternal Source = "external"
)

// PerformanceHints carries default latency, timeout, and concurrency
// expectations declared at registration time. All values are optional;
// zero means "no hint".
type PerformanceHints struct {
	DefaultLatencyMS float64 `json:"default_latency_ms,omitempty" yaml:"default_latency_ms,omitempty"`
	TimeoutMS        int64   `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	MaxConcurrency   int     `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
}

// Example documents one sample invocation of a tool.
type Example struct {
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Input       map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty" yaml:"output,omitempty"`
}

// ToolDescriptor is the immutable registration record for a tool.
// Re-registration replaces the descriptor wholesale; fields are never
// mutated in place once the descriptor is stored.
type ToolDescriptor struct {
	Ref              string           `json:"ref" yaml:"ref"`
	Name             string           `json:"name" yaml:"name"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	Category         string           `json:"category,omitempty" yaml:"category,omitempty"`
	Tags             []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Capabilities     []string         `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Version          string           `json:"version,omitempty" yaml:"version,omitempty"`
	InputSchema      map[string]any   `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	Examples         []Example        `json:"examples,omitempty" yaml:"examples,omitempty"`
	PerformanceHints PerformanceHints `json:"performance_hints,omitempty" yaml:"performance_hints,omitempty"`
	Dependencies     []string         `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Source           Source           `json:"source,omitempty" yaml:"source,omitempty"`
	RegisteredAt     time.Time        `json:"registered_at,omitempty" yaml:"registered_at,omitempty"`
}

// HasCapability reports whether the descriptor declares the given capability.
func (d ToolDescriptor) HasCapability(name string) bool {
	return slices.Contains(d.Capabilities, name)
}

// HasTag reports whether the descriptor carries the given tag.
func (d ToolDescriptor) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// Clone returns a copy of the descriptor with its own slices and maps,
// suitable for handing to callers without exposing shared state.
func (d ToolDescriptor) Clone() ToolDescriptor {
	out := d
	out.Tags = slices.Clone(d.Tags)
	out.Capabilities = slices.Clone(d.Capabilities)
	out.Dependencies = slices.Clone(d.Dependencies)
	if d.InputSchema != nil {
		out.InputSchema = make(map[string]any, len(d.InputSchema))
		for k, v := range d.InputSchema {
			out.InputSchema[k] = v
		}
	}
	if d.Examples != nil {
		out.Examples = make([]Example, len(d.Examples))
		copy(out.Examples, d.Examples)
	}
	return out
}
