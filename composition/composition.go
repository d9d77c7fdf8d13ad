// Package composition builds, validates, executes, and analyzes workflows
// of registered tools. A workflow runs in one of three modes: sequential
// (a data-flow pipeline), parallel (an independent fan-out), or conditional
// (first matching branch wins).
package composition

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weave-labs/toolweave"
)

// Type selects the execution strategy for a composition. The three modes
// are a closed set: each has its own validation rules and failure
// semantics, and a composition never changes mode after it is built.
type Type string

const (
	// Sequential executes specs in order, threading each step's output
	// into the next step's input.
	Sequential Type = "sequential"

	// Parallel executes every spec concurrently against the same input.
	Parallel Type = "parallel"

	// Conditional executes exactly one spec, chosen by evaluating each
	// spec's condition against the input in order.
	Conditional Type = "conditional"
)

// Condition gates a spec in a conditional composition.
type Condition interface {
	// Evaluate reports whether the branch should run for the given input.
	Evaluate(input map[string]any) bool

	// Describe returns a short human-readable form, used in diagrams.
	Describe() string
}

// FuncCondition wraps an arbitrary predicate.
type FuncCondition struct {
	name string
	fn   func(input map[string]any) bool
}

// NewFuncCondition creates a condition from a predicate function.
// The name is only used for display.
func NewFuncCondition(name string, fn func(input map[string]any) bool) *FuncCondition {
	return &FuncCondition{name: name, fn: fn}
}

func (c *FuncCondition) Evaluate(input map[string]any) bool {
	if c.fn == nil {
		return false
	}
	return c.fn(input)
}

func (c *FuncCondition) Describe() string {
	if c.name == "" {
		return "func"
	}
	return c.name
}

// EqualsCondition matches when the value at Key in the input equals Value.
// Key may be a dotted path into nested maps. This is the declarative form
// used by workflow files.
type EqualsCondition struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

func (c EqualsCondition) Evaluate(input map[string]any) bool {
	got, ok := lookupPath(input, c.Key)
	if !ok {
		return false
	}
	return got == c.Value
}

func (c EqualsCondition) Describe() string {
	return fmt.Sprintf("%s == %v", c.Key, c.Value)
}

var (
	_ Condition = (*FuncCondition)(nil)
	_ Condition = EqualsCondition{}
)

// ToolSpec is one tool invocation within a composition.
type ToolSpec struct {
	// ToolRef names the registered tool to invoke.
	ToolRef string `json:"toolRef" yaml:"toolRef"`

	// Params are merged into the step's input at execution time.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// OutputMapping projects values from upstream output into this step's
	// parameters. Keys are the parameter names to create; values are dotted
	// paths into the upstream data, rooted at the producing tool's name.
	// Sequential mode only.
	OutputMapping map[string]string `json:"outputMapping,omitempty" yaml:"outputMapping,omitempty"`

	// Condition gates this spec in a conditional composition.
	Condition Condition `json:"-" yaml:"-"`
}

// Composition is an immutable workflow value. Build one with Sequential,
// Parallel, or Conditional; it can then be validated and executed any
// number of times.
type Composition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Type        Type              `json:"type" yaml:"type"`
	Specs       []ToolSpec        `json:"specs" yaml:"specs"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt" yaml:"createdAt"`
}

// BuildOption customizes a composition at build time.
type BuildOption func(*Composition)

// WithDescription sets the composition description.
func WithDescription(desc string) BuildOption {
	return func(c *Composition) {
		c.Description = desc
	}
}

// WithMetadata attaches a metadata entry.
func WithMetadata(key, value string) BuildOption {
	return func(c *Composition) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		c.Metadata[key] = value
	}
}

// WithID overrides the generated composition ID. Useful when hydrating
// from a workflow file.
func WithID(id string) BuildOption {
	return func(c *Composition) {
		c.ID = id
	}
}

// NewSequential builds a sequential composition.
func NewSequential(name string, specs []ToolSpec, opts ...BuildOption) (Composition, error) {
	return build(Sequential, name, specs, opts...)
}

// NewParallel builds a parallel composition.
func NewParallel(name string, specs []ToolSpec, opts ...BuildOption) (Composition, error) {
	return build(Parallel, name, specs, opts...)
}

// NewConditional builds a conditional composition.
func NewConditional(name string, specs []ToolSpec, opts ...BuildOption) (Composition, error) {
	return build(Conditional, name, specs, opts...)
}

func build(t Type, name string, specs []ToolSpec, opts ...BuildOption) (Composition, error) {
	if len(specs) == 0 {
		return Composition{}, fmt.Errorf("composition: build %q: %w", name, toolweave.ErrEmptyComposition)
	}

	c := Composition{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      t,
		Specs:     append([]ToolSpec(nil), specs...),
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}
