package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/capability"
	"github.com/weave-labs/toolweave/metrics"
)

// entry is one registered tool. The descriptor is treated as immutable once
// stored; re-registration swaps the whole entry.
type entry struct {
	descriptor toolweave.ToolDescriptor
	tool       toolweave.Tool
	metrics    *metrics.ToolMetrics
	seq        int64 // insertion order, used for search tie-breaking
}

// Registry is the concurrent-safe catalog of tool descriptors.
//
// A single RWMutex guards the descriptor map, the capability index, and the
// per-tool metrics, so registration, unregistration, and metric recording
// are atomic with respect to concurrent readers: a reader never observes a
// capability-index entry pointing at a removed descriptor.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	capIndex map[string]map[string]struct{} // capability name -> set of refs
	nextSeq  int64

	catalog *capability.Catalog
	store   Store
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithCatalog sets the capability catalog used for inference and
// composability checks. Defaults to capability.Default().
func WithCatalog(c *capability.Catalog) Option {
	return func(r *Registry) {
		if c != nil {
			r.catalog = c
		}
	}
}

// WithStore sets a persistence store; registrations and unregistrations are
// written through to it.
func WithStore(s Store) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithLogger sets the registry logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		capIndex: make(map[string]map[string]struct{}),
		catalog:  capability.Default(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the capability catalog this registry validates against.
func (r *Registry) Catalog() *capability.Catalog {
	return r.catalog
}

// Register atomically inserts the descriptor, indexes it under every
// declared and inferred capability, and initializes a zero-value metrics
// record. Re-registering an existing ref replaces the previous registration
// wholesale, metrics included.
//
// The callable must satisfy the minimal execute contract; a nil tool is
// rejected before any state changes.
func (r *Registry) Register(ctx context.Context, tool toolweave.Tool, desc toolweave.ToolDescriptor) error {
	if tool == nil {
		return fmt.Errorf("registry: register %q: %w", desc.Ref, toolweave.ErrInvalidTool)
	}
	if strings.TrimSpace(desc.Ref) == "" {
		desc.Ref = tool.Name()
	}
	if strings.TrimSpace(desc.Ref) == "" {
		return errEmptyRef
	}
	if desc.Name == "" {
		desc.Name = desc.Ref
	}
	if desc.Source == "" {
		desc.Source = toolweave.SourceInternal
	}
	if desc.RegisteredAt.IsZero() {
		desc.RegisteredAt = r.now().UTC()
	}

	// Schema inference only ever adds capabilities, never removes declared ones.
	inferred := r.catalog.InferFromSchema(desc.InputSchema)
	desc.Capabilities = mergeCapabilities(desc.Capabilities, inferred)

	r.mu.Lock()
	if prev, ok := r.entries[desc.Ref]; ok {
		r.removeFromIndexLocked(prev)
	}
	e := &entry{
		descriptor: desc.Clone(),
		tool:       tool,
		metrics:    metrics.New(),
		seq:        r.nextSeq,
	}
	r.nextSeq++
	r.entries[desc.Ref] = e
	r.addToIndexLocked(e)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Upsert(ctx, Registration{
			Descriptor: desc,
			Metrics:    metrics.New(),
			UpdatedAt:  r.now().UTC(),
		}); err != nil {
			return fmt.Errorf("registry: persist %q: %w", desc.Ref, err)
		}
	}
	return nil
}

// Unregister atomically removes the descriptor, every capability-index entry
// referencing it, and its metrics record. No partial removal is observable.
func (r *Registry) Unregister(ctx context.Context, ref string) error {
	r.mu.Lock()
	e, ok := r.entries[ref]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: unregister %q: %w", ref, toolweave.ErrToolNotFound)
	}
	r.removeFromIndexLocked(e)
	delete(r.entries, ref)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, ref); err != nil {
			return fmt.Errorf("registry: delete persisted %q: %w", ref, err)
		}
	}
	return nil
}

// Get returns the descriptor registered under ref.
func (r *Registry) Get(ref string) (toolweave.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	if !ok {
		return toolweave.ToolDescriptor{}, false
	}
	return e.descriptor.Clone(), true
}

// Resolve returns the callable registered under ref.
// The composition engine resolves each step as it dispatches; a tool
// unregistered mid-composition fails resolution for later steps without
// aborting invocations already in flight.
func (r *Registry) Resolve(ref string) (toolweave.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Filter restricts List results. Zero fields match everything.
type Filter struct {
	// Category must match exactly when set.
	Category string
	// Tags match when any tag overlaps.
	Tags []string
	// Capabilities match when all are present.
	Capabilities []string
}

// List returns descriptors matching all supplied filters, sorted by name.
func (r *Registry) List(filter Filter) []toolweave.ToolDescriptor {
	r.mu.RLock()
	out := make([]toolweave.ToolDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if !matchesFilter(e.descriptor, filter) {
			continue
		}
		out = append(out, e.descriptor.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b toolweave.ToolDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// RecordMetric applies an invocation outcome to the tool's metrics.
// A missing ref is logged and swallowed: metric recording must never break
// the caller's critical path.
func (r *Registry) RecordMetric(ref string, out metrics.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ref]
	if !ok {
		r.logger.Warn("metric recorded for unknown tool", "ref", ref)
		return
	}
	e.metrics.Record(out, r.now())
}

// GetMetrics returns a snapshot of the tool's metrics record.
func (r *Registry) GetMetrics(ref string) (*metrics.ToolMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	if !ok {
		return nil, false
	}
	return e.metrics.Clone(), true
}

// Aggregate prunes expired metric buckets for every registered tool.
func (r *Registry) Aggregate(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		e.metrics.Aggregate(now)
	}
}

// Flush writes current descriptors and metric snapshots to the store.
func (r *Registry) Flush(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	r.mu.RLock()
	regs := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		regs = append(regs, Registration{
			Descriptor: e.descriptor.Clone(),
			Metrics:    e.metrics.Clone(),
			UpdatedAt:  r.now().UTC(),
		})
	}
	r.mu.RUnlock()

	for _, reg := range regs {
		if err := r.store.Upsert(ctx, reg); err != nil {
			return fmt.Errorf("registry: flush %q: %w", reg.Descriptor.Ref, err)
		}
	}
	return nil
}

// Load hydrates the registry from its store, binding each persisted
// descriptor back to a callable via resolve. Descriptors the resolver
// cannot bind are skipped with a log entry. Persisted metrics survive the
// restart.
func (r *Registry) Load(ctx context.Context, resolve func(ref string) (toolweave.Tool, bool)) error {
	if r.store == nil {
		return nil
	}

	regs, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("registry: load registrations: %w", err)
	}

	for _, reg := range regs {
		tool, ok := resolve(reg.Descriptor.Ref)
		if !ok {
			r.logger.Warn("no callable bound for persisted tool", "ref", reg.Descriptor.Ref)
			continue
		}

		m := reg.Metrics
		if m != nil {
			m = m.Clone()
		} else {
			m = metrics.New()
		}

		r.mu.Lock()
		if prev, exists := r.entries[reg.Descriptor.Ref]; exists {
			r.removeFromIndexLocked(prev)
		}
		e := &entry{
			descriptor: reg.Descriptor.Clone(),
			tool:       tool,
			metrics:    m,
			seq:        r.nextSeq,
		}
		r.nextSeq++
		r.entries[reg.Descriptor.Ref] = e
		r.addToIndexLocked(e)
		r.mu.Unlock()
	}
	return nil
}

func (r *Registry) addToIndexLocked(e *entry) {
	for _, name := range e.descriptor.Capabilities {
		refs, ok := r.capIndex[name]
		if !ok {
			refs = make(map[string]struct{})
			r.capIndex[name] = refs
		}
		refs[e.descriptor.Ref] = struct{}{}
	}
}

func (r *Registry) removeFromIndexLocked(e *entry) {
	for _, name := range e.descriptor.Capabilities {
		refs, ok := r.capIndex[name]
		if !ok {
			continue
		}
		delete(refs, e.descriptor.Ref)
		if len(refs) == 0 {
			delete(r.capIndex, name)
		}
	}
}

func matchesFilter(desc toolweave.ToolDescriptor, filter Filter) bool {
	if filter.Category != "" && desc.Category != filter.Category {
		return false
	}
	if len(filter.Tags) > 0 {
		overlap := false
		for _, tag := range filter.Tags {
			if desc.HasTag(tag) {
				overlap = true
				break
			}
		}
		if !overlap {
			return false
		}
	}
	for _, name := range filter.Capabilities {
		if !desc.HasCapability(name) {
			return false
		}
	}
	return true
}

func mergeCapabilities(declared, inferred []string) []string {
	out := slices.Clone(declared)
	for _, name := range inferred {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
