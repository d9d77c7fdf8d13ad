// Package registry provides the concurrent-safe catalog of registered tools:
// registration, filtered listing, free-text search, capability-indexed
// discovery, context-aware recommendation, and per-tool metric recording.
//
// The hot path is fully in-memory. Durability is optional and delegated to a
// pluggable Store, so tests get isolation for free and a networked store can
// be swapped in later without touching registry semantics.
package registry

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/metrics"
)

// Registration is the persisted record for a registered tool.
// The callable itself is never persisted; hydration binds callables back to
// descriptors via a resolver supplied by the caller.
type Registration struct {
	Descriptor toolweave.ToolDescriptor `json:"descriptor"`
	Metrics    *metrics.ToolMetrics     `json:"metrics,omitempty"`
	UpdatedAt  time.Time                `json:"updated_at,omitempty"`
}

// Store abstracts registration persistence for CLI (file or SQLite) and
// embedded (memory) modes.
type Store interface {
	List(ctx context.Context) ([]Registration, error)
	Get(ctx context.Context, ref string) (Registration, bool, error)
	Upsert(ctx context.Context, reg Registration) error
	Delete(ctx context.Context, ref string) error
}

// MemoryStore is an in-memory Store implementation, used as the default
// backing store and for test isolation.
type MemoryStore struct {
	mu   sync.RWMutex
	regs map[string]Registration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		regs: make(map[string]Registration),
	}
}

// List returns all registrations in deterministic (ref-sorted) order.
func (s *MemoryStore) List(ctx context.Context) ([]Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	regs := make([]Registration, 0, len(s.regs))
	for _, reg := range s.regs {
		regs = append(regs, cloneRegistration(reg))
	}
	sortRegistrations(regs)
	return regs, nil
}

// Get returns a registration by ref.
func (s *MemoryStore) Get(ctx context.Context, ref string) (Registration, bool, error) {
	if err := ctx.Err(); err != nil {
		return Registration{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.regs[ref]
	if !ok {
		return Registration{}, false, nil
	}
	return cloneRegistration(reg), true, nil
}

// Upsert inserts or updates a registration keyed by its descriptor ref.
func (s *MemoryStore) Upsert(ctx context.Context, reg Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(reg.Descriptor.Ref) == "" {
		return errEmptyRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.regs[reg.Descriptor.Ref] = cloneRegistration(reg)
	return nil
}

// Delete removes a registration by ref. Deleting a missing ref is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.regs, ref)
	return nil
}

func sortRegistrations(regs []Registration) {
	slices.SortFunc(regs, func(a, b Registration) int {
		return strings.Compare(a.Descriptor.Ref, b.Descriptor.Ref)
	})
}

func cloneRegistration(in Registration) Registration {
	out := Registration{
		Descriptor: in.Descriptor.Clone(),
		UpdatedAt:  in.UpdatedAt,
	}
	if in.Metrics != nil {
		out.Metrics = in.Metrics.Clone()
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
