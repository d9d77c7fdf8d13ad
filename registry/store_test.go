package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/metrics"
)

func sampleRegistration(ref string) Registration {
	m := metrics.New()
	m.Record(metrics.Success(120), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return Registration{
		Descriptor: toolweave.ToolDescriptor{
			Ref:          ref,
			Name:         ref,
			Description:  "sample tool",
			Category:     "testing",
			Tags:         []string{"sample"},
			Capabilities: []string{"dataTransformation"},
		},
		Metrics:   m,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// storeContract exercises the Store behavior every implementation must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	regs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() on empty store error = %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("List() on empty store = %d registrations, want 0", len(regs))
	}

	if err := store.Upsert(ctx, sampleRegistration("beta")); err != nil {
		t.Fatalf("Upsert(beta) error = %v", err)
	}
	if err := store.Upsert(ctx, sampleRegistration("alpha")); err != nil {
		t.Fatalf("Upsert(alpha) error = %v", err)
	}

	regs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("List() = %d registrations, want 2", len(regs))
	}
	if regs[0].Descriptor.Ref != "alpha" || regs[1].Descriptor.Ref != "beta" {
		t.Fatalf("List() order = [%s %s], want ref-sorted", regs[0].Descriptor.Ref, regs[1].Descriptor.Ref)
	}

	got, ok, err := store.Get(ctx, "alpha")
	if err != nil || !ok {
		t.Fatalf("Get(alpha) = %v, %v", ok, err)
	}
	if got.Descriptor.Description != "sample tool" {
		t.Fatalf("Description = %q, want round-tripped descriptor", got.Descriptor.Description)
	}
	if got.Metrics == nil || got.Metrics.TotalExecutions != 1 {
		t.Fatalf("Metrics = %+v, want persisted record", got.Metrics)
	}

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v, want not found without error", ok, err)
	}

	// Upsert replaces in place.
	updated := sampleRegistration("alpha")
	updated.Descriptor.Description = "updated"
	if err := store.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert(update) error = %v", err)
	}
	got, _, _ = store.Get(ctx, "alpha")
	if got.Descriptor.Description != "updated" {
		t.Fatalf("Description after update = %q, want updated", got.Descriptor.Description)
	}

	if err := store.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("Delete(alpha) error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "alpha"); ok {
		t.Fatal("Get(alpha) found after Delete")
	}
	if err := store.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("Delete() of absent ref error = %v, want nil", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	storeContract(t, NewFileStore(path))
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.json")

	first := NewFileStore(path)
	if err := first.Upsert(ctx, sampleRegistration("alpha")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	second := NewFileStore(path)
	got, ok, err := second.Get(ctx, "alpha")
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = %v, %v", ok, err)
	}
	if got.Descriptor.Ref != "alpha" {
		t.Fatalf("Ref = %q, want alpha", got.Descriptor.Ref)
	}
}

func TestSQLiteStoreContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	store, err := NewSQLiteStore(SQLiteStoreConfig{DSN: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	storeContract(t, store)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteStoreConfig{}); err == nil {
		t.Fatal("NewSQLiteStore() error = nil, want error for empty DSN")
	}
}
