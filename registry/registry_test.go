package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/capability"
	"github.com/weave-labs/toolweave/metrics"
)

func okTool(name string) toolweave.Tool {
	return toolweave.NewFuncTool(name, "test tool", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})
}

func mustRegister(t *testing.T, r *Registry, desc toolweave.ToolDescriptor) {
	t.Helper()
	if err := r.Register(context.Background(), okTool(desc.Ref), desc); err != nil {
		t.Fatalf("Register(%q) error = %v", desc.Ref, err)
	}
}

func TestRegisterRejectsNilTool(t *testing.T) {
	r := New()

	err := r.Register(context.Background(), nil, toolweave.ToolDescriptor{Ref: "broken"})
	if !errors.Is(err, toolweave.ErrInvalidTool) {
		t.Fatalf("Register(nil tool) error = %v, want ErrInvalidTool", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after rejected registration, want 0", r.Len())
	}
}

func TestRegisterDiscoverUnregisterLifecycle(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref:          "summarizer",
		Capabilities: []string{capability.TextProcessing, capability.DataTransformation},
	})

	for _, name := range []string{capability.TextProcessing, capability.DataTransformation} {
		found := r.DiscoverByCapability(name, DiscoverOptions{})
		if len(found) != 1 || found[0].Descriptor.Ref != "summarizer" {
			t.Fatalf("DiscoverByCapability(%q) = %v, want [summarizer]", name, found)
		}
	}

	if err := r.Unregister(context.Background(), "summarizer"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	for _, name := range []string{capability.TextProcessing, capability.DataTransformation} {
		if found := r.DiscoverByCapability(name, DiscoverOptions{}); len(found) != 0 {
			t.Fatalf("DiscoverByCapability(%q) after unregister = %v, want empty", name, found)
		}
	}
	if _, ok := r.Get("summarizer"); ok {
		t.Fatal("Get() after unregister ok = true, want false")
	}
	if _, ok := r.GetMetrics("summarizer"); ok {
		t.Fatal("GetMetrics() after unregister ok = true, want false")
	}
}

func TestUnregisterUnknownRef(t *testing.T) {
	r := New()

	err := r.Unregister(context.Background(), "ghost")
	if !errors.Is(err, toolweave.ErrToolNotFound) {
		t.Fatalf("Unregister(ghost) error = %v, want ErrToolNotFound", err)
	}
}

func TestRegisterInfersCapabilitiesFromSchema(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref:          "archive_files",
		Capabilities: []string{capability.DataTransformation},
		InputSchema: map[string]any{
			"file_path": map[string]any{"type": "string"},
		},
	})

	desc, ok := r.Get("archive_files")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !desc.HasCapability(capability.FileOperations) {
		t.Errorf("inferred capability %q missing from %v", capability.FileOperations, desc.Capabilities)
	}
	if !desc.HasCapability(capability.DataTransformation) {
		t.Errorf("declared capability %q lost from %v", capability.DataTransformation, desc.Capabilities)
	}

	if found := r.DiscoverByCapability(capability.FileOperations, DiscoverOptions{}); len(found) != 1 {
		t.Errorf("DiscoverByCapability(fileOperations) = %v, want one entry", found)
	}
}

func TestReRegistrationReplacesWholesale(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref:          "shape",
		Capabilities: []string{capability.TextProcessing},
	})
	r.RecordMetric("shape", metrics.Success(40))

	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref:          "shape",
		Capabilities: []string{capability.DataTransformation},
	})

	if found := r.DiscoverByCapability(capability.TextProcessing, DiscoverOptions{}); len(found) != 0 {
		t.Errorf("stale capability index entry survived re-registration: %v", found)
	}
	if found := r.DiscoverByCapability(capability.DataTransformation, DiscoverOptions{}); len(found) != 1 {
		t.Errorf("DiscoverByCapability(dataTransformation) = %v, want one entry", found)
	}

	m, ok := r.GetMetrics("shape")
	if !ok {
		t.Fatal("GetMetrics() ok = false, want true")
	}
	if m.TotalExecutions != 0 {
		t.Errorf("TotalExecutions after re-registration = %d, want 0", m.TotalExecutions)
	}
}

func TestListFilters(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "beta", Category: "data", Tags: []string{"etl"},
		Capabilities: []string{capability.DataTransformation},
	})
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "alpha", Category: "data", Tags: []string{"etl", "batch"},
		Capabilities: []string{capability.DataTransformation, capability.FileOperations},
	})
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "gamma", Category: "text", Tags: []string{"nlp"},
		Capabilities: []string{capability.TextProcessing},
	})

	all := r.List(Filter{})
	if len(all) != 3 {
		t.Fatalf("List(Filter{}) returned %d descriptors, want 3", len(all))
	}
	if all[0].Name != "alpha" || all[1].Name != "beta" || all[2].Name != "gamma" {
		t.Errorf("List() order = [%s %s %s], want name-sorted", all[0].Name, all[1].Name, all[2].Name)
	}

	byCategory := r.List(Filter{Category: "data"})
	if len(byCategory) != 2 {
		t.Errorf("List(category=data) returned %d, want 2", len(byCategory))
	}

	byTags := r.List(Filter{Tags: []string{"batch", "nlp"}})
	if len(byTags) != 2 {
		t.Errorf("List(tags overlap) returned %d, want 2", len(byTags))
	}

	byCaps := r.List(Filter{Capabilities: []string{capability.DataTransformation, capability.FileOperations}})
	if len(byCaps) != 1 || byCaps[0].Ref != "alpha" {
		t.Errorf("List(all capabilities) = %v, want [alpha]", byCaps)
	}
}

func TestSearchRankingAndTies(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "csv_parse", Name: "csv_parse", Description: "parses csv files",
		Tags: []string{"csv", "parser"},
	})
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "report", Name: "report", Description: "renders csv reports",
	})
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "sheet", Name: "sheet", Description: "spreadsheet via csv import",
	})

	got := r.Search("csv", 10)
	if len(got) != 3 {
		t.Fatalf("Search(csv) returned %d results, want 3", len(got))
	}

	// name(10) + description(5) + one tag(3)
	if got[0].Descriptor.Ref != "csv_parse" || got[0].Score != 18 {
		t.Errorf("top result = %s score %v, want csv_parse score 18", got[0].Descriptor.Ref, got[0].Score)
	}
	// Description-only matches tie at 5; insertion order breaks the tie.
	if got[1].Descriptor.Ref != "report" || got[2].Descriptor.Ref != "sheet" {
		t.Errorf("tie order = [%s %s], want [report sheet]", got[1].Descriptor.Ref, got[2].Descriptor.Ref)
	}

	if limited := r.Search("csv", 1); len(limited) != 1 {
		t.Errorf("Search(csv, 1) returned %d results, want 1", len(limited))
	}
	if none := r.Search("grpc", 10); len(none) != 0 {
		t.Errorf("Search(grpc) = %v, want empty", none)
	}
}

func TestDiscoverOrdersByQuality(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "flaky", Capabilities: []string{capability.TextProcessing},
	})
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "solid", Capabilities: []string{capability.TextProcessing},
	})

	for i := 0; i < 20; i++ {
		r.RecordMetric("solid", metrics.Success(50))
		r.RecordMetric("flaky", metrics.Failure(toolweave.ErrorKindExecution))
	}

	found := r.DiscoverByCapability(capability.TextProcessing, DiscoverOptions{})
	if len(found) != 2 {
		t.Fatalf("DiscoverByCapability() returned %d, want 2", len(found))
	}
	if found[0].Descriptor.Ref != "solid" {
		t.Errorf("top discovery = %s, want solid", found[0].Descriptor.Ref)
	}
	if found[0].Score <= found[1].Score {
		t.Errorf("scores not descending: %v then %v", found[0].Score, found[1].Score)
	}
}

func TestRecommendBlendsQualityAndContext(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "fits", Category: "data", Tags: []string{"etl", "batch"},
		Capabilities: []string{capability.DataTransformation},
	})
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref: "unrelated", Category: "text",
		Capabilities: []string{capability.TextProcessing},
	})

	rc := RecommendationContext{
		Category:             "data",
		Tags:                 []string{"etl"},
		RequiredCapabilities: []string{capability.DataTransformation},
	}

	got := r.Recommend(rc, 10)
	if len(got) != 2 {
		t.Fatalf("Recommend() returned %d, want 2", len(got))
	}
	if got[0].Descriptor.Ref != "fits" {
		t.Fatalf("top recommendation = %s, want fits", got[0].Descriptor.Ref)
	}

	// Fresh tools score quality 90 (60 success + 30 latency + 0 usage).
	// Context: tag 10 + capability 15 + category 20 = 45.
	wantTop := 0.4*90 + 0.6*45
	if got[0].Score != wantTop {
		t.Errorf("top score = %v, want %v", got[0].Score, wantTop)
	}

	if limited := r.Recommend(rc, 1); len(limited) != 1 {
		t.Errorf("Recommend(limit=1) returned %d, want 1", len(limited))
	}
}

func TestRecordMetricUnknownRefIsSwallowed(t *testing.T) {
	r := New()
	// Must not panic or error.
	r.RecordMetric("ghost", metrics.Success(10))
}

func TestRecordMetricAndGetMetricsSnapshot(t *testing.T) {
	r := New()
	mustRegister(t, r, toolweave.ToolDescriptor{Ref: "worker"})

	r.RecordMetric("worker", metrics.Success(30))
	r.RecordMetric("worker", metrics.Failure(toolweave.ErrorKindTimeout))

	m, ok := r.GetMetrics("worker")
	if !ok {
		t.Fatal("GetMetrics() ok = false, want true")
	}
	if m.TotalExecutions != 2 || m.SuccessfulExecutions != 1 || m.FailedExecutions != 1 {
		t.Fatalf("counters = %d/%d/%d, want 2/1/1", m.TotalExecutions, m.SuccessfulExecutions, m.FailedExecutions)
	}

	// Mutating the snapshot must not touch registry state.
	m.TotalExecutions = 999
	again, _ := r.GetMetrics("worker")
	if again.TotalExecutions != 2 {
		t.Errorf("snapshot mutation leaked into registry: TotalExecutions = %d", again.TotalExecutions)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	r := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ref := fmt.Sprintf("tool-%d", n)
			for j := 0; j < 50; j++ {
				desc := toolweave.ToolDescriptor{
					Ref:          ref,
					Capabilities: []string{capability.TextProcessing},
				}
				if err := r.Register(ctx, okTool(ref), desc); err != nil {
					t.Errorf("Register(%s) error = %v", ref, err)
					return
				}
				r.RecordMetric(ref, metrics.Success(float64(j)))
				if err := r.Unregister(ctx, ref); err != nil {
					t.Errorf("Unregister(%s) error = %v", ref, err)
					return
				}
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				// Every discovered ref must still resolve: the capability
				// index and descriptor map move atomically.
				for _, ranked := range r.DiscoverByCapability(capability.TextProcessing, DiscoverOptions{}) {
					if ranked.Descriptor.Ref == "" {
						t.Error("discovered descriptor with empty ref")
						return
					}
				}
				r.List(Filter{})
				r.Search("tool", 5)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after balanced register/unregister, want 0", r.Len())
	}
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	r := New(WithStore(store))
	mustRegister(t, r, toolweave.ToolDescriptor{
		Ref:          "persisted",
		Capabilities: []string{capability.DataTransformation},
	})
	r.RecordMetric("persisted", metrics.Success(25))
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	fresh := New(WithStore(store))
	err := fresh.Load(ctx, func(ref string) (toolweave.Tool, bool) {
		return okTool(ref), true
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	m, ok := fresh.GetMetrics("persisted")
	if !ok {
		t.Fatal("GetMetrics() after load ok = false, want true")
	}
	if m.TotalExecutions != 1 {
		t.Errorf("TotalExecutions after load = %d, want 1", m.TotalExecutions)
	}
	if found := fresh.DiscoverByCapability(capability.DataTransformation, DiscoverOptions{}); len(found) != 1 {
		t.Errorf("capability index not rebuilt on load: %v", found)
	}
}

func TestAggregateAcrossTools(t *testing.T) {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	clock := base.Add(-48 * time.Hour)
	r := New(WithClock(func() time.Time { return clock }))

	mustRegister(t, r, toolweave.ToolDescriptor{Ref: "a"})
	mustRegister(t, r, toolweave.ToolDescriptor{Ref: "b"})
	r.RecordMetric("a", metrics.Success(10))
	r.RecordMetric("b", metrics.Success(10))

	clock = base
	r.Aggregate(base)

	for _, ref := range []string{"a", "b"} {
		m, _ := r.GetMetrics(ref)
		if len(m.HourlyBuckets) != 0 {
			t.Errorf("tool %s: stale hourly buckets survived: %v", ref, m.HourlyBuckets)
		}
		if m.TotalExecutions != 1 {
			t.Errorf("tool %s: counters changed by pruning: %d", ref, m.TotalExecutions)
		}
	}
}
