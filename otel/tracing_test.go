package otel_test

import (
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/weave-labs/toolweave"
	weaveotel "github.com/weave-labs/toolweave/otel"
)

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func TestTracingHandlerRunStartedCreatesRootSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	h := weaveotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(toolweave.Event{
		Kind:          toolweave.EventRunStarted,
		RunID:         "run-1",
		CompositionID: "comp-1",
		Time:          now,
		Payload:       map[string]any{"composition": "ingest", "type": "sequential"},
	})

	if !h.ActiveRunSpanContext("run-1").IsValid() {
		t.Fatal("expected valid run span context after run_started")
	}

	h.Handle(toolweave.Event{
		Kind:    toolweave.EventRunFinished,
		RunID:   "run-1",
		Time:    now.Add(100 * time.Millisecond),
		Elapsed: 100 * time.Millisecond,
		Payload: map[string]any{"status": "success"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}

	runSpan := spans[0]
	if runSpan.Name != "run:ingest" {
		t.Errorf("span name = %q, want run:ingest", runSpan.Name)
	}

	found := false
	for _, attr := range runSpan.Attributes {
		if string(attr.Key) == "toolweave.run_id" && attr.Value.AsString() == "run-1" {
			found = true
		}
	}
	if !found {
		t.Error("expected toolweave.run_id attribute on run span")
	}
	if runSpan.Status.Code != otelcodes.Ok {
		t.Errorf("run span status = %v, want Ok", runSpan.Status.Code)
	}
}

func TestTracingHandlerStepSpansNestUnderRun(t *testing.T) {
	exporter, tp := newTestTracer()
	h := weaveotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(toolweave.Event{
		Kind:    toolweave.EventRunStarted,
		RunID:   "run-1",
		Time:    now,
		Payload: map[string]any{"composition": "pipe"},
	})
	h.Handle(toolweave.Event{
		Kind:      toolweave.EventStepStarted,
		RunID:     "run-1",
		ToolRef:   "fetch",
		StepIndex: 0,
		Time:      now.Add(time.Millisecond),
	})

	stepSC := h.ActiveStepSpanContext("run-1", 0)
	runSC := h.ActiveRunSpanContext("run-1")
	if !stepSC.IsValid() {
		t.Fatal("expected valid step span context")
	}
	if stepSC.TraceID() != runSC.TraceID() {
		t.Error("step span not in the run span's trace")
	}

	h.Handle(toolweave.Event{
		Kind:      toolweave.EventStepFinished,
		RunID:     "run-1",
		ToolRef:   "fetch",
		StepIndex: 0,
		Time:      now.Add(10 * time.Millisecond),
		Elapsed:   9 * time.Millisecond,
	})
	h.Handle(toolweave.Event{
		Kind:    toolweave.EventRunFinished,
		RunID:   "run-1",
		Time:    now.Add(11 * time.Millisecond),
		Elapsed: 11 * time.Millisecond,
		Payload: map[string]any{"status": "success"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	// Syncer exports in end order: step first, then run.
	if spans[0].Name != "step:fetch" {
		t.Errorf("first ended span = %q, want step:fetch", spans[0].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("step span parent is not the run span")
	}
}

func TestTracingHandlerStepFailedRecordsError(t *testing.T) {
	exporter, tp := newTestTracer()
	h := weaveotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(toolweave.Event{Kind: toolweave.EventRunStarted, RunID: "run-1", Time: now})
	h.Handle(toolweave.Event{
		Kind: toolweave.EventStepStarted, RunID: "run-1",
		ToolRef: "flaky", StepIndex: 0, Time: now,
	})
	h.Handle(toolweave.Event{
		Kind: toolweave.EventStepFailed, RunID: "run-1",
		ToolRef: "flaky", StepIndex: 0,
		Time:    now.Add(5 * time.Millisecond),
		Payload: map[string]any{"error": "boom"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("step span status = %v, want Error", spans[0].Status.Code)
	}
	if spans[0].Status.Description != "boom" {
		t.Errorf("step span status description = %q, want boom", spans[0].Status.Description)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected a recorded error event on the failed step span")
	}
}

func TestTracingHandlerFailedRunStatus(t *testing.T) {
	exporter, tp := newTestTracer()
	h := weaveotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()
	h.Handle(toolweave.Event{Kind: toolweave.EventRunStarted, RunID: "run-1", Time: now})
	h.Handle(toolweave.Event{
		Kind: toolweave.EventRunFinished, RunID: "run-1",
		Time: now.Add(time.Millisecond), Payload: map[string]any{"status": "failure"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("run span status = %v, want Error", spans[0].Status.Code)
	}
}

func TestTracingHandlerBranchSelectedAddsRunSpanEvent(t *testing.T) {
	exporter, tp := newTestTracer()
	h := weaveotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()
	h.Handle(toolweave.Event{Kind: toolweave.EventRunStarted, RunID: "run-1", Time: now})
	h.Handle(toolweave.Event{
		Kind: toolweave.EventBranchSelected, RunID: "run-1",
		ToolRef: "fallback", StepIndex: 1, Time: now,
	})
	h.Handle(toolweave.Event{
		Kind: toolweave.EventRunFinished, RunID: "run-1",
		Time: now.Add(time.Millisecond), Payload: map[string]any{"status": "success"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	found := false
	for _, ev := range spans[0].Events {
		if ev.Name == "branch_selected" {
			found = true
		}
	}
	if !found {
		t.Error("expected branch_selected event on run span")
	}
}

func TestTracingHandlerUnknownRunIgnored(t *testing.T) {
	exporter, tp := newTestTracer()
	h := weaveotel.NewTracingHandler(tp.Tracer("test"))

	// Finishing a run that never started must not panic or export.
	h.Handle(toolweave.Event{Kind: toolweave.EventRunFinished, RunID: "ghost", Time: time.Now()})

	if got := len(exporter.GetSpans()); got != 0 {
		t.Errorf("expected no spans, got %d", got)
	}
}
