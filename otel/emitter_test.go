package otel_test

import (
	"testing"
	"time"

	"github.com/weave-labs/toolweave"
	weaveotel "github.com/weave-labs/toolweave/otel"
)

func TestEnrichHandlerPopulatesTraceContext(t *testing.T) {
	_, tp := newTestTracer()
	tracing := weaveotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()
	tracing.Handle(toolweave.Event{Kind: toolweave.EventRunStarted, RunID: "run-1", Time: now})
	tracing.Handle(toolweave.Event{
		Kind: toolweave.EventStepStarted, RunID: "run-1",
		ToolRef: "fetch", StepIndex: 0, Time: now,
	})

	var got toolweave.Event
	enriched := weaveotel.EnrichHandler(func(e toolweave.Event) { got = e }, tracing)

	enriched(toolweave.Event{
		Kind: toolweave.EventStepStarted, RunID: "run-1",
		ToolRef: "fetch", StepIndex: 0, Time: now,
	})

	if got.TraceID == "" || got.SpanID == "" {
		t.Fatalf("enriched event missing trace context: trace=%q span=%q", got.TraceID, got.SpanID)
	}

	stepSC := tracing.ActiveStepSpanContext("run-1", 0)
	if got.TraceID != stepSC.TraceID().String() || got.SpanID != stepSC.SpanID().String() {
		t.Errorf("enriched event carries wrong span: got %s/%s", got.TraceID, got.SpanID)
	}
}

func TestEnrichHandlerFallsBackToRunSpan(t *testing.T) {
	_, tp := newTestTracer()
	tracing := weaveotel.NewTracingHandler(tp.Tracer("test"))

	tracing.Handle(toolweave.Event{Kind: toolweave.EventRunStarted, RunID: "run-1", Time: time.Now()})

	var got toolweave.Event
	enriched := weaveotel.EnrichHandler(func(e toolweave.Event) { got = e }, tracing)

	// A run-level event has no step span to borrow from.
	enriched(toolweave.Event{Kind: toolweave.EventRunFinished, RunID: "run-1", StepIndex: -1})

	runSC := tracing.ActiveRunSpanContext("run-1")
	if got.TraceID != runSC.TraceID().String() {
		t.Errorf("enriched event trace = %q, want run span trace %q", got.TraceID, runSC.TraceID().String())
	}
}

func TestEnrichHandlerPassesThroughWithoutSpans(t *testing.T) {
	_, tp := newTestTracer()
	tracing := weaveotel.NewTracingHandler(tp.Tracer("test"))

	var got toolweave.Event
	enriched := weaveotel.EnrichHandler(func(e toolweave.Event) { got = e }, tracing)

	enriched(toolweave.Event{Kind: toolweave.EventRunStarted, RunID: "unknown", StepIndex: -1})
	if got.TraceID != "" || got.SpanID != "" {
		t.Errorf("event should pass through unchanged, got trace=%q span=%q", got.TraceID, got.SpanID)
	}
}
