// Package otel bridges execution events to OpenTelemetry metrics and spans.
package otel

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weave-labs/toolweave"
)

// TracingHandler translates execution events into OpenTelemetry spans.
// It maintains maps of active run and step spans, creating and ending them
// based on event kind.
type TracingHandler struct {
	tracer trace.Tracer

	mu sync.RWMutex
	// runSpans and runCtxs are keyed by runID; stepSpans by runID:stepIndex.
	runSpans  map[string]trace.Span
	runCtxs   map[string]context.Context
	stepSpans map[string]trace.Span
}

// NewTracingHandler creates a TracingHandler that uses the given tracer to
// create spans from execution events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		stepSpans: make(map[string]trace.Span),
	}
}

// Handle processes an execution event and creates or ends spans accordingly.
// It satisfies toolweave.EventHandler.
func (h *TracingHandler) Handle(e toolweave.Event) {
	switch e.Kind {
	case toolweave.EventRunStarted:
		h.handleRunStarted(e)
	case toolweave.EventStepStarted:
		h.handleStepStarted(e)
	case toolweave.EventStepFinished:
		h.handleStepFinished(e)
	case toolweave.EventStepFailed:
		h.handleStepFailed(e)
	case toolweave.EventBranchSelected:
		h.handleBranchSelected(e)
	case toolweave.EventRunFinished:
		h.handleRunFinished(e)
	}
}

// handleRunStarted creates a root span for the run.
func (h *TracingHandler) handleRunStarted(e toolweave.Event) {
	name := ""
	if v, ok := e.Payload["composition"]; ok {
		if s, ok := v.(string); ok {
			name = s
		}
	}

	spanName := "run:" + e.RunID
	if name != "" {
		spanName = "run:" + name
	}

	ctx, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("toolweave.run_id", e.RunID),
			attribute.String("toolweave.composition_id", e.CompositionID),
		),
		trace.WithTimestamp(e.Time),
	)

	if v, ok := e.Payload["type"]; ok {
		if s, ok := v.(string); ok {
			span.SetAttributes(attribute.String("toolweave.composition_type", s))
		}
	}

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

// handleStepStarted creates a child span under the run span.
func (h *TracingHandler) handleStepStarted(e toolweave.Event) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()

	if !ok {
		// No parent run span; start from background context.
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "step:"+e.ToolRef,
		trace.WithAttributes(
			attribute.String("toolweave.run_id", e.RunID),
			attribute.String("toolweave.tool_ref", e.ToolRef),
			attribute.Int("toolweave.step_index", e.StepIndex),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.stepSpans[stepKey(e.RunID, e.StepIndex)] = span
	h.mu.Unlock()
}

// handleStepFinished ends the step span with success status.
func (h *TracingHandler) handleStepFinished(e toolweave.Event) {
	key := stepKey(e.RunID, e.StepIndex)

	h.mu.Lock()
	span, ok := h.stepSpans[key]
	if ok {
		delete(h.stepSpans, key)
	}
	h.mu.Unlock()

	if ok {
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleStepFailed ends the step span with error status.
func (h *TracingHandler) handleStepFailed(e toolweave.Event) {
	key := stepKey(e.RunID, e.StepIndex)

	h.mu.Lock()
	span, ok := h.stepSpans[key]
	if ok {
		delete(h.stepSpans, key)
	}
	h.mu.Unlock()

	if ok {
		errMsg := "unknown error"
		if msg, found := e.Payload["error"]; found {
			if s, ok := msg.(string); ok {
				errMsg = s
			}
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(
			spanError(errMsg),
			trace.WithTimestamp(e.Time),
		)
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleBranchSelected adds a span event to the run span noting which
// conditional branch was chosen.
func (h *TracingHandler) handleBranchSelected(e toolweave.Event) {
	h.mu.RLock()
	span, ok := h.runSpans[e.RunID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	span.AddEvent("branch_selected",
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(
			attribute.String("toolweave.tool_ref", e.ToolRef),
			attribute.Int("toolweave.step_index", e.StepIndex),
		),
	)
}

// handleRunFinished ends the root run span.
func (h *TracingHandler) handleRunFinished(e toolweave.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		status := ""
		if s, found := e.Payload["status"]; found {
			if str, ok := s.(string); ok {
				status = str
			}
		}

		span.SetAttributes(
			attribute.String("toolweave.duration", e.Elapsed.String()),
			attribute.String("toolweave.status", status),
		)

		if status == "failure" {
			span.SetStatus(codes.Error, "run failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveStepSpanContext returns the SpanContext for the active step span
// identified by runID and step index. Returns an empty SpanContext if not
// found.
func (h *TracingHandler) ActiveStepSpanContext(runID string, stepIndex int) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.stepSpans[stepKey(runID, stepIndex)]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveRunSpanContext returns the SpanContext for the active run span
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

func stepKey(runID string, stepIndex int) string {
	return runID + ":" + strconv.Itoa(stepIndex)
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
