package otel

import (
	"github.com/weave-labs/toolweave"
)

// EnrichHandler wraps an EventHandler with OpenTelemetry trace context.
// When events pass through, it looks up the active span from the
// TracingHandler and populates the TraceID and SpanID fields on the event.
//
// For step-level events (where StepIndex is set), the step span is checked
// first. If no step span is found, it falls back to the run-level span.
// When no span is active, the event passes through unchanged.
func EnrichHandler(next toolweave.EventHandler, tracing *TracingHandler) toolweave.EventHandler {
	return func(e toolweave.Event) {
		// For step-level events, try the step span first.
		if e.StepIndex >= 0 {
			sc := tracing.ActiveStepSpanContext(e.RunID, e.StepIndex)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		// Fallback to run-level span.
		if e.TraceID == "" && e.RunID != "" {
			sc := tracing.ActiveRunSpanContext(e.RunID)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		next(e)
	}
}
