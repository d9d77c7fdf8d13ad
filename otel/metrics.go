package otel

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/weave-labs/toolweave"
)

// MetricsHandler translates execution events into OpenTelemetry metrics.
// It records counters and histograms for step executions, failures, and
// run durations.
type MetricsHandler struct {
	stepExecutions metric.Int64Counter
	stepFailures   metric.Int64Counter
	stepDuration   metric.Float64Histogram
	runDuration    metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording execution metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	stepExec, err := meter.Int64Counter("toolweave.step.executions",
		metric.WithDescription("Number of successful tool invocations"),
	)
	if err != nil {
		return nil, err
	}

	stepFail, err := meter.Int64Counter("toolweave.step.failures",
		metric.WithDescription("Number of failed tool invocations"),
	)
	if err != nil {
		return nil, err
	}

	stepDur, err := meter.Float64Histogram("toolweave.step.duration",
		metric.WithDescription("Duration of tool invocation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("toolweave.run.duration",
		metric.WithDescription("Duration of composition run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		stepExecutions: stepExec,
		stepFailures:   stepFail,
		stepDuration:   stepDur,
		runDuration:    runDur,
	}, nil
}

// Handle processes an execution event and records the appropriate metrics.
// It satisfies toolweave.EventHandler.
func (h *MetricsHandler) Handle(e toolweave.Event) {
	switch e.Kind {
	case toolweave.EventStepFinished:
		h.handleStepFinished(e)
	case toolweave.EventStepFailed:
		h.handleStepFailed(e)
	case toolweave.EventRunFinished:
		h.handleRunFinished(e)
	}
}

// handleStepFinished increments the execution counter and records duration.
func (h *MetricsHandler) handleStepFinished(e toolweave.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(stepAttributes(e)...)
	h.stepExecutions.Add(ctx, 1, attrs)
	h.stepDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}

// handleStepFailed increments the failure counter.
func (h *MetricsHandler) handleStepFailed(e toolweave.Event) {
	h.stepFailures.Add(context.Background(), 1, metric.WithAttributes(stepAttributes(e)...))
}

// handleRunFinished records the composition run duration.
func (h *MetricsHandler) handleRunFinished(e toolweave.Event) {
	attrs := metric.WithAttributes(
		attribute.String("run_id", e.RunID),
		attribute.String("composition_id", e.CompositionID),
	)
	h.runDuration.Record(context.Background(), e.Elapsed.Seconds(), attrs)
}

func stepAttributes(e toolweave.Event) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("tool_ref", e.ToolRef),
		attribute.String("composition_id", e.CompositionID),
		attribute.String("step_index", strconv.Itoa(e.StepIndex)),
	}
}
