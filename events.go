package toolweave

import (
	"time"
)

// EventKind identifies the type of event emitted by the composition engine.
type EventKind string

const (
	// EventRunStarted is emitted when a composition execution begins.
	EventRunStarted EventKind = "run_started"

	// EventStepStarted is emitted when a tool invocation begins.
	EventStepStarted EventKind = "step_started"

	// EventStepFinished is emitted when a tool invocation completes.
	EventStepFinished EventKind = "step_finished"

	// EventStepFailed is emitted when a tool invocation fails or times out.
	EventStepFailed EventKind = "step_failed"

	// EventBranchSelected is emitted when a conditional composition picks
	// the branch to execute.
	EventBranchSelected EventKind = "branch_selected"

	// EventRunFinished is emitted when a composition execution completes.
	EventRunFinished EventKind = "run_finished"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured, streamable record of what happened during a
// composition execution. Events should be kept small; large step outputs
// live in the ExecutionResult, not in event payloads.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// RunID is the unique identifier for this execution.
	RunID string

	// CompositionID identifies the composition being executed.
	CompositionID string

	// ToolRef is the tool that produced this event (empty for run-level events).
	ToolRef string

	// StepIndex is the position of the step within the composition.
	StepIndex int

	// Time is when the event occurred.
	Time time.Time

	// Elapsed is the duration since the run or step started.
	Elapsed time.Duration

	// Payload contains event-specific data.
	Payload map[string]any

	// TraceID and SpanID carry trace correlation when an observability
	// bridge is installed. Empty otherwise.
	TraceID string
	SpanID  string
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID, compositionID string) Event {
	return Event{
		Kind:          kind,
		RunID:         runID,
		CompositionID: compositionID,
		StepIndex:     -1,
		Time:          time.Now(),
		Payload:       make(map[string]any),
	}
}

// WithStep sets the step information on the event.
func (e Event) WithStep(index int, toolRef string) Event {
	e.StepIndex = index
	e.ToolRef = toolRef
	return e
}

// WithElapsed sets the elapsed duration on the event.
func (e Event) WithElapsed(elapsed time.Duration) Event {
	e.Elapsed = elapsed
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling events.
// Implementations can log, store, or forward events as needed.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// The channel should have sufficient buffer to avoid blocking.
// Events are dropped if the channel is full.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}
