package composition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/metrics"
)

// DefaultParallelTimeout bounds a parallel fan-out when ExecOptions does
// not set one.
const DefaultParallelTimeout = 30 * time.Second

// Status is the overall outcome of a composition execution.
type Status string

const (
	// StatusSuccess means every attempted step succeeded.
	StatusSuccess Status = "success"

	// StatusPartial means a sequential or conditional run failed after at
	// least one step had already succeeded.
	StatusPartial Status = "partial"

	// StatusFailure means the run produced no usable result, or any
	// parallel branch failed.
	StatusFailure Status = "failure"
)

// Step outcome values.
const (
	StepSuccess = "success"
	StepFailure = "failure"
	StepTimeout = "timeout"
)

// StepResult is the outcome of one tool invocation within a run.
type StepResult struct {
	ToolRef   string         `json:"toolRef"`
	Status    string         `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	LatencyMS float64        `json:"latencyMs"`
}

// ExecutionResult is the structured outcome of one composition run.
// Failures are never silent: sequential and conditional failures carry
// whatever step results were obtained, and parallel failures report every
// branch's individual outcome.
type ExecutionResult struct {
	CompositionID   string       `json:"compositionId"`
	RunID           string       `json:"runId"`
	Status          Status       `json:"status"`
	Results         []StepResult `json:"results"`
	Errors          []string     `json:"errors,omitempty"`
	ExecutionTimeMS float64      `json:"executionTimeMs"`
	FinalOutput     any          `json:"finalOutput,omitempty"`
}

// ExecOptions controls one execution.
type ExecOptions struct {
	// Timeout bounds a parallel fan-out. Zero means DefaultParallelTimeout.
	// Sequential and conditional runs are not bounded by it.
	Timeout time.Duration

	// EventHandler receives events for this run, in addition to any
	// handler configured on the engine.
	EventHandler toolweave.EventHandler
}

// Execute runs a composition. Validation always runs first; a structurally
// invalid composition returns an error before any tool is invoked. Runtime
// failures are reported through the result's status and errors, not
// through the returned error, except for a conditional run where no branch
// qualifies.
func (e *Engine) Execute(ctx context.Context, c Composition, input map[string]any, opts ExecOptions) (*ExecutionResult, error) {
	if err := e.Validate(c); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	emit := e.emitter(opts.EventHandler)
	start := e.now()

	emit(toolweave.NewEvent(toolweave.EventRunStarted, runID, c.ID).
		WithPayload("composition", c.Name).
		WithPayload("type", string(c.Type)))

	var result *ExecutionResult
	var err error
	switch c.Type {
	case Sequential:
		result = e.executeSequential(ctx, c, input, runID, emit)
	case Parallel:
		result = e.executeParallel(ctx, c, input, runID, opts.Timeout, emit)
	case Conditional:
		result, err = e.executeConditional(ctx, c, input, runID, emit)
	default:
		return nil, fmt.Errorf("composition: execute %q: unknown type %q", c.Name, c.Type)
	}

	elapsed := e.now().Sub(start)
	result.RunID = runID
	result.ExecutionTimeMS = float64(elapsed) / float64(time.Millisecond)

	emit(toolweave.NewEvent(toolweave.EventRunFinished, runID, c.ID).
		WithElapsed(elapsed).
		WithPayload("status", string(result.Status)))

	return result, err
}

// emitter combines the engine handler with a per-run handler. A panicking
// handler never affects the execution outcome; the failure is logged and
// the run continues.
func (e *Engine) emitter(extra toolweave.EventHandler) toolweave.EventHandler {
	if e.handler == nil && extra == nil {
		return func(toolweave.Event) {}
	}
	combined := toolweave.MultiEventHandler(e.handler, extra)
	return func(ev toolweave.Event) {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Warn("event handler panicked",
					"error", toolweave.ErrSignalEmission, "kind", ev.Kind, "panic", r)
			}
		}()
		combined(ev)
	}
}

// invoke resolves and calls one tool, measures its latency, and records
// the outcome in the tool's metrics.
func (e *Engine) invoke(ctx context.Context, ref string, params map[string]any) (map[string]any, float64, error) {
	tool, ok := e.source.Resolve(ref)
	if !ok {
		e.source.RecordMetric(ref, metrics.Failure(toolweave.ErrorKindToolNotFound))
		return nil, 0, fmt.Errorf("composition: invoke %q: %w", ref, toolweave.ErrToolNotFound)
	}

	start := time.Now()
	out, err := tool.Execute(ctx, params)
	latency := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		e.source.RecordMetric(ref, metrics.Failure(toolweave.ClassifyError(err)))
		return nil, latency, &toolweave.ExecutionError{ToolRef: ref, Cause: err}
	}
	e.source.RecordMetric(ref, metrics.Success(latency))
	return out, latency, nil
}

// executeSequential folds over the specs, threading each successful step's
// output into the next step's input. The first failure stops the run.
func (e *Engine) executeSequential(ctx context.Context, c Composition, input map[string]any, runID string, emit toolweave.EventHandler) *ExecutionResult {
	result := &ExecutionResult{
		CompositionID: c.ID,
		Status:        StatusSuccess,
		Results:       make([]StepResult, 0, len(c.Specs)),
	}

	running := mergeParams(input)
	for i, spec := range c.Specs {
		params := mergeParams(running, spec.Params, e.projectMapping(spec.OutputMapping, running))

		emit(toolweave.NewEvent(toolweave.EventStepStarted, runID, c.ID).WithStep(i, spec.ToolRef))
		out, latency, err := e.invoke(ctx, spec.ToolRef, params)

		if err != nil {
			result.Results = append(result.Results, StepResult{
				ToolRef:   spec.ToolRef,
				Status:    stepStatusFor(err),
				Error:     err.Error(),
				LatencyMS: latency,
			})
			result.Errors = append(result.Errors, err.Error())
			if i == 0 {
				result.Status = StatusFailure
			} else {
				result.Status = StatusPartial
				result.FinalOutput = running
			}
			emit(toolweave.NewEvent(toolweave.EventStepFailed, runID, c.ID).
				WithStep(i, spec.ToolRef).
				WithPayload("error", err.Error()))
			return result
		}

		result.Results = append(result.Results, StepResult{
			ToolRef:   spec.ToolRef,
			Status:    StepSuccess,
			Output:    out,
			LatencyMS: latency,
		})
		running = out
		emit(toolweave.NewEvent(toolweave.EventStepFinished, runID, c.ID).
			WithStep(i, spec.ToolRef).
			WithElapsed(time.Duration(latency * float64(time.Millisecond))))
	}

	result.FinalOutput = running
	return result
}

// projectMapping resolves each mapping path against the running value.
// Paths are declared rooted at the producing tool's name, but the running
// value is that tool's raw output, so resolution tries the full path first
// and then the path with its root stripped. Unresolvable paths are
// dropped; validation has already checked their roots.
func (e *Engine) projectMapping(mapping map[string]string, running map[string]any) map[string]any {
	if len(mapping) == 0 {
		return nil
	}

	out := make(map[string]any, len(mapping))
	for key, path := range mapping {
		if v, ok := lookupPath(running, path); ok {
			out[key] = v
			continue
		}
		if rest := stripRoot(path); rest != "" {
			if v, ok := lookupPath(running, rest); ok {
				out[key] = v
				continue
			}
		}
		e.logger.Warn("output mapping path not found in upstream data", "key", key, "path", path)
	}
	return out
}

type branchOutcome struct {
	index int
	step  StepResult
	err   error
}

// executeParallel fans out one task per spec and waits up to the timeout.
// Branches still running at the deadline are abandoned and recorded as
// timeouts; their goroutines send into a buffered channel and are never
// joined. Any failed or timed-out branch makes the whole run a failure,
// but every branch's outcome is still reported.
func (e *Engine) executeParallel(ctx context.Context, c Composition, input map[string]any, runID string, timeout time.Duration, emit toolweave.EventHandler) *ExecutionResult {
	if timeout <= 0 {
		timeout = DefaultParallelTimeout
	}

	n := len(c.Specs)
	result := &ExecutionResult{
		CompositionID: c.ID,
		Results:       make([]StepResult, n),
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcomes := make(chan branchOutcome, n)
	for i, spec := range c.Specs {
		emit(toolweave.NewEvent(toolweave.EventStepStarted, runID, c.ID).WithStep(i, spec.ToolRef))
		go func(i int, spec ToolSpec) {
			params := mergeParams(input, spec.Params)

			tool, ok := e.source.Resolve(spec.ToolRef)
			if !ok {
				outcomes <- branchOutcome{index: i, err: fmt.Errorf("composition: invoke %q: %w", spec.ToolRef, toolweave.ErrToolNotFound)}
				return
			}

			start := time.Now()
			out, err := tool.Execute(runCtx, params)
			latency := float64(time.Since(start)) / float64(time.Millisecond)
			if err != nil {
				outcomes <- branchOutcome{
					index: i,
					step:  StepResult{LatencyMS: latency},
					err:   &toolweave.ExecutionError{ToolRef: spec.ToolRef, Cause: err},
				}
				return
			}
			outcomes <- branchOutcome{index: i, step: StepResult{Output: out, LatencyMS: latency}}
		}(i, spec)
	}

	// Metrics are recorded here rather than in the branch goroutines so an
	// abandoned branch is counted exactly once, as a timeout.
	settled := make(map[int]bool, n)
	settle := func(o branchOutcome) {
		if settled[o.index] {
			return
		}
		settled[o.index] = true
		spec := c.Specs[o.index]
		step := o.step
		step.ToolRef = spec.ToolRef
		if o.err != nil {
			step.Status = stepStatusFor(o.err)
			step.Error = o.err.Error()
			e.source.RecordMetric(spec.ToolRef, metrics.Failure(toolweave.ClassifyError(o.err)))
			result.Errors = append(result.Errors, o.err.Error())
			emit(toolweave.NewEvent(toolweave.EventStepFailed, runID, c.ID).
				WithStep(o.index, spec.ToolRef).
				WithPayload("error", o.err.Error()))
		} else {
			step.Status = StepSuccess
			e.source.RecordMetric(spec.ToolRef, metrics.Success(step.LatencyMS))
			emit(toolweave.NewEvent(toolweave.EventStepFinished, runID, c.ID).
				WithStep(o.index, spec.ToolRef))
		}
		result.Results[o.index] = step
	}

collect:
	for len(settled) < n {
		select {
		case o := <-outcomes:
			settle(o)
		case <-runCtx.Done():
			break collect
		}
	}

	// The deadline can fire while completed branches still sit in the
	// buffer. Drain them before declaring anything a timeout.
	for len(settled) < n {
		select {
		case o := <-outcomes:
			settle(o)
		default:
			goto mark
		}
	}
mark:

	timeoutMS := float64(timeout) / float64(time.Millisecond)
	for i, spec := range c.Specs {
		if settled[i] {
			continue
		}
		result.Results[i] = StepResult{
			ToolRef:   spec.ToolRef,
			Status:    StepTimeout,
			Error:     toolweave.ErrTimeout.Error(),
			LatencyMS: timeoutMS,
		}
		e.source.RecordMetric(spec.ToolRef, metrics.Failure(toolweave.ErrorKindTimeout))
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", spec.ToolRef, toolweave.ErrTimeout.Error()))
		emit(toolweave.NewEvent(toolweave.EventStepFailed, runID, c.ID).
			WithStep(i, spec.ToolRef).
			WithPayload("error", toolweave.ErrTimeout.Error()))
	}

	if len(result.Errors) > 0 {
		// A fan-out has no canonical partial result, so any failed branch
		// fails the whole run.
		result.Status = StatusFailure
		return result
	}

	result.Status = StatusSuccess
	outputs := make([]map[string]any, n)
	for i, step := range result.Results {
		outputs[i] = step.Output
	}
	result.FinalOutput = outputs
	return result
}

// executeConditional scans the specs in order and executes the first whose
// condition accepts the input, or the first spec with no condition. Exactly
// one branch ever runs.
func (e *Engine) executeConditional(ctx context.Context, c Composition, input map[string]any, runID string, emit toolweave.EventHandler) (*ExecutionResult, error) {
	result := &ExecutionResult{CompositionID: c.ID}

	selected := -1
	for i, spec := range c.Specs {
		if spec.Condition == nil || spec.Condition.Evaluate(input) {
			selected = i
			break
		}
	}
	if selected < 0 {
		result.Status = StatusFailure
		result.Errors = []string{toolweave.ErrNoMatchingCondition.Error()}
		return result, fmt.Errorf("composition: execute %q: %w", c.Name, toolweave.ErrNoMatchingCondition)
	}

	spec := c.Specs[selected]
	emit(toolweave.NewEvent(toolweave.EventBranchSelected, runID, c.ID).
		WithStep(selected, spec.ToolRef))

	params := mergeParams(input, spec.Params)
	emit(toolweave.NewEvent(toolweave.EventStepStarted, runID, c.ID).WithStep(selected, spec.ToolRef))
	out, latency, err := e.invoke(ctx, spec.ToolRef, params)

	if err != nil {
		result.Status = StatusFailure
		result.Results = []StepResult{{
			ToolRef:   spec.ToolRef,
			Status:    stepStatusFor(err),
			Error:     err.Error(),
			LatencyMS: latency,
		}}
		result.Errors = []string{err.Error()}
		emit(toolweave.NewEvent(toolweave.EventStepFailed, runID, c.ID).
			WithStep(selected, spec.ToolRef).
			WithPayload("error", err.Error()))
		return result, nil
	}

	result.Status = StatusSuccess
	result.Results = []StepResult{{
		ToolRef:   spec.ToolRef,
		Status:    StepSuccess,
		Output:    out,
		LatencyMS: latency,
	}}
	result.FinalOutput = out
	emit(toolweave.NewEvent(toolweave.EventStepFinished, runID, c.ID).
		WithStep(selected, spec.ToolRef))
	return result, nil
}

func stepStatusFor(err error) string {
	if errors.Is(err, toolweave.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return StepTimeout
	}
	return StepFailure
}
