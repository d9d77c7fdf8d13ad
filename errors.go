package toolweave

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Engine and registry errors.
var (
	// ErrToolNotFound indicates a referenced tool ref does not resolve.
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyComposition indicates a composition was built with no steps.
	ErrEmptyComposition = errors.New("composition has no steps")

	// ErrInvalidConditionalStructure indicates a conditional composition
	// where a non-final step is missing its condition.
	ErrInvalidConditionalStructure = errors.New("conditional composition requires a condition on every step except the last")

	// ErrNoMatchingCondition indicates no branch of a conditional
	// composition qualified for the given input.
	ErrNoMatchingCondition = errors.New("no condition matched the input")

	// ErrTimeout indicates an invocation exceeded its deadline.
	ErrTimeout = errors.New("execution timed out")

	// ErrInvalidTool indicates a callable that does not satisfy the
	// minimal execute contract.
	ErrInvalidTool = errors.New("tool does not satisfy the execute contract")

	// ErrSignalEmission indicates an event could not be delivered to an
	// external observer. It never affects the execution outcome.
	ErrSignalEmission = errors.New("signal emission failed")
)

// InvalidMappingError names the output-mapping keys of a step whose source
// paths are not produced by any upstream step.
type InvalidMappingError struct {
	ToolRef string
	Keys    []string
}

func (e *InvalidMappingError) Error() string {
	return fmt.Sprintf("invalid output mapping for %s: unresolved keys [%s]", e.ToolRef, strings.Join(e.Keys, ", "))
}

// IncompatibleToolsError names an adjacent pair of sequential steps whose
// tools share no composable capability pair.
type IncompatibleToolsError struct {
	First  string
	Second string
}

func (e *IncompatibleToolsError) Error() string {
	return fmt.Sprintf("tools %s and %s have no composable capabilities", e.First, e.Second)
}

// ExecutionError wraps a tool invocation failure with its ref.
type ExecutionError struct {
	ToolRef string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed: %v", e.ToolRef, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ParallelExecutionError aggregates the reasons every failed branch of a
// parallel composition reported.
type ParallelExecutionError struct {
	Reasons []string
}

func (e *ParallelExecutionError) Error() string {
	return fmt.Sprintf("parallel execution failed: [%s]", strings.Join(e.Reasons, "; "))
}

// ErrorKind values classify invocation failures for metric recording.
const (
	ErrorKindTimeout      = "timeout"
	ErrorKindCanceled     = "canceled"
	ErrorKindToolNotFound = "tool_not_found"
	ErrorKindExecution    = "execution_failed"
)

// ClassifyError maps an invocation error onto a metric error kind.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	case errors.Is(err, ErrToolNotFound):
		return ErrorKindToolNotFound
	default:
		return ErrorKindExecution
	}
}
