package toolweave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout sentinel", ErrTimeout, ErrorKindTimeout},
		{"deadline exceeded", context.DeadlineExceeded, ErrorKindTimeout},
		{"wrapped deadline", fmt.Errorf("invoking: %w", context.DeadlineExceeded), ErrorKindTimeout},
		{"canceled", context.Canceled, ErrorKindCanceled},
		{"tool not found", fmt.Errorf("registry: %w", ErrToolNotFound), ErrorKindToolNotFound},
		{"plain failure", errors.New("boom"), ErrorKindExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Fatalf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ExecutionError{ToolRef: "fetch_page", Cause: cause}

	if !errors.Is(err, cause) {
		t.Fatal("ExecutionError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "fetch_page") {
		t.Fatalf("Error() = %q, want tool ref included", err.Error())
	}
}

func TestInvalidMappingErrorMessage(t *testing.T) {
	err := &InvalidMappingError{ToolRef: "summarize", Keys: []string{"body", "title"}}

	msg := err.Error()
	for _, want := range []string{"summarize", "body", "title"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() = %q, want %q included", msg, want)
		}
	}
}

func TestIncompatibleToolsErrorMessage(t *testing.T) {
	err := &IncompatibleToolsError{First: "read_file", Second: "stream_audio"}

	msg := err.Error()
	if !strings.Contains(msg, "read_file") || !strings.Contains(msg, "stream_audio") {
		t.Fatalf("Error() = %q, want both tool refs included", msg)
	}
}

func TestParallelExecutionErrorAggregatesReasons(t *testing.T) {
	err := &ParallelExecutionError{Reasons: []string{"branch 0: boom", "branch 2: timeout"}}

	msg := err.Error()
	if !strings.Contains(msg, "branch 0: boom") || !strings.Contains(msg, "branch 2: timeout") {
		t.Fatalf("Error() = %q, want every reason included", msg)
	}
}
