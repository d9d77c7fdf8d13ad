package capability

import (
	"slices"
	"testing"
)

func TestInferFromSchema(t *testing.T) {
	c := Default()

	tests := []struct {
		name   string
		schema map[string]any
		want   []string
	}{
		{
			name: "file and path parameters",
			schema: map[string]any{
				"file_path": map[string]any{"type": "string"},
				"encoding":  map[string]any{"type": "string"},
			},
			want: []string{FileOperations},
		},
		{
			name: "json schema properties object",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"workflow_id": map[string]any{"type": "string"},
					"stream":      map[string]any{"type": "boolean"},
				},
			},
			want: []string{Streaming, WorkflowExecution},
		},
		{
			name: "async and url hints",
			schema: map[string]any{
				"async":      true,
				"target_url": "https://example.com",
			},
			want: []string{AsyncExecution, NetworkAccess},
		},
		{
			name:   "empty schema infers nothing",
			schema: nil,
			want:   nil,
		},
		{
			name: "no structural hints",
			schema: map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.InferFromSchema(tt.schema)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("InferFromSchema() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferFromSchemaOnlyReportsDefinedCapabilities(t *testing.T) {
	// A catalog without fileOperations must not report it even when the
	// schema hints at file handling.
	c := NewCatalog(Definition{Name: TextProcessing})

	got := c.InferFromSchema(map[string]any{"file_path": "x"})
	if len(got) != 0 {
		t.Fatalf("InferFromSchema() = %v, want empty", got)
	}
}
