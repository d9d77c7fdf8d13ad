package composition

import "testing"

func TestLookupPath(t *testing.T) {
	data := map[string]any{
		"top": "value",
		"nested": map[string]any{
			"inner": map[string]any{"leaf": 42},
		},
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{path: "top", want: "value", wantOK: true},
		{path: "nested.inner.leaf", want: 42, wantOK: true},
		{path: "nested.missing", wantOK: false},
		{path: "top.deeper", wantOK: false},
		{path: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := lookupPath(data, tt.path)
		if ok != tt.wantOK {
			t.Errorf("lookupPath(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("lookupPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMergeParamsLaterWins(t *testing.T) {
	base := map[string]any{"a": 1, "b": 1}
	over := map[string]any{"b": 2}

	got := mergeParams(base, over)
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("mergeParams() = %v, want later map to win", got)
	}

	// The inputs must not be mutated.
	if base["b"] != 1 {
		t.Errorf("mergeParams() mutated its input: %v", base)
	}
}
