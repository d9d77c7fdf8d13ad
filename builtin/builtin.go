// Package builtin provides the native tools that ship with every
// registry: small, dependency-free utilities useful as workflow glue and
// as known-good tools for development and testing.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/capability"
	"github.com/weave-labs/toolweave/registry"
)

// RegisterAll registers every builtin tool. Builtins carry the internal
// source marker and modest performance hints.
func RegisterAll(ctx context.Context, r *registry.Registry) error {
	for _, b := range All() {
		if err := r.Register(ctx, b.Tool, b.Descriptor); err != nil {
			return fmt.Errorf("builtin: registering %s: %w", b.Descriptor.Ref, err)
		}
	}
	return nil
}

// Builtin pairs a callable with its descriptor.
type Builtin struct {
	Tool       toolweave.Tool
	Descriptor toolweave.ToolDescriptor
}

// All returns the builtin tool set.
func All() []Builtin {
	return []Builtin{
		echoTool(),
		templateRenderTool(),
		sleepTool(),
		jsonPickTool(),
		jsonParseTool(),
	}
}

// echoTool returns its parameters unchanged. Useful as a pipeline probe.
func echoTool() Builtin {
	tool := toolweave.NewFuncTool("echo", "Returns its input parameters unchanged",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			out := make(map[string]any, len(params))
			for k, v := range params {
				out[k] = v
			}
			return out, nil
		})

	return Builtin{
		Tool: tool,
		Descriptor: toolweave.ToolDescriptor{
			Ref:          "echo",
			Name:         "echo",
			Description:  "Returns its input parameters unchanged",
			Category:     "utility",
			Tags:         []string{"debug", "passthrough"},
			Capabilities: []string{capability.DataTransformation},
			Source:       toolweave.SourceInternal,
			PerformanceHints: toolweave.PerformanceHints{
				DefaultLatencyMS: 1,
			},
		},
	}
}

// templateRenderTool renders a Go text template from the "template"
// parameter against the remaining parameters.
func templateRenderTool() Builtin {
	tool := toolweave.NewFuncTool("template_render", "Renders a Go text template against the input parameters",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			raw, ok := params["template"].(string)
			if !ok || raw == "" {
				return nil, fmt.Errorf("builtin: template_render requires a template string parameter")
			}

			tmpl, err := template.New("render").Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("builtin: invalid template: %w", err)
			}

			data := make(map[string]any, len(params))
			for k, v := range params {
				if k != "template" {
					data[k] = v
				}
			}

			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return nil, fmt.Errorf("builtin: template execution failed: %w", err)
			}
			return map[string]any{"rendered": buf.String()}, nil
		})

	return Builtin{
		Tool: tool,
		Descriptor: toolweave.ToolDescriptor{
			Ref:          "template_render",
			Name:         "template_render",
			Description:  "Renders a Go text template against the input parameters",
			Category:     "text",
			Tags:         []string{"template", "format"},
			Capabilities: []string{capability.TextProcessing},
			Source:       toolweave.SourceInternal,
			InputSchema: map[string]any{
				"properties": map[string]any{
					"template": map[string]any{"type": "string"},
				},
				"required": []any{"template"},
			},
			Examples: []toolweave.Example{
				{
					Description: "Greet by name",
					Input:       map[string]any{"template": "hello {{.name}}", "name": "ada"},
					Output:      map[string]any{"rendered": "hello ada"},
				},
			},
			PerformanceHints: toolweave.PerformanceHints{
				DefaultLatencyMS: 5,
			},
		},
	}
}

// sleepTool pauses for the "duration_ms" parameter, respecting context
// cancellation. Useful for latency simulation in workflow tests.
func sleepTool() Builtin {
	tool := toolweave.NewFuncTool("sleep", "Waits for duration_ms milliseconds",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			ms, ok := numberParam(params, "duration_ms")
			if !ok || ms < 0 {
				return nil, fmt.Errorf("builtin: sleep requires a non-negative duration_ms parameter")
			}

			d := time.Duration(ms) * time.Millisecond
			select {
			case <-time.After(d):
				return map[string]any{"slept_ms": ms}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})

	return Builtin{
		Tool: tool,
		Descriptor: toolweave.ToolDescriptor{
			Ref:          "sleep",
			Name:         "sleep",
			Description:  "Waits for duration_ms milliseconds",
			Category:     "utility",
			Tags:         []string{"delay", "test"},
			Capabilities: []string{capability.AsyncExecution},
			Source:       toolweave.SourceInternal,
			InputSchema: map[string]any{
				"properties": map[string]any{
					"duration_ms": map[string]any{"type": "number"},
				},
				"required": []any{"duration_ms"},
			},
		},
	}
}

// jsonPickTool extracts a dotted path from the "from" parameter.
func jsonPickTool() Builtin {
	tool := toolweave.NewFuncTool("json_pick", "Extracts a value at a dotted path from structured input",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			path, ok := params["path"].(string)
			if !ok || path == "" {
				return nil, fmt.Errorf("builtin: json_pick requires a path parameter")
			}

			var current any = params
			if from, ok := params["from"]; ok {
				current = from
			}
			for _, seg := range strings.Split(path, ".") {
				m, ok := current.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("builtin: json_pick: path %q not found", path)
				}
				current, ok = m[seg]
				if !ok {
					return nil, fmt.Errorf("builtin: json_pick: path %q not found", path)
				}
			}
			return map[string]any{"value": current}, nil
		})

	return Builtin{
		Tool: tool,
		Descriptor: toolweave.ToolDescriptor{
			Ref:          "json_pick",
			Name:         "json_pick",
			Description:  "Extracts a value at a dotted path from structured input",
			Category:     "data",
			Tags:         []string{"json", "extract"},
			Capabilities: []string{capability.DataTransformation},
			Source:       toolweave.SourceInternal,
			InputSchema: map[string]any{
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
					"from": map[string]any{"type": "object"},
				},
				"required": []any{"path"},
			},
		},
	}
}

// jsonParseTool parses the "text" parameter as JSON.
func jsonParseTool() Builtin {
	tool := toolweave.NewFuncTool("json_parse", "Parses a JSON string into structured data",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			text, ok := params["text"].(string)
			if !ok {
				return nil, fmt.Errorf("builtin: json_parse requires a text string parameter")
			}

			var parsed any
			if err := json.Unmarshal([]byte(text), &parsed); err != nil {
				return nil, fmt.Errorf("builtin: json_parse: %w", err)
			}
			return map[string]any{"parsed": parsed}, nil
		})

	return Builtin{
		Tool: tool,
		Descriptor: toolweave.ToolDescriptor{
			Ref:          "json_parse",
			Name:         "json_parse",
			Description:  "Parses a JSON string into structured data",
			Category:     "data",
			Tags:         []string{"json", "parse"},
			Capabilities: []string{capability.DataTransformation},
			Source:       toolweave.SourceInternal,
			InputSchema: map[string]any{
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
				"required": []any{"text"},
			},
		},
	}
}

// numberParam reads a numeric parameter that may arrive as float64 (JSON)
// or int (native callers).
func numberParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
