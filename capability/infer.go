package capability

import (
	"slices"
	"strings"
)

// InferFromSchema derives capability names from structural hints in a tool's
// declared parameter schema. The pass is best-effort and additive: callers
// merge the result into explicitly declared capabilities, never replace them.
//
// The heuristics are intentionally isolated here so they can be swapped for a
// stricter mechanism later.
func (c *Catalog) InferFromSchema(schema map[string]any) []string {
	if len(schema) == 0 {
		return nil
	}

	inferred := make(map[string]struct{})
	for _, param := range schemaParamNames(schema) {
		name := strings.ToLower(param)
		switch {
		case strings.Contains(name, "async"):
			inferred[AsyncExecution] = struct{}{}
		case strings.Contains(name, "stream"):
			inferred[Streaming] = struct{}{}
		case strings.Contains(name, "file") || strings.Contains(name, "path") || strings.Contains(name, "dir"):
			inferred[FileOperations] = struct{}{}
		case strings.Contains(name, "workflow"):
			inferred[WorkflowExecution] = struct{}{}
		case strings.Contains(name, "url") || strings.Contains(name, "endpoint"):
			inferred[NetworkAccess] = struct{}{}
		}
	}

	var out []string
	for name := range inferred {
		// Only capabilities the catalog actually defines are reported.
		if _, ok := c.defs[name]; ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// schemaParamNames collects parameter names from a schema value.
// Both JSON-Schema style maps (with a "properties" object) and flat
// name-to-spec maps are supported.
func schemaParamNames(schema map[string]any) []string {
	if props, ok := schema["properties"].(map[string]any); ok {
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		return names
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		switch name {
		case "type", "required", "description", "$schema":
			// JSON-Schema keywords, not parameters.
			continue
		}
		names = append(names, name)
	}
	return names
}
