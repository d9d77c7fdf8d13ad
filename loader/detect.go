// Package loader reads tool manifests and workflow files in JSON and YAML
// formats and turns them into registrable descriptors and executable
// compositions.
package loader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaKind identifies the type of file being loaded.
type SchemaKind string

const (
	SchemaKindManifest SchemaKind = "tool_manifest"
	SchemaKindWorkflow SchemaKind = "workflow"
)

// DetectSchema auto-detects the schema kind from file content and path:
//  1. Determine parse format from extension (.yaml/.yml -> YAML, else JSON)
//  2. If parsed.kind names a known schema -> that schema
//  3. If has "tools" -> tool manifest
//  4. If has "type" AND "steps" -> workflow
//  5. Else error
func DetectSchema(data []byte, filePath string) (SchemaKind, error) {
	var raw map[string]any
	if isYAML(filePath) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return "", fmt.Errorf("loader: parsing YAML: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &raw); err != nil {
			return "", fmt.Errorf("loader: parsing JSON: %w", err)
		}
	}

	if kind, ok := raw["kind"].(string); ok {
		switch SchemaKind(kind) {
		case SchemaKindManifest:
			return SchemaKindManifest, nil
		case SchemaKindWorkflow:
			return SchemaKindWorkflow, nil
		}
	}

	if hasKey(raw, "tools") {
		return SchemaKindManifest, nil
	}
	if hasKey(raw, "type") && hasKey(raw, "steps") {
		return SchemaKindWorkflow, nil
	}

	return "", fmt.Errorf("loader: unable to detect schema: file matches neither tool manifest nor workflow")
}

// isYAML returns true if the file path has a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// yamlToJSON converts raw bytes from YAML format to JSON bytes.
// YAML -> map[string]any -> JSON bytes -> typed struct keeps a single
// decoding path for both formats.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("loader: parsing YAML: %w", err)
	}
	return json.Marshal(raw)
}

// toJSON converts data to JSON bytes, handling YAML conversion if the path
// indicates a YAML file.
func toJSON(data []byte, path string) ([]byte, error) {
	if isYAML(path) {
		return yamlToJSON(data)
	}
	return data, nil
}
