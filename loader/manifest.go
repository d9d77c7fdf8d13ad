package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/weave-labs/toolweave"
)

// Manifest declares a set of tool descriptors, typically for external
// tools whose callables are bound at load time.
type Manifest struct {
	Kind    string                     `json:"kind,omitempty" yaml:"kind,omitempty"`
	Version int                        `json:"version,omitempty" yaml:"version,omitempty"`
	Tools   []toolweave.ToolDescriptor `json:"tools" yaml:"tools"`
}

// LoadManifest reads a tool manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	return parseManifest(data, path)
}

func parseManifest(data []byte, path string) (*Manifest, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("loader: parsing manifest: %w", err)
	}

	if len(m.Tools) == 0 {
		return nil, fmt.Errorf("loader: manifest %s declares no tools", path)
	}

	seen := make(map[string]struct{}, len(m.Tools))
	for i := range m.Tools {
		desc := &m.Tools[i]
		if strings.TrimSpace(desc.Ref) == "" {
			return nil, fmt.Errorf("loader: manifest %s: tool %d has no ref", path, i)
		}
		if _, dup := seen[desc.Ref]; dup {
			return nil, fmt.Errorf("loader: manifest %s: duplicate tool ref %q", path, desc.Ref)
		}
		seen[desc.Ref] = struct{}{}
		if desc.Source == "" {
			desc.Source = toolweave.SourceExternal
		}
	}
	return &m, nil
}
