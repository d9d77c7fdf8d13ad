package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/weave-labs/toolweave/composition"
)

// StepDef is the file form of one workflow step.
type StepDef struct {
	Tool          string                       `json:"tool" yaml:"tool"`
	Params        map[string]any               `json:"params,omitempty" yaml:"params,omitempty"`
	OutputMapping map[string]string            `json:"outputMapping,omitempty" yaml:"outputMapping,omitempty"`
	Condition     *composition.EqualsCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// WorkflowFile is the declarative form of a composition.
type WorkflowFile struct {
	Kind        string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	ID          string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string            `json:"type" yaml:"type"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Steps       []StepDef         `json:"steps" yaml:"steps"`
}

// LoadWorkflow reads a workflow file from path and compiles it into a
// composition.
func LoadWorkflow(path string) (composition.Composition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return composition.Composition{}, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	return parseWorkflow(data, path)
}

func parseWorkflow(data []byte, path string) (composition.Composition, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return composition.Composition{}, err
	}

	var wf WorkflowFile
	if err := json.Unmarshal(jsonData, &wf); err != nil {
		return composition.Composition{}, fmt.Errorf("loader: parsing workflow: %w", err)
	}
	return Compile(wf)
}

// Compile turns a workflow file into an executable composition.
func Compile(wf WorkflowFile) (composition.Composition, error) {
	specs := make([]composition.ToolSpec, 0, len(wf.Steps))
	for i, step := range wf.Steps {
		if step.Tool == "" {
			return composition.Composition{}, fmt.Errorf("loader: workflow %q: step %d has no tool", wf.Name, i)
		}
		spec := composition.ToolSpec{
			ToolRef:       step.Tool,
			Params:        step.Params,
			OutputMapping: step.OutputMapping,
		}
		if step.Condition != nil {
			spec.Condition = *step.Condition
		}
		specs = append(specs, spec)
	}

	var opts []composition.BuildOption
	if wf.Description != "" {
		opts = append(opts, composition.WithDescription(wf.Description))
	}
	if wf.ID != "" {
		opts = append(opts, composition.WithID(wf.ID))
	}
	for k, v := range wf.Metadata {
		opts = append(opts, composition.WithMetadata(k, v))
	}

	switch composition.Type(wf.Type) {
	case composition.Sequential:
		return composition.NewSequential(wf.Name, specs, opts...)
	case composition.Parallel:
		return composition.NewParallel(wf.Name, specs, opts...)
	case composition.Conditional:
		return composition.NewConditional(wf.Name, specs, opts...)
	default:
		return composition.Composition{}, fmt.Errorf("loader: workflow %q: unknown type %q", wf.Name, wf.Type)
	}
}

// Load reads a file of either schema kind. It returns a manifest or a
// composition depending on what the file declares; exactly one of the two
// is non-zero.
func Load(path string) (*Manifest, composition.Composition, SchemaKind, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, composition.Composition{}, "", fmt.Errorf("loader: reading %s: %w", path, err)
	}

	kind, err := DetectSchema(data, path)
	if err != nil {
		return nil, composition.Composition{}, "", err
	}

	switch kind {
	case SchemaKindManifest:
		m, err := parseManifest(data, path)
		return m, composition.Composition{}, kind, err
	case SchemaKindWorkflow:
		c, err := parseWorkflow(data, path)
		return nil, c, kind, err
	default:
		return nil, composition.Composition{}, "", fmt.Errorf("loader: unknown schema kind %q", kind)
	}
}
