package composition

import (
	"fmt"
	"sort"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/capability"
)

// Validate runs the three structural checks on a composition: tool
// existence, mode-specific data flow, and capability compatibility.
// All three must pass before the engine will invoke any tool.
func (e *Engine) Validate(c Composition) error {
	if len(c.Specs) == 0 {
		return fmt.Errorf("composition: validate %q: %w", c.Name, toolweave.ErrEmptyComposition)
	}

	if err := e.validateExistence(c); err != nil {
		return err
	}
	if err := e.validateDataFlow(c); err != nil {
		return err
	}
	return e.validateCompatibility(c)
}

func (e *Engine) validateExistence(c Composition) error {
	for _, spec := range c.Specs {
		if _, ok := e.source.Get(spec.ToolRef); !ok {
			return fmt.Errorf("composition: validate %q: tool %q: %w", c.Name, spec.ToolRef, toolweave.ErrToolNotFound)
		}
	}
	return nil
}

// validateDataFlow applies the mode-specific structure check. Sequential
// compositions walk the spec list carrying the set of tool names whose
// output is available so far; every outputMapping path must be rooted at
// one of them. Parallel branches are independent and carry no constraint.
// Conditional compositions require a condition on every spec except
// possibly the last.
func (e *Engine) validateDataFlow(c Composition) error {
	switch c.Type {
	case Sequential:
		produced := make(map[string]struct{})
		for _, spec := range c.Specs {
			var bad []string
			for key, path := range spec.OutputMapping {
				if _, ok := produced[pathRoot(path)]; !ok {
					bad = append(bad, key)
				}
			}
			if len(bad) > 0 {
				sort.Strings(bad)
				return fmt.Errorf("composition: validate %q: %w", c.Name,
					&toolweave.InvalidMappingError{ToolRef: spec.ToolRef, Keys: bad})
			}
			desc, _ := e.source.Get(spec.ToolRef)
			name := desc.Name
			if name == "" {
				name = spec.ToolRef
			}
			produced[name] = struct{}{}
		}
		return nil

	case Conditional:
		for i, spec := range c.Specs {
			if spec.Condition == nil && i != len(c.Specs)-1 {
				return fmt.Errorf("composition: validate %q: spec %d (%s): %w",
					c.Name, i, spec.ToolRef, toolweave.ErrInvalidConditionalStructure)
			}
		}
		return nil

	case Parallel:
		return nil

	default:
		return fmt.Errorf("composition: validate %q: unknown type %q", c.Name, c.Type)
	}
}

// validateCompatibility checks, for sequential compositions only, that
// every adjacent pair of tools shares at least one composable capability
// pair. Tools that declare no capabilities are not constrained.
func (e *Engine) validateCompatibility(c Composition) error {
	if c.Type != Sequential {
		return nil
	}

	catalog := e.source.Catalog()
	for i := 0; i+1 < len(c.Specs); i++ {
		first, _ := e.source.Get(c.Specs[i].ToolRef)
		second, _ := e.source.Get(c.Specs[i+1].ToolRef)
		if len(first.Capabilities) == 0 || len(second.Capabilities) == 0 {
			continue
		}
		if !anyComposable(catalog, first.Capabilities, second.Capabilities) {
			return fmt.Errorf("composition: validate %q: %w", c.Name,
				&toolweave.IncompatibleToolsError{First: c.Specs[i].ToolRef, Second: c.Specs[i+1].ToolRef})
		}
	}
	return nil
}

func anyComposable(catalog *capability.Catalog, from, to []string) bool {
	for _, a := range from {
		for _, b := range to {
			if catalog.Composable(a, b) {
				return true
			}
		}
	}
	return false
}
