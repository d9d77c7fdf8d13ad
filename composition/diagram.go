package composition

import (
	"fmt"
	"sort"
	"strings"
)

// ToDiagram renders the composition's control and data flow as a DOT
// digraph, suitable for Graphviz or similar viewers. The output format is
// for human inspection and is not a stable wire contract.
func ToDiagram(c Composition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", c.Name)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for i, spec := range c.Specs {
		fmt.Fprintf(&b, "  s%d [label=%q];\n", i, spec.ToolRef)
	}

	switch c.Type {
	case Sequential:
		for i := 0; i+1 < len(c.Specs); i++ {
			label := mappingLabel(c.Specs[i+1].OutputMapping)
			if label == "" {
				fmt.Fprintf(&b, "  s%d -> s%d;\n", i, i+1)
			} else {
				fmt.Fprintf(&b, "  s%d -> s%d [label=%q];\n", i, i+1, label)
			}
		}

	case Parallel:
		b.WriteString("  fork [shape=point];\n")
		b.WriteString("  join [shape=point];\n")
		for i := range c.Specs {
			fmt.Fprintf(&b, "  fork -> s%d;\n", i)
			fmt.Fprintf(&b, "  s%d -> join;\n", i)
		}

	case Conditional:
		b.WriteString("  choice [shape=diamond, label=\"?\"];\n")
		for i, spec := range c.Specs {
			label := "default"
			if spec.Condition != nil {
				label = spec.Condition.Describe()
			}
			fmt.Fprintf(&b, "  choice -> s%d [label=%q];\n", i, label)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func mappingLabel(mapping map[string]string) string {
	if len(mapping) == 0 {
		return ""
	}
	parts := make([]string, 0, len(mapping))
	for key, path := range mapping {
		parts = append(parts, fmt.Sprintf("%s=%s", key, path))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
