// Package capability provides the static catalog of capability definitions
// tools advertise, together with composability checks, kind-based discovery,
// and schema-driven capability inference.
package capability

import (
	"slices"
)

// Definition describes one named capability: the value kinds it accepts and
// produces, the capabilities it composes with, and the capabilities it
// requires from its environment.
type Definition struct {
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	InputKinds     []string `json:"input_kinds,omitempty" yaml:"input_kinds,omitempty"`
	OutputKinds    []string `json:"output_kinds,omitempty" yaml:"output_kinds,omitempty"`
	ComposableWith []string `json:"composable_with,omitempty" yaml:"composable_with,omitempty"`
	Requirements   []string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// Catalog is a read-only table of capability definitions.
// It is loaded once at startup and never mutated afterward, so lookups are
// safe for concurrent use without locking.
type Catalog struct {
	defs  map[string]Definition
	names []string // sorted, for deterministic iteration
}

// NewCatalog builds a catalog from the given definitions.
// Later definitions with a duplicate name replace earlier ones.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{
		defs: make(map[string]Definition, len(defs)),
	}
	for _, def := range defs {
		if _, seen := c.defs[def.Name]; !seen {
			c.names = append(c.names, def.Name)
		}
		c.defs[def.Name] = def
	}
	slices.Sort(c.names)
	return c
}

// Get returns the definition for the given capability name.
func (c *Catalog) Get(name string) (Definition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Names returns all capability names in sorted order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

// Composable reports whether two capabilities can be chained.
// The check is bidirectional: it holds when either definition declares the
// other in its ComposableWith set, so a one-directional declaration yields
// true from either call order.
func (c *Catalog) Composable(a, b string) bool {
	defA, okA := c.defs[a]
	defB, okB := c.defs[b]
	if !okA || !okB {
		return false
	}
	return slices.Contains(defA.ComposableWith, b) || slices.Contains(defB.ComposableWith, a)
}

// FindByKinds returns the names of capabilities whose input kinds intersect
// inputKinds and whose output kinds intersect outputKinds.
// An empty filter matches everything on that side.
func (c *Catalog) FindByKinds(inputKinds, outputKinds []string) []string {
	var out []string
	for _, name := range c.names {
		def := c.defs[name]
		if !kindsIntersect(inputKinds, def.InputKinds) {
			continue
		}
		if !kindsIntersect(outputKinds, def.OutputKinds) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// BuildChain finds a capability chain converting fromKind into toKind.
// It first tries a single capability, then a two-hop chain through an
// intermediate kind where the two capabilities are mutually composable.
// The first chain found wins; this is a heuristic, not an exhaustive search,
// and the result carries no optimality guarantee.
func (c *Catalog) BuildChain(fromKind, toKind string) ([]string, bool) {
	for _, name := range c.names {
		def := c.defs[name]
		if slices.Contains(def.InputKinds, fromKind) && slices.Contains(def.OutputKinds, toKind) {
			return []string{name}, true
		}
	}

	for _, first := range c.names {
		defFirst := c.defs[first]
		if !slices.Contains(defFirst.InputKinds, fromKind) {
			continue
		}
		for _, second := range c.names {
			if second == first {
				continue
			}
			defSecond := c.defs[second]
			if !slices.Contains(defSecond.OutputKinds, toKind) {
				continue
			}
			if !c.Composable(first, second) {
				continue
			}
			for _, mid := range defFirst.OutputKinds {
				if slices.Contains(defSecond.InputKinds, mid) {
					return []string{first, second}, true
				}
			}
		}
	}

	return nil, false
}

func kindsIntersect(requested, declared []string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, kind := range requested {
		if slices.Contains(declared, kind) {
			return true
		}
	}
	return false
}
