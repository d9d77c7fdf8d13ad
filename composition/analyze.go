package composition

import (
	"encoding/json"
	"fmt"
	"sort"
)

// defaultLatencyEstimateMS is assumed for tools with no recorded metrics
// and no performance hint.
const defaultLatencyEstimateMS = 100

// StepPair is a pair of adjacent sequential step indexes.
type StepPair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// Redundancy names a (toolRef, params) combination that appears more than
// once in a composition.
type Redundancy struct {
	ToolRef   string `json:"toolRef"`
	Positions []int  `json:"positions"`
}

// Analysis is a static report over a composition's structure and expected
// cost.
type Analysis struct {
	// ParallelizableSteps lists adjacent sequential pairs where the second
	// step declares no output mapping, so no data dependency forces the
	// ordering.
	ParallelizableSteps []StepPair `json:"parallelizableSteps,omitempty"`

	// RedundantTools lists specs sharing an identical toolRef and params.
	RedundantTools []Redundancy `json:"redundantTools,omitempty"`

	// EstimatedLatencyMS is the expected execution time: the sum of
	// per-tool estimates for sequential, the max for parallel, and the
	// arithmetic mean for conditional.
	EstimatedLatencyMS float64 `json:"estimatedLatencyMs"`
}

// Analyze inspects a composition without executing it.
func (e *Engine) Analyze(c Composition) Analysis {
	a := Analysis{}

	if c.Type == Sequential {
		for i := 0; i+1 < len(c.Specs); i++ {
			if len(c.Specs[i+1].OutputMapping) == 0 {
				a.ParallelizableSteps = append(a.ParallelizableSteps, StepPair{First: i, Second: i + 1})
			}
		}
	}

	a.RedundantTools = e.findRedundant(c.Specs)
	a.EstimatedLatencyMS = e.estimateLatency(c)
	return a
}

func (e *Engine) findRedundant(specs []ToolSpec) []Redundancy {
	positions := make(map[string][]int)
	for i, spec := range specs {
		positions[invocationKey(spec)] = append(positions[invocationKey(spec)], i)
	}

	var out []Redundancy
	for _, idxs := range positions {
		if len(idxs) > 1 {
			out = append(out, Redundancy{ToolRef: specs[idxs[0]].ToolRef, Positions: idxs})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Positions[0] < out[j].Positions[0] })
	return out
}

// invocationKey canonicalizes a spec's identity for redundancy detection.
// JSON encoding of params sorts map keys, so two equal param sets always
// produce the same key.
func invocationKey(spec ToolSpec) string {
	params, err := json.Marshal(spec.Params)
	if err != nil {
		params = []byte(fmt.Sprintf("%v", spec.Params))
	}
	return spec.ToolRef + "\x00" + string(params)
}

func (e *Engine) estimateLatency(c Composition) float64 {
	if len(c.Specs) == 0 {
		return 0
	}

	estimates := make([]float64, len(c.Specs))
	for i, spec := range c.Specs {
		estimates[i] = e.estimateTool(spec.ToolRef)
	}

	switch c.Type {
	case Parallel:
		max := estimates[0]
		for _, v := range estimates[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case Conditional:
		var sum float64
		for _, v := range estimates {
			sum += v
		}
		return sum / float64(len(estimates))
	default:
		var sum float64
		for _, v := range estimates {
			sum += v
		}
		return sum
	}
}

// estimateTool prefers the tool's measured average latency, then its
// declared performance hint, then the global default.
func (e *Engine) estimateTool(ref string) float64 {
	if m, ok := e.source.GetMetrics(ref); ok {
		if avg, ok := m.AverageLatency(); ok {
			return avg
		}
	}
	if desc, ok := e.source.Get(ref); ok {
		if desc.PerformanceHints.DefaultLatencyMS > 0 {
			return desc.PerformanceHints.DefaultLatencyMS
		}
	}
	return defaultLatencyEstimateMS
}
