package registry

import (
	"slices"
	"strings"

	"github.com/weave-labs/toolweave"
)

// Search ranking weights. Name hits dominate, then description, then tags.
const (
	searchNameWeight        = 10
	searchDescriptionWeight = 5
	searchTagWeight         = 3
)

// Recommendation scoring weights.
const (
	recommendQualityShare = 0.4
	recommendContextShare = 0.6

	contextTagWeight        = 10
	contextCapabilityWeight = 15
	contextCategoryBonus    = 20
)

// Ranked pairs a descriptor with the score that ordered it.
type Ranked struct {
	Descriptor toolweave.ToolDescriptor
	Score      float64
}

// Search performs a case-insensitive substring match against tool names,
// descriptions, and tags. Results are ranked by weighted match score with
// ties broken by insertion order, and truncated to limit when positive.
func (r *Registry) Search(query string, limit int) []Ranked {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	type candidate struct {
		ranked Ranked
		seq    int64
	}

	r.mu.RLock()
	var found []candidate
	for _, e := range r.entries {
		score := 0
		if strings.Contains(strings.ToLower(e.descriptor.Name), needle) {
			score += searchNameWeight
		}
		if strings.Contains(strings.ToLower(e.descriptor.Description), needle) {
			score += searchDescriptionWeight
		}
		for _, tag := range e.descriptor.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				score += searchTagWeight
			}
		}
		if score == 0 {
			continue
		}
		found = append(found, candidate{
			ranked: Ranked{Descriptor: e.descriptor.Clone(), Score: float64(score)},
			seq:    e.seq,
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(found, func(a, b candidate) int {
		if a.ranked.Score != b.ranked.Score {
			if a.ranked.Score > b.ranked.Score {
				return -1
			}
			return 1
		}
		// Insertion order breaks ties.
		if a.seq < b.seq {
			return -1
		}
		return 1
	})

	out := make([]Ranked, 0, len(found))
	for _, c := range found {
		out = append(out, c.ranked)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DiscoverOptions restricts capability discovery results.
type DiscoverOptions struct {
	// MinQuality drops tools scoring below it when positive.
	MinQuality float64
	// Limit truncates the result when positive.
	Limit int
}

// DiscoverByCapability returns every tool advertising the capability,
// ordered by descending quality score.
func (r *Registry) DiscoverByCapability(name string, opts DiscoverOptions) []Ranked {
	r.mu.RLock()
	var out []Ranked
	for ref := range r.capIndex[name] {
		e, ok := r.entries[ref]
		if !ok {
			continue
		}
		score := e.metrics.QualityScore()
		if opts.MinQuality > 0 && score < opts.MinQuality {
			continue
		}
		out = append(out, Ranked{Descriptor: e.descriptor.Clone(), Score: score})
	}
	r.mu.RUnlock()

	sortRankedDesc(out)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// RecommendationContext describes the caller's situation for Recommend.
type RecommendationContext struct {
	Category             string
	Tags                 []string
	RequiredCapabilities []string
}

// Recommend scores every registered tool by blending observed quality with
// contextual relevance (tag overlap, required-capability overlap, category
// match) and returns the top limit descriptors by combined score.
func (r *Registry) Recommend(rc RecommendationContext, limit int) []Ranked {
	r.mu.RLock()
	out := make([]Ranked, 0, len(r.entries))
	for _, e := range r.entries {
		contextScore := 0.0
		for _, tag := range rc.Tags {
			if e.descriptor.HasTag(tag) {
				contextScore += contextTagWeight
			}
		}
		for _, name := range rc.RequiredCapabilities {
			if e.descriptor.HasCapability(name) {
				contextScore += contextCapabilityWeight
			}
		}
		if rc.Category != "" && e.descriptor.Category == rc.Category {
			contextScore += contextCategoryBonus
		}

		score := recommendQualityShare*e.metrics.QualityScore() + recommendContextShare*contextScore
		out = append(out, Ranked{Descriptor: e.descriptor.Clone(), Score: score})
	}
	r.mu.RUnlock()

	sortRankedDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortRankedDesc(ranked []Ranked) {
	slices.SortFunc(ranked, func(a, b Ranked) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Descriptor.Name, b.Descriptor.Name)
	})
}
