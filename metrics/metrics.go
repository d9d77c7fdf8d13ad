// Package metrics tracks per-tool execution quality: rolling counters,
// time-bucketed histories, and the composite quality score used by the
// registry for ranking.
package metrics

import (
	"time"
)

// Bucket key layouts. Keys are always derived from UTC time so that merged
// metrics from different hosts agree on bucket boundaries.
const (
	hourKeyLayout = "2006-01-02T15"
	dayKeyLayout  = "2006-01-02"
)

// Retention windows applied by Aggregate.
const (
	hourlyRetention = 24 * time.Hour
	dailyRetention  = 30 * 24 * time.Hour
)

// ToolMetrics is the mutable per-tool metrics record.
//
// Invariants: all counters are non-negative and TotalExecutions equals
// SuccessfulExecutions + FailedExecutions. MinLatencyMS and MaxLatencyMS are
// nil until the first successful sample. The type is not safe for concurrent
// mutation; the registry serializes access.
type ToolMetrics struct {
	TotalExecutions      int64            `json:"total_executions"`
	SuccessfulExecutions int64            `json:"successful_executions"`
	FailedExecutions     int64            `json:"failed_executions"`
	TotalLatencyMS       float64          `json:"total_latency_ms"`
	MinLatencyMS         *float64         `json:"min_latency_ms,omitempty"`
	MaxLatencyMS         *float64         `json:"max_latency_ms,omitempty"`
	ErrorCounts          map[string]int64 `json:"error_counts,omitempty"`
	LastExecution        time.Time        `json:"last_execution,omitempty"`
	HourlyBuckets        map[string]int64 `json:"hourly_buckets,omitempty"`
	DailyBuckets         map[string]int64 `json:"daily_buckets,omitempty"`
}

// New returns a zero-value metrics record with initialized maps.
func New() *ToolMetrics {
	return &ToolMetrics{
		ErrorCounts:   make(map[string]int64),
		HourlyBuckets: make(map[string]int64),
		DailyBuckets:  make(map[string]int64),
	}
}

// Outcome is one observed tool invocation result.
type Outcome struct {
	Success   bool
	LatencyMS float64
	ErrorKind string
}

// Success builds a successful outcome with the measured latency.
func Success(latencyMS float64) Outcome {
	return Outcome{Success: true, LatencyMS: latencyMS}
}

// Failure builds a failed outcome classified by error kind.
func Failure(kind string) Outcome {
	return Outcome{ErrorKind: kind}
}

// Record applies one outcome to the metrics record.
// Both branches update TotalExecutions, LastExecution, and the current
// hour and day bucket counters; latency extremes only move on success.
func (m *ToolMetrics) Record(out Outcome, at time.Time) {
	m.TotalExecutions++
	m.LastExecution = at

	if m.HourlyBuckets == nil {
		m.HourlyBuckets = make(map[string]int64)
	}
	if m.DailyBuckets == nil {
		m.DailyBuckets = make(map[string]int64)
	}
	m.HourlyBuckets[at.UTC().Format(hourKeyLayout)]++
	m.DailyBuckets[at.UTC().Format(dayKeyLayout)]++

	if out.Success {
		m.SuccessfulExecutions++
		m.TotalLatencyMS += out.LatencyMS
		if m.MinLatencyMS == nil || out.LatencyMS < *m.MinLatencyMS {
			v := out.LatencyMS
			m.MinLatencyMS = &v
		}
		if m.MaxLatencyMS == nil || out.LatencyMS > *m.MaxLatencyMS {
			v := out.LatencyMS
			m.MaxLatencyMS = &v
		}
		return
	}

	m.FailedExecutions++
	if m.ErrorCounts == nil {
		m.ErrorCounts = make(map[string]int64)
	}
	kind := out.ErrorKind
	if kind == "" {
		kind = "unknown"
	}
	m.ErrorCounts[kind]++
}

// SuccessRate returns the success percentage.
// A never-used tool reports 100 so that lack of history does not sink it to
// the bottom of quality rankings.
func (m *ToolMetrics) SuccessRate() float64 {
	if m.TotalExecutions == 0 {
		return 100.0
	}
	return float64(m.SuccessfulExecutions) / float64(m.TotalExecutions) * 100.0
}

// AverageLatency returns the mean latency of successful executions in
// milliseconds. The second return is false when no successful sample exists.
func (m *ToolMetrics) AverageLatency() (float64, bool) {
	if m.SuccessfulExecutions == 0 {
		return 0, false
	}
	return m.TotalLatencyMS / float64(m.SuccessfulExecutions), true
}

// QualityScore computes the 0-100 composite ranking score:
// 60% success rate, 30% latency, 10% usage volume.
func (m *ToolMetrics) QualityScore() float64 {
	return 0.6*m.SuccessRate() + 0.3*m.latencyScore() + 0.1*m.usageScore()
}

// latencyScore is a step function of average latency. No samples scores 100:
// an unmeasured tool is not assumed slow.
func (m *ToolMetrics) latencyScore() float64 {
	avg, ok := m.AverageLatency()
	if !ok {
		return 100
	}
	switch {
	case avg <= 100:
		return 100
	case avg <= 500:
		return 80
	case avg <= 1000:
		return 60
	case avg <= 5000:
		return 40
	default:
		return 25
	}
}

// usageScore is a step function of total executions.
func (m *ToolMetrics) usageScore() float64 {
	switch {
	case m.TotalExecutions == 0:
		return 0
	case m.TotalExecutions < 10:
		return 50
	case m.TotalExecutions < 100:
		return 75
	default:
		return 100
	}
}

// Aggregate drops bucket entries older than the retention windows
// (24h hourly, 30d daily). Cumulative counters are never touched.
func (m *ToolMetrics) Aggregate(now time.Time) {
	hourCutoff := now.UTC().Add(-hourlyRetention)
	for key := range m.HourlyBuckets {
		at, err := time.Parse(hourKeyLayout, key)
		if err != nil || at.Before(hourCutoff) {
			delete(m.HourlyBuckets, key)
		}
	}

	dayCutoff := now.UTC().Add(-dailyRetention)
	for key := range m.DailyBuckets {
		at, err := time.Parse(dayKeyLayout, key)
		if err != nil || at.Before(dayCutoff) {
			delete(m.DailyBuckets, key)
		}
	}
}

// Clone returns a deep copy of the record.
func (m *ToolMetrics) Clone() *ToolMetrics {
	out := &ToolMetrics{
		TotalExecutions:      m.TotalExecutions,
		SuccessfulExecutions: m.SuccessfulExecutions,
		FailedExecutions:     m.FailedExecutions,
		TotalLatencyMS:       m.TotalLatencyMS,
		LastExecution:        m.LastExecution,
		ErrorCounts:          cloneCounts(m.ErrorCounts),
		HourlyBuckets:        cloneCounts(m.HourlyBuckets),
		DailyBuckets:         cloneCounts(m.DailyBuckets),
	}
	if m.MinLatencyMS != nil {
		v := *m.MinLatencyMS
		out.MinLatencyMS = &v
	}
	if m.MaxLatencyMS != nil {
		v := *m.MaxLatencyMS
		out.MaxLatencyMS = &v
	}
	return out
}

// Merge combines metrics from independent shards into a new record.
// Counters sum, latency extremes combine via min/max, bucket maps combine
// via per-key sum, and LastExecution takes the later timestamp. The
// operation is associative and commutative.
func Merge(a, b *ToolMetrics) *ToolMetrics {
	if a == nil && b == nil {
		return New()
	}
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}

	out := a.Clone()
	out.TotalExecutions += b.TotalExecutions
	out.SuccessfulExecutions += b.SuccessfulExecutions
	out.FailedExecutions += b.FailedExecutions
	out.TotalLatencyMS += b.TotalLatencyMS

	if b.MinLatencyMS != nil && (out.MinLatencyMS == nil || *b.MinLatencyMS < *out.MinLatencyMS) {
		v := *b.MinLatencyMS
		out.MinLatencyMS = &v
	}
	if b.MaxLatencyMS != nil && (out.MaxLatencyMS == nil || *b.MaxLatencyMS > *out.MaxLatencyMS) {
		v := *b.MaxLatencyMS
		out.MaxLatencyMS = &v
	}

	for kind, n := range b.ErrorCounts {
		out.ErrorCounts[kind] += n
	}
	for key, n := range b.HourlyBuckets {
		out.HourlyBuckets[key] += n
	}
	for key, n := range b.DailyBuckets {
		out.DailyBuckets[key] += n
	}

	if b.LastExecution.After(out.LastExecution) {
		out.LastExecution = b.LastExecution
	}
	return out
}

func cloneCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
