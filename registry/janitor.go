package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default janitor schedule: the top of every hour, matching the hourly
// bucket granularity.
const defaultJanitorSchedule = "0 * * * *"

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// JanitorConfig configures the background metrics janitor.
type JanitorConfig struct {
	Registry *Registry
	// Schedule is a five-field cron expression evaluated in UTC.
	// Defaults to hourly.
	Schedule string
	// FlushStore also persists metric snapshots after each pruning pass.
	FlushStore bool
	Now        func() time.Time
	Logger     *slog.Logger
}

// Janitor periodically applies metric-bucket retention across the registry.
// Pruning never changes cumulative counters, so the janitor is safe to run
// at any cadence.
type Janitor struct {
	registry   *Registry
	schedule   cron.Schedule
	flushStore bool
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a metrics janitor.
func NewJanitor(cfg JanitorConfig) (*Janitor, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry: janitor registry is nil")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultJanitorSchedule
	}
	schedule, err := parseCronExpressionUTC(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("registry: janitor schedule: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Janitor{
		registry:   cfg.Registry,
		schedule:   schedule,
		flushStore: cfg.FlushStore,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}, nil
}

// Start launches the janitor loop. Calling Start on a running janitor is a
// no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	done := make(chan struct{})
	j.done = done

	go j.run(runCtx, done)
}

// Stop terminates the janitor loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	done := j.done
	j.cancel = nil
	j.done = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce applies one pruning pass immediately.
func (j *Janitor) RunOnce(ctx context.Context) {
	now := j.now()
	j.registry.Aggregate(now)
	if j.flushStore {
		if err := j.registry.Flush(ctx); err != nil {
			j.logger.Warn("janitor flush failed", "error", err)
		}
	}
	j.logger.Debug("metrics buckets pruned", "at", now)
}

func (j *Janitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		next := j.schedule.Next(j.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}

// parseCronExpressionUTC parses a five-field cron expression, rejecting
// timezone prefixes so janitor schedules always agree with the UTC bucket
// keys.
func parseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, errors.New("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, errors.New("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}
