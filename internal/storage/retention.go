package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"poolOracle/internal/metrics"
)

// RetentionConfig holds pruning settings.
type RetentionConfig struct {
	Horizon  time.Duration
	Interval time.Duration
}

// Retention periodically deletes price points older than the horizon. The
// first run happens one horizon after Run starts, then every interval.
type Retention struct {
	store   PriceStore
	cfg     RetentionConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRetention(store PriceStore, cfg RetentionConfig, logger *zap.Logger, m *metrics.Metrics) *Retention {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retention{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the clock used for cutoffs.
func (r *Retention) SetClock(now func() time.Time) {
	r.now = now
}

// Run schedules ticks until ctx is cancelled and waits for a running tick
// to finish before returning.
func (r *Retention) Run(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("price store is nil")
	}
	if r.cfg.Horizon <= 0 {
		return fmt.Errorf("retention horizon must be greater than zero")
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("retention interval must be greater than zero")
	}

	c := cron.New()
	c.Schedule(delayedSchedule{
		first: r.now().Add(r.cfg.Horizon),
		every: cron.Every(r.cfg.Interval),
	}, cron.FuncJob(func() {
		_, _ = r.Tick(ctx)
	}))
	c.Start()
	r.logger.Info("retention scheduled", zap.Duration("horizon", r.cfg.Horizon), zap.Duration("interval", r.cfg.Interval))

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("retention stopped")
	return nil
}

// Tick deletes every point older than now minus the horizon. Failures are
// logged and counted, never fatal.
func (r *Retention) Tick(ctx context.Context) (int64, error) {
	now := r.now()
	cutoff := now.Add(-r.cfg.Horizon)

	deleted, err := r.store.DeleteOlderThan(ctx, cutoff)
	r.metrics.RetentionRun(deleted, err, now)
	if err != nil {
		r.logger.Error("retention failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	r.logger.Info("retention complete", zap.Time("cutoff", cutoff), zap.Int64("deleted", deleted))
	return deleted, nil
}

// delayedSchedule fires once at first and then follows every.
type delayedSchedule struct {
	first time.Time
	every cron.ConstantDelaySchedule
}

func (s delayedSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.every.Next(t)
}
