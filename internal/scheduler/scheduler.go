// Package scheduler runs the nightly batch jobs: daily metric rollups
// and telemetry retention purges.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	"github.com/storynest/storynest/internal/clock"
	"github.com/storynest/storynest/internal/config"
	"github.com/storynest/storynest/internal/observability/metrics"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Config       Config `optional:"true"`
	AppConfig    config.Config
	AnalyticsSvc analyticsdomain.Service
	UsageSvc     usagedomain.Service
}

type Scheduler struct {
	log   *zap.Logger
	clock clock.Clock
	cfg   Config

	retentionDays int
	analyticssvc  analyticsdomain.Service
	usagesvc      usagedomain.Service

	// lastMetricsDay remembers the most recent date already rolled up
	// so a tick only re-runs the job when the target day moves.
	lastMetricsDay time.Time
}

func NewScheduler(p Params) *Scheduler {
	return &Scheduler{
		log:           p.Log.Named("scheduler"),
		clock:         p.Clock,
		cfg:           p.Config.withDefaults(),
		retentionDays: p.AppConfig.DataRetentionDays,
		analyticssvc:  p.AnalyticsSvc,
		usagesvc:      p.UsageSvc,
	}
}

// RunForever ticks until the context is cancelled. The first pass runs
// immediately so a freshly deployed scheduler catches up without
// waiting a full interval.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs each due job once. Failures are recorded and retried on
// the next tick; one job failing never blocks the other.
func (s *Scheduler) Tick(ctx context.Context) {
	s.runDailyMetrics(ctx)
	s.runRetentionPurge(ctx)
}

func (s *Scheduler) runDailyMetrics(ctx context.Context) {
	target := truncateToDay(s.clock.Now().AddDate(0, 0, -s.cfg.AggregateOffset))
	if target.Equal(s.lastMetricsDay) {
		return
	}

	rows, err := s.runJob(ctx, "daily_metrics", func(ctx context.Context) (int, error) {
		return s.analyticssvc.AggregateDay(ctx, target)
	})
	if err != nil {
		return
	}

	s.lastMetricsDay = target
	s.log.Info("daily metrics job finished",
		zap.Time("date", target),
		zap.Int("rows", rows),
	)
}

func (s *Scheduler) runRetentionPurge(ctx context.Context) {
	if s.retentionDays <= 0 {
		return
	}

	_, err := s.runJob(ctx, "purge_usage", func(ctx context.Context) (int, error) {
		result, err := s.usagesvc.Purge(ctx, s.retentionDays)
		if err != nil {
			return 0, err
		}
		return int(result.EventsDeleted + result.SessionsDeleted), nil
	})
	if err != nil {
		return
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	jobs := metrics.Jobs()
	jobs.IncJobRun(name)

	started := time.Now()
	rows, err := fn(ctx)
	jobs.ObserveJobDuration(name, time.Since(started))
	if err != nil {
		jobs.IncJobError(name)
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return 0, err
	}
	jobs.SetJobRows(name, rows)
	return rows, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
