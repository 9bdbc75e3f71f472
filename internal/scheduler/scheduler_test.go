package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	"github.com/storynest/storynest/internal/clock"
	"github.com/storynest/storynest/internal/config"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
	"github.com/storynest/storynest/pkg/db/pagination"
)

type analyticsMock struct {
	mock.Mock
}

func (m *analyticsMock) AggregateDay(ctx context.Context, date time.Time) (int, error) {
	args := m.Called(ctx, date)
	return args.Int(0), args.Error(1)
}

func (m *analyticsMock) Report(context.Context, analyticsdomain.ReportRequest) ([]analyticsdomain.ReportRow, error) {
	return nil, nil
}

func (m *analyticsMock) Metrics(context.Context, time.Time, time.Time, *snowflake.ID) ([]analyticsdomain.DailyMetric, error) {
	return nil, nil
}

type usageMock struct {
	mock.Mock
}

func (m *usageMock) Ingest(context.Context, usagedomain.IngestEventRequest) (*usagedomain.UsageEvent, error) {
	return nil, nil
}

func (m *usageMock) List(context.Context, usagedomain.ListEventsRequest) (*usagedomain.ListEventsResponse, error) {
	return &usagedomain.ListEventsResponse{PageInfo: pagination.PageInfo{}}, nil
}

func (m *usageMock) Get(context.Context, snowflake.ID) (*usagedomain.UsageEvent, error) {
	return nil, nil
}

func (m *usageMock) EventsForDay(context.Context, time.Time) ([]usagedomain.UsageEvent, error) {
	return nil, nil
}

func (m *usageMock) EventsForRange(context.Context, time.Time, time.Time) ([]usagedomain.UsageEvent, error) {
	return nil, nil
}

func (m *usageMock) Purge(ctx context.Context, retentionDays int) (*usagedomain.PurgeResult, error) {
	args := m.Called(ctx, retentionDays)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*usagedomain.PurgeResult), args.Error(1)
}

func newTestScheduler(fake *clock.FakeClock, analytics *analyticsMock, usage *usageMock) *Scheduler {
	return NewScheduler(Params{
		Log:          zap.NewNop(),
		Clock:        fake,
		Config:       Config{TickInterval: time.Hour, RunTimeout: time.Minute, AggregateOffset: 1},
		AppConfig:    config.Config{DataRetentionDays: 365},
		AnalyticsSvc: analytics,
		UsageSvc:     usage,
	})
}

func TestTick_AggregatesYesterdayOnce(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC))
	analytics := &analyticsMock{}
	usage := &usageMock{}
	scheduler := newTestScheduler(fake, analytics, usage)

	yesterday := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	analytics.On("AggregateDay", mock.Anything, yesterday).Return(3, nil).Once()
	usage.On("Purge", mock.Anything, 365).Return(&usagedomain.PurgeResult{}, nil)

	scheduler.Tick(context.Background())
	// Same day again: the metrics job must not re-run.
	scheduler.Tick(context.Background())

	analytics.AssertNumberOfCalls(t, "AggregateDay", 1)
}

func TestTick_ReaggregatesWhenDayRollsOver(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 11, 23, 0, 0, 0, time.UTC))
	analytics := &analyticsMock{}
	usage := &usageMock{}
	scheduler := newTestScheduler(fake, analytics, usage)

	analytics.On("AggregateDay", mock.Anything, mock.Anything).Return(1, nil)
	usage.On("Purge", mock.Anything, 365).Return(&usagedomain.PurgeResult{}, nil)

	scheduler.Tick(context.Background())
	fake.Advance(2 * time.Hour)
	scheduler.Tick(context.Background())

	analytics.AssertNumberOfCalls(t, "AggregateDay", 2)
	analytics.AssertCalled(t, "AggregateDay", mock.Anything, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	analytics.AssertCalled(t, "AggregateDay", mock.Anything, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
}

func TestTick_FailedAggregationRetriesNextTick(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC))
	analytics := &analyticsMock{}
	usage := &usageMock{}
	scheduler := newTestScheduler(fake, analytics, usage)

	analytics.On("AggregateDay", mock.Anything, mock.Anything).Return(0, errors.New("db down")).Once()
	analytics.On("AggregateDay", mock.Anything, mock.Anything).Return(2, nil).Once()
	usage.On("Purge", mock.Anything, 365).Return(&usagedomain.PurgeResult{}, nil)

	scheduler.Tick(context.Background())
	scheduler.Tick(context.Background())

	analytics.AssertNumberOfCalls(t, "AggregateDay", 2)
}

func TestTick_PurgeFailureDoesNotBlockMetrics(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC))
	analytics := &analyticsMock{}
	usage := &usageMock{}
	scheduler := newTestScheduler(fake, analytics, usage)

	analytics.On("AggregateDay", mock.Anything, mock.Anything).Return(1, nil)
	usage.On("Purge", mock.Anything, 365).Return(nil, errors.New("db down"))

	assert.NotPanics(t, func() {
		scheduler.Tick(context.Background())
	})
	analytics.AssertNumberOfCalls(t, "AggregateDay", 1)
}
