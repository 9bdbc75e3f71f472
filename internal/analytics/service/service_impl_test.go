package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/clock"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
	"github.com/storynest/storynest/pkg/db/pagination"
)

// -- Mocks --

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

func (m *usageMock) EventsForDay(ctx context.Context, day time.Time) ([]usagedomain.UsageEvent, error) {
	args := m.Called(ctx, day)
	return args.Get(0).([]usagedomain.UsageEvent), args.Error(1)
}

func (m *usageMock) EventsForRange(ctx context.Context, from, to time.Time) ([]usagedomain.UsageEvent, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]usagedomain.UsageEvent), args.Error(1)
}

func (m *usageMock) Purge(context.Context, int) (*usagedomain.PurgeResult, error) {
	return &usagedomain.PurgeResult{}, nil
}

type catalogMock struct {
	mock.Mock
}

func (m *catalogMock) ValidatePlaybackSession(context.Context, snowflake.ID, snowflake.ID, snowflake.ID) error {
	return nil
}

func (m *catalogMock) EnsureChildAndBook(context.Context, snowflake.ID, snowflake.ID) error {
	return nil
}

func (m *catalogMock) BookInfoByID(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]catalogdomain.BookInfo, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[snowflake.ID]catalogdomain.BookInfo), args.Error(1)
}

func (m *catalogMock) AssetDurations(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[snowflake.ID]int64), args.Error(1)
}

func (m *catalogMock) GetPublisher(context.Context, snowflake.ID) (*catalogdomain.Publisher, error) {
	return nil, nil
}

// -- Fixtures --

const (
	publisherID = snowflake.ID(10)
	bookID      = snowflake.ID(20)
	childA      = snowflake.ID(30)
	childB      = snowflake.ID(31)
)

func metricsDay() time.Time {
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// dayEvents is one child watching a 600s book to completion and a
// second child watching half of it: 60s + 30s attributed.
func dayEvents() []usagedomain.UsageEvent {
	base := metricsDay().Add(9 * time.Hour)
	sessionA := snowflake.ID(100)
	sessionB := snowflake.ID(200)

	return []usagedomain.UsageEvent{
		{ID: 1, ChildID: childA, BookID: bookID, PlaybackSessionID: &sessionA, Kind: usagedomain.EventKindPlayStart, PositionSeconds: ptr[int64](0), OccurredAt: base},
		{ID: 2, ChildID: childA, BookID: bookID, PlaybackSessionID: &sessionA, Kind: usagedomain.EventKindHeartbeat, PositionSeconds: ptr[int64](30), OccurredAt: base.Add(30 * time.Second)},
		{ID: 3, ChildID: childA, BookID: bookID, PlaybackSessionID: &sessionA, Kind: usagedomain.EventKindPlayEnd, PositionSeconds: ptr[int64](600), OccurredAt: base.Add(60 * time.Second), WatchedSeconds: ptr[int64](30)},
		{ID: 4, ChildID: childB, BookID: bookID, PlaybackSessionID: &sessionB, Kind: usagedomain.EventKindPlayStart, PositionSeconds: ptr[int64](0), OccurredAt: base.Add(time.Hour)},
		{ID: 5, ChildID: childB, BookID: bookID, PlaybackSessionID: &sessionB, Kind: usagedomain.EventKindPlayEnd, PositionSeconds: ptr[int64](300), OccurredAt: base.Add(time.Hour + 30*time.Second), WatchedSeconds: ptr[int64](30)},
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *usageMock, *catalogMock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&analyticsdomain.DailyMetric{}); err != nil {
		t.Fatal(err)
	}

	usage := &usageMock{}
	catalog := &catalogMock{}
	node, _ := snowflake.NewNode(1)
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(metricsDay().Add(24 * time.Hour)),
		UsageSvc:   usage,
		CatalogSvc: catalog,
	}).(*Service)
	return svc, db, usage, catalog
}

func stubCatalog(catalog *catalogMock) {
	catalog.On("BookInfoByID", mock.Anything, mock.Anything).Return(map[snowflake.ID]catalogdomain.BookInfo{
		bookID: {BookID: bookID, Title: "The Paper Fox", PublisherID: publisherID, PublisherName: "Maple Press"},
	}, nil)
	catalog.On("AssetDurations", mock.Anything, mock.Anything).Return(map[snowflake.ID]int64{
		bookID: 600,
	}, nil)
}

// -- Tests --

func TestAggregateDay_ComputesMetrics(t *testing.T) {
	svc, db, usage, catalog := newTestService(t)
	usage.On("EventsForDay", mock.Anything, metricsDay()).Return(dayEvents(), nil)
	stubCatalog(catalog)

	count, err := svc.AggregateDay(context.Background(), metricsDay())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	var row analyticsdomain.DailyMetric
	assert.NoError(t, db.First(&row).Error)
	assert.Equal(t, publisherID, row.PublisherID)
	assert.Equal(t, bookID, row.BookID)
	assert.Equal(t, int64(2), row.PlayStarts)
	assert.Equal(t, int64(2), row.PlayEnds)
	assert.Equal(t, int64(2), row.UniqueChildren)
	// 30+30+30 seconds attributed in total = 1.5 minutes
	assert.Equal(t, 1.5, row.MinutesWatched)
	// play_end completions: 600/600 capped at 1.0 and 300/600 = 0.5
	assert.Equal(t, 0.75, row.AvgCompletionRate)
}

func TestAggregateDay_RerunReplacesRows(t *testing.T) {
	svc, db, usage, catalog := newTestService(t)
	usage.On("EventsForDay", mock.Anything, metricsDay()).Return(dayEvents(), nil)
	stubCatalog(catalog)

	for i := 0; i < 2; i++ {
		count, err := svc.AggregateDay(context.Background(), metricsDay())
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	}

	var rows []analyticsdomain.DailyMetric
	assert.NoError(t, db.Find(&rows).Error)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1.5, rows[0].MinutesWatched)
	assert.Equal(t, 0.75, rows[0].AvgCompletionRate)
}

func TestAggregateDay_EmptyDayClearsPriorRows(t *testing.T) {
	svc, db, usage, _ := newTestService(t)
	usage.On("EventsForDay", mock.Anything, metricsDay()).Return([]usagedomain.UsageEvent{}, nil)

	stale := analyticsdomain.DailyMetric{ID: 1, MetricDate: metricsDay(), PublisherID: publisherID, BookID: bookID, MinutesWatched: 99}
	assert.NoError(t, db.Create(&stale).Error)

	count, err := svc.AggregateDay(context.Background(), metricsDay())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	var remaining int64
	db.Model(&analyticsdomain.DailyMetric{}).Count(&remaining)
	assert.Equal(t, int64(0), remaining)
}

func TestReport_MatchesAggregatedMinutes(t *testing.T) {
	svc, db, usage, catalog := newTestService(t)
	usage.On("EventsForDay", mock.Anything, metricsDay()).Return(dayEvents(), nil)
	usage.On("EventsForRange", mock.Anything, metricsDay(), metricsDay().AddDate(0, 0, 1)).Return(dayEvents(), nil)
	stubCatalog(catalog)

	_, err := svc.AggregateDay(context.Background(), metricsDay())
	assert.NoError(t, err)

	rows, err := svc.Report(context.Background(), analyticsdomain.ReportRequest{
		From: metricsDay(),
		To:   metricsDay(),
	})
	assert.NoError(t, err)
	assert.Len(t, rows, 1)

	var persisted analyticsdomain.DailyMetric
	assert.NoError(t, db.First(&persisted).Error)
	assert.Equal(t, persisted.MinutesWatched, rows[0].MinutesWatched)
	assert.Equal(t, persisted.PlayStarts, rows[0].PlayStarts)
	assert.Equal(t, persisted.UniqueChildren, rows[0].UniqueChildren)
	assert.Equal(t, "Maple Press", rows[0].PublisherName)
	assert.Equal(t, "The Paper Fox", rows[0].BookTitle)
}

func TestReport_ChildFilter(t *testing.T) {
	svc, _, usage, catalog := newTestService(t)
	usage.On("EventsForRange", mock.Anything, mock.Anything, mock.Anything).Return(dayEvents(), nil)
	stubCatalog(catalog)

	child := childB
	rows, err := svc.Report(context.Background(), analyticsdomain.ReportRequest{
		From:    metricsDay(),
		To:      metricsDay(),
		ChildID: &child,
	})
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].UniqueChildren)
	assert.Equal(t, 0.5, rows[0].MinutesWatched)
}

func TestReport_RejectsInvertedRange(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Report(context.Background(), analyticsdomain.ReportRequest{
		From: metricsDay(),
		To:   metricsDay().AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, analyticsdomain.ErrInvalidDateRange)
}
