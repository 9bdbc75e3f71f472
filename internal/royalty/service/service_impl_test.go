package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/config"
	contractdomain "github.com/storynest/storynest/internal/contract/domain"
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

func (m *usageMock) EventsForDay(context.Context, time.Time) ([]usagedomain.UsageEvent, error) {
	return nil, nil
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

func (m *catalogMock) AssetDurations(context.Context, []snowflake.ID) (map[snowflake.ID]int64, error) {
	return nil, nil
}

func (m *catalogMock) GetPublisher(context.Context, snowflake.ID) (*catalogdomain.Publisher, error) {
	return nil, nil
}

type contractMock struct {
	mock.Mock
}

func (m *contractMock) Create(context.Context, contractdomain.CreateContractRequest) (*contractdomain.PartnershipContract, error) {
	return nil, nil
}

func (m *contractMock) Get(context.Context, snowflake.ID) (*contractdomain.PartnershipContract, error) {
	return nil, nil
}

func (m *contractMock) List(context.Context, contractdomain.ListContractsRequest) ([]contractdomain.PartnershipContract, error) {
	return nil, nil
}

func (m *contractMock) UpdateStatus(context.Context, snowflake.ID, contractdomain.ContractStatus) (*contractdomain.PartnershipContract, error) {
	return nil, nil
}

func (m *contractMock) ResolveRevShareBps(ctx context.Context, publisherID snowflake.ID, day time.Time) (int64, error) {
	args := m.Called(ctx, publisherID, day)
	return args.Get(0).(int64), args.Error(1)
}

// -- Fixtures --

const (
	publisherID = snowflake.ID(10)
	bookID      = snowflake.ID(20)
	childID     = snowflake.ID(30)
)

func ptr[T any](v T) *T { return &v }

func periodStart() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
func periodEnd() time.Time   { return time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC) }

// periodEvents attributes exactly 100 minutes (6000 seconds) of
// watching via the client-reported field.
func periodEvents() []usagedomain.UsageEvent {
	base := periodStart().Add(10 * time.Hour)
	session := snowflake.ID(100)
	return []usagedomain.UsageEvent{
		{ID: 1, ChildID: childID, BookID: bookID, PlaybackSessionID: &session, Kind: usagedomain.EventKindPlayStart, PositionSeconds: ptr[int64](0), OccurredAt: base},
		{ID: 2, ChildID: childID, BookID: bookID, PlaybackSessionID: &session, Kind: usagedomain.EventKindPlayEnd, PositionSeconds: ptr[int64](6000), WatchedSeconds: ptr[int64](6000), OccurredAt: base.Add(100 * time.Minute)},
	}
}

func newTestService(rate, feeBps int64) (*Service, *usageMock, *catalogMock, *contractMock) {
	usage := &usageMock{}
	catalog := &catalogMock{}
	contract := &contractMock{}
	svc := NewService(ServiceParam{
		Log:         zap.NewNop(),
		UsageSvc:    usage,
		CatalogSvc:  catalog,
		ContractSvc: contract,
		PayoutConfig: config.StaticPayoutConfigHolder(config.PayoutConfig{
			PricePerMinuteCents: rate,
			PlatformFeeBps:      feeBps,
			Currency:            "usd",
		}),
	}).(*Service)
	return svc, usage, catalog, contract
}

// -- Tests --

func TestCalculate_StepByStepRounding(t *testing.T) {
	svc, usage, catalog, contract := newTestService(2, 1500)

	usage.On("EventsForRange", mock.Anything, periodStart(), periodEnd().AddDate(0, 0, 1)).
		Return(periodEvents(), nil)
	catalog.On("BookInfoByID", mock.Anything, mock.Anything).Return(map[snowflake.ID]catalogdomain.BookInfo{
		bookID: {BookID: bookID, Title: "The Paper Fox", PublisherID: publisherID, PublisherName: "Maple Press"},
	}, nil)
	contract.On("ResolveRevShareBps", mock.Anything, publisherID, periodEnd()).Return(int64(7000), nil)

	rows, err := svc.Calculate(context.Background(), periodStart(), periodEnd())
	assert.NoError(t, err)
	assert.Len(t, rows, 1)

	row := rows[0]
	// 100 minutes at 2 cents: gross 200, fee 15% = 30, net 170,
	// payout 70% of net = 119.
	assert.Equal(t, 100.0, row.MinutesWatched)
	assert.Equal(t, int64(200), row.GrossRevenueCents)
	assert.Equal(t, int64(30), row.PlatformFeeCents)
	assert.Equal(t, int64(170), row.NetRevenueCents)
	assert.Equal(t, int64(7000), row.RevShareBps)
	assert.Equal(t, int64(119), row.PayoutAmountCents)
	assert.Equal(t, int64(1), row.UniqueChildren)
	assert.Equal(t, int64(1), row.PlayStarts)
	assert.Equal(t, int64(1), row.PlayEnds)

	assert.Len(t, row.Breakdown, 1)
	assert.Equal(t, "The Paper Fox", row.Breakdown[0].BookTitle)
	assert.Equal(t, 100.0, row.Breakdown[0].MinutesWatched)
	assert.Equal(t, int64(200), row.Breakdown[0].GrossRevenueCents)
}

func TestCalculate_RoundsEachStepIndependently(t *testing.T) {
	// 75 seconds = 1.25 minutes. At 3 cents/min: gross round(3.75)=4,
	// fee at 3333 bps: round(4*0.3333)=round(1.3332)=1, net 3,
	// payout at 5000 bps: round(1.5)=2 (half away from zero).
	svc, usage, catalog, contract := newTestService(3, 3333)

	base := periodStart().Add(time.Hour)
	session := snowflake.ID(100)
	events := []usagedomain.UsageEvent{
		{ID: 1, ChildID: childID, BookID: bookID, PlaybackSessionID: &session, Kind: usagedomain.EventKindPlayStart, PositionSeconds: ptr[int64](0), OccurredAt: base},
		{ID: 2, ChildID: childID, BookID: bookID, PlaybackSessionID: &session, Kind: usagedomain.EventKindHeartbeat, PositionSeconds: ptr[int64](75), OccurredAt: base.Add(75 * time.Second)},
	}
	usage.On("EventsForRange", mock.Anything, mock.Anything, mock.Anything).Return(events, nil)
	catalog.On("BookInfoByID", mock.Anything, mock.Anything).Return(map[snowflake.ID]catalogdomain.BookInfo{
		bookID: {BookID: bookID, Title: "The Paper Fox", PublisherID: publisherID, PublisherName: "Maple Press"},
	}, nil)
	contract.On("ResolveRevShareBps", mock.Anything, publisherID, mock.Anything).Return(int64(5000), nil)

	rows, err := svc.Calculate(context.Background(), periodStart(), periodEnd())
	assert.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Equal(t, 1.25, rows[0].MinutesWatched)
	assert.Equal(t, int64(4), rows[0].GrossRevenueCents)
	assert.Equal(t, int64(1), rows[0].PlatformFeeCents)
	assert.Equal(t, int64(3), rows[0].NetRevenueCents)
	assert.Equal(t, int64(2), rows[0].PayoutAmountCents)
}

func TestCalculate_NoContractMeansZeroPayout(t *testing.T) {
	svc, usage, catalog, contract := newTestService(2, 1500)

	usage.On("EventsForRange", mock.Anything, mock.Anything, mock.Anything).Return(periodEvents(), nil)
	catalog.On("BookInfoByID", mock.Anything, mock.Anything).Return(map[snowflake.ID]catalogdomain.BookInfo{
		bookID: {BookID: bookID, Title: "The Paper Fox", PublisherID: publisherID, PublisherName: "Maple Press"},
	}, nil)
	contract.On("ResolveRevShareBps", mock.Anything, publisherID, mock.Anything).Return(int64(0), nil)

	rows, err := svc.Calculate(context.Background(), periodStart(), periodEnd())
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(170), rows[0].NetRevenueCents)
	assert.Equal(t, int64(0), rows[0].PayoutAmountCents)
}

func TestCalculate_EmptyRange(t *testing.T) {
	svc, usage, _, _ := newTestService(2, 1500)
	usage.On("EventsForRange", mock.Anything, mock.Anything, mock.Anything).Return([]usagedomain.UsageEvent{}, nil)

	rows, err := svc.Calculate(context.Background(), periodStart(), periodEnd())
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCalculate_RejectsInvertedRange(t *testing.T) {
	svc, _, _, _ := newTestService(2, 1500)

	_, err := svc.Calculate(context.Background(), periodEnd(), periodStart())
	assert.Error(t, err)
}
