package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	payoutdomain "github.com/storynest/storynest/internal/payout/domain"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

type fakeUsageService struct {
	ingestErr   error
	ingestCalls int
}

func (f *fakeUsageService) Ingest(ctx context.Context, req usagedomain.IngestEventRequest) (*usagedomain.UsageEvent, error) {
	f.ingestCalls++
	_ = ctx
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &usagedomain.UsageEvent{
		ID:      snowflake.ID(1),
		ChildID: req.ChildID,
		BookID:  req.BookID,
		Kind:    req.Kind,
	}, nil
}

func (f *fakeUsageService) List(ctx context.Context, req usagedomain.ListEventsRequest) (*usagedomain.ListEventsResponse, error) {
	_ = ctx
	_ = req
	return &usagedomain.ListEventsResponse{}, nil
}

func (f *fakeUsageService) Get(ctx context.Context, id snowflake.ID) (*usagedomain.UsageEvent, error) {
	_ = ctx
	_ = id
	return nil, usagedomain.ErrEventNotFound
}

func (f *fakeUsageService) EventsForDay(ctx context.Context, day time.Time) ([]usagedomain.UsageEvent, error) {
	_ = ctx
	_ = day
	return nil, nil
}

func (f *fakeUsageService) EventsForRange(ctx context.Context, from, to time.Time) ([]usagedomain.UsageEvent, error) {
	_ = ctx
	_, _ = from, to
	return nil, nil
}

func (f *fakeUsageService) Purge(ctx context.Context, retentionDays int) (*usagedomain.PurgeResult, error) {
	_ = ctx
	_ = retentionDays
	return &usagedomain.PurgeResult{}, nil
}

type fakePayoutService struct {
	generateErr error
}

func (f *fakePayoutService) CreatePeriod(ctx context.Context, req payoutdomain.CreatePeriodRequest) (*payoutdomain.PayoutPeriod, error) {
	_ = ctx
	_ = req
	return &payoutdomain.PayoutPeriod{ID: snowflake.ID(9)}, nil
}

func (f *fakePayoutService) GetPeriod(ctx context.Context, id snowflake.ID) (*payoutdomain.PayoutPeriod, error) {
	_ = ctx
	_ = id
	return nil, payoutdomain.ErrPeriodNotFound
}

func (f *fakePayoutService) ListPeriods(ctx context.Context) ([]payoutdomain.PayoutPeriod, error) {
	_ = ctx
	return nil, nil
}

func (f *fakePayoutService) Statements(ctx context.Context, periodID snowflake.ID) ([]payoutdomain.PublisherStatement, error) {
	_ = ctx
	_ = periodID
	return nil, nil
}

func (f *fakePayoutService) Generate(ctx context.Context, periodID snowflake.ID) (*payoutdomain.PayoutPeriod, error) {
	_ = ctx
	_ = periodID
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &payoutdomain.PayoutPeriod{ID: periodID}, nil
}

func (f *fakePayoutService) Pay(ctx context.Context, periodID snowflake.ID) (*payoutdomain.PayResult, error) {
	_ = ctx
	_ = periodID
	return &payoutdomain.PayResult{}, nil
}

func newTestRouter(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.RegisterAPIRoutes()
	return router
}

func TestIngestHandlerMapsValidationErrors(t *testing.T) {
	usageSvc := &fakeUsageService{ingestErr: usagedomain.ErrInvalidEventKind}
	srv := &Server{usageSvc: usageSvc}
	router := newTestRouter(srv)

	body := bytes.NewBufferString(`{"child_id":"1","book_id":"2","kind":"rewind"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/usage-events", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if usageSvc.ingestCalls != 1 {
		t.Fatalf("expected one ingest call, got %d", usageSvc.ingestCalls)
	}

	var payload errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload.Error.Type != "validation_error" {
		t.Fatalf("expected validation_error, got %q", payload.Error.Type)
	}
	if len(payload.Error.Errors) != 1 || payload.Error.Errors[0].Code != "invalid_event_kind" {
		t.Fatalf("unexpected validation payload: %+v", payload.Error.Errors)
	}
}

func TestIngestHandlerRejectsMalformedBody(t *testing.T) {
	usageSvc := &fakeUsageService{}
	srv := &Server{usageSvc: usageSvc}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/usage-events", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if usageSvc.ingestCalls != 0 {
		t.Fatal("expected ingest not to be called")
	}
}

func TestGetUsageEventReturns404(t *testing.T) {
	srv := &Server{usageSvc: &fakeUsageService{}}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage-events/12345", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestGenerateHandlerMapsCalculatingToConflict(t *testing.T) {
	srv := &Server{
		usageSvc:  &fakeUsageService{},
		payoutSvc: &fakePayoutService{generateErr: payoutdomain.ErrPeriodCalculating},
	}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/payout-periods/12345/generate", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestCreatePayoutPeriodReturns201(t *testing.T) {
	srv := &Server{
		usageSvc:  &fakeUsageService{},
		payoutSvc: &fakePayoutService{},
	}
	router := newTestRouter(srv)

	body := bytes.NewBufferString(`{"start_date":"2026-03-01T00:00:00Z","end_date":"2026-03-31T00:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/payout-periods", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
}
