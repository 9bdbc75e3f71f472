package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/clock"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
	"github.com/storynest/storynest/pkg/db/option"
	"github.com/storynest/storynest/pkg/db/pagination"
	"github.com/storynest/storynest/pkg/repository"
)

const maxIdempotencyKeyLen = 255

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	catalogsvc catalogdomain.Service
	eventrepo  repository.Repository[usagedomain.UsageEvent]
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*usagedomain.UsageEvent, error) {
	record, err := s.eventrepo.FindOne(ctx, &usagedomain.UsageEvent{ID: id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, usagedomain.ErrEventNotFound
	}
	return record, nil
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usage.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		catalogsvc: p.CatalogSvc,
		eventrepo:  repository.ProvideStore[usagedomain.UsageEvent](p.DB),
	}
}

func (s *Service) Ingest(ctx context.Context, req usagedomain.IngestEventRequest) (*usagedomain.UsageEvent, error) {
	if !req.Kind.Valid() {
		return nil, usagedomain.ErrInvalidEventKind
	}
	if req.ChildID == 0 {
		return nil, usagedomain.ErrInvalidChild
	}
	if req.BookID == 0 {
		return nil, usagedomain.ErrInvalidBook
	}
	if req.PositionSeconds != nil && *req.PositionSeconds < 0 {
		return nil, usagedomain.ErrNegativeSeconds
	}
	if req.WatchedSeconds != nil && *req.WatchedSeconds < 0 {
		return nil, usagedomain.ErrNegativeSeconds
	}

	idempotencyKey := normalizeIdempotencyKey(req.IdempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		return nil, usagedomain.ErrIdempotencyTooLong
	}

	// Strict idempotency: if the event was already accepted, return it
	// as stored. Retries must not re-run validation against state that
	// may have changed since the first attempt.
	existing, err := s.findEventByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := s.catalogsvc.EnsureChildAndBook(ctx, req.ChildID, req.BookID); err != nil {
		return nil, err
	}
	if req.PlaybackSessionID != nil && *req.PlaybackSessionID != 0 {
		if err := s.catalogsvc.ValidatePlaybackSession(ctx, *req.PlaybackSessionID, req.ChildID, req.BookID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	occurredAt := now
	if req.OccurredAt != nil && !req.OccurredAt.IsZero() {
		occurredAt = req.OccurredAt.UTC()
	}

	record := &usagedomain.UsageEvent{
		ID:                s.genID.Generate(),
		ChildID:           req.ChildID,
		BookID:            req.BookID,
		PlaybackSessionID: req.PlaybackSessionID,
		Kind:              req.Kind,
		PositionSeconds:   req.PositionSeconds,
		WatchedSeconds:    req.WatchedSeconds,
		OccurredAt:        occurredAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if idempotencyKey != "" {
		record.IdempotencyKey = &idempotencyKey
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	inserted, err := s.insertEvent(ctx, record, idempotencyKey)
	if err != nil {
		return nil, err
	}

	// Conflict on the key means a concurrent retry won; hand back its row.
	if !inserted && idempotencyKey != "" {
		existing, err := s.findEventByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	return record, nil
}

func (s *Service) List(ctx context.Context, req usagedomain.ListEventsRequest) (*usagedomain.ListEventsResponse, error) {
	size := req.Pagination.PageSize
	if size <= 0 {
		size = 50
	}

	query := s.db.WithContext(ctx).Model(&usagedomain.UsageEvent{})
	if req.ChildID != nil {
		query = query.Where("child_id = ?", *req.ChildID)
	}
	if req.BookID != nil {
		query = query.Where("book_id = ?", *req.BookID)
	}
	if req.Kind != nil {
		query = query.Where("kind = ?", *req.Kind)
	}
	if req.From != nil {
		query = query.Where("occurred_at >= ?", req.From.UTC())
	}
	if req.To != nil {
		query = query.Where("occurred_at < ?", req.To.UTC())
	}

	query = option.ApplyPagination(pagination.Pagination{
		PageToken: req.Pagination.PageToken,
		PageSize:  size,
	}).Apply(query)

	var rows []*usagedomain.UsageEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, int32(size), func(e *usagedomain.UsageEvent) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})
	if len(rows) > size {
		rows = rows[:size]
	}

	events := make([]usagedomain.UsageEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *row)
	}
	return &usagedomain.ListEventsResponse{Events: events, PageInfo: *pageInfo}, nil
}

func (s *Service) EventsForDay(ctx context.Context, day time.Time) ([]usagedomain.UsageEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return s.EventsForRange(ctx, start, start.AddDate(0, 0, 1))
}

func (s *Service) EventsForRange(ctx context.Context, from, to time.Time) ([]usagedomain.UsageEvent, error) {
	var events []usagedomain.UsageEvent
	err := s.db.WithContext(ctx).
		Where("occurred_at >= ? AND occurred_at < ?", from.UTC(), to.UTC()).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) Purge(ctx context.Context, retentionDays int) (*usagedomain.PurgeResult, error) {
	if retentionDays <= 0 {
		return &usagedomain.PurgeResult{}, nil
	}
	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, -retentionDays)

	result := &usagedomain.PurgeResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("occurred_at < ?", cutoff).Delete(&usagedomain.UsageEvent{})
		if res.Error != nil {
			return res.Error
		}
		result.EventsDeleted = res.RowsAffected

		res = tx.Where("expires_at < ?", now).Delete(&catalogdomain.PlaybackSession{})
		if res.Error != nil {
			return res.Error
		}
		result.SessionsDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purged expired usage data",
		zap.Time("cutoff", cutoff),
		zap.Int64("events_deleted", result.EventsDeleted),
		zap.Int64("sessions_deleted", result.SessionsDeleted),
	)
	return result, nil
}

func (s *Service) insertEvent(ctx context.Context, record *usagedomain.UsageEvent, idempotencyKey string) (bool, error) {
	if record == nil {
		return false, errors.New("missing_usage_event")
	}
	if s.db == nil {
		return false, errors.New("missing_db")
	}
	if strings.EqualFold(s.db.Dialector.Name(), "sqlite") {
		return s.insertEventSQLite(ctx, record, idempotencyKey)
	}
	db := s.db.WithContext(ctx)
	if idempotencyKey != "" {
		db = db.Clauses(buildIdempotencyConflictClause(s.db))
	}
	result := db.Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) insertEventSQLite(ctx context.Context, record *usagedomain.UsageEvent, idempotencyKey string) (bool, error) {
	var sessionValue any
	if record.PlaybackSessionID != nil {
		sessionValue = *record.PlaybackSessionID
	}
	var keyValue any
	if idempotencyKey != "" {
		keyValue = idempotencyKey
	}
	query := `INSERT INTO usage_events (
		id, child_id, book_id, playback_session_id, kind,
		position_seconds, watched_seconds, occurred_at,
		idempotency_key, metadata, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if idempotencyKey != "" {
		query += " ON CONFLICT (idempotency_key) DO NOTHING"
	}
	result := s.db.WithContext(ctx).Exec(
		query,
		record.ID,
		record.ChildID,
		record.BookID,
		sessionValue,
		record.Kind,
		record.PositionSeconds,
		record.WatchedSeconds,
		record.OccurredAt,
		keyValue,
		record.Metadata,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) findEventByIdempotencyKey(ctx context.Context, key string) (*usagedomain.UsageEvent, error) {
	if s.db == nil {
		return nil, errors.New("missing_db")
	}
	if key == "" {
		return nil, nil
	}
	var record usagedomain.UsageEvent
	err := s.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func buildIdempotencyConflictClause(db *gorm.DB) clause.OnConflict {
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}
	if db != nil && strings.EqualFold(db.Dialector.Name(), "postgres") {
		conflict.TargetWhere = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "idempotency_key IS NOT NULL"},
		}}
	}
	return conflict
}

func normalizeIdempotencyKey(key *string) string {
	if key == nil {
		return ""
	}
	return strings.TrimSpace(*key)
}
