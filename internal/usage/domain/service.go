package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/storynest/storynest/pkg/db/pagination"
)

var (
	ErrInvalidEventKind   = errors.New("invalid_event_kind")
	ErrInvalidChild       = errors.New("invalid_child")
	ErrInvalidBook        = errors.New("invalid_book")
	ErrNegativeSeconds    = errors.New("negative_seconds")
	ErrEventNotFound      = errors.New("usage_event_not_found")
	ErrIdempotencyTooLong = errors.New("idempotency_key_too_long")
)

// IngestEventRequest is the write payload for a telemetry event.
type IngestEventRequest struct {
	ChildID           snowflake.ID   `json:"child_id"`
	BookID            snowflake.ID   `json:"book_id"`
	PlaybackSessionID *snowflake.ID  `json:"playback_session_id,omitempty"`
	Kind              EventKind      `json:"kind"`
	PositionSeconds   *int64         `json:"position_seconds,omitempty"`
	WatchedSeconds    *int64         `json:"watched_seconds,omitempty"`
	OccurredAt        *time.Time     `json:"occurred_at,omitempty"`
	IdempotencyKey    *string        `json:"idempotency_key,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// ListEventsRequest filters and paginates stored events.
type ListEventsRequest struct {
	ChildID    *snowflake.ID
	BookID     *snowflake.ID
	Kind       *EventKind
	From       *time.Time
	To         *time.Time
	Pagination pagination.Pagination
}

// ListEventsResponse is a page of events plus cursor info.
type ListEventsResponse struct {
	Events   []UsageEvent        `json:"events"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// PurgeResult reports how many rows a retention pass removed.
type PurgeResult struct {
	EventsDeleted   int64 `json:"events_deleted"`
	SessionsDeleted int64 `json:"sessions_deleted"`
}

// Service ingests, lists and expires playback telemetry.
type Service interface {
	// Ingest validates and stores one event. When the request carries an
	// idempotency key that was already used, the previously stored event
	// is returned and no new row is written.
	Ingest(ctx context.Context, req IngestEventRequest) (*UsageEvent, error)

	// List returns events matching the filters, newest first.
	List(ctx context.Context, req ListEventsRequest) (*ListEventsResponse, error)

	// Get loads a single event by id.
	Get(ctx context.Context, id snowflake.ID) (*UsageEvent, error)

	// EventsForDay loads all events for a single UTC day ordered by
	// occurrence, for downstream attribution.
	EventsForDay(ctx context.Context, day time.Time) ([]UsageEvent, error)

	// EventsForRange loads all events in [from, to) ordered by occurrence.
	EventsForRange(ctx context.Context, from, to time.Time) ([]UsageEvent, error)

	// Purge removes events older than the retention window and playback
	// sessions past their expiry.
	Purge(ctx context.Context, retentionDays int) (*PurgeResult, error)
}
