// Package domain contains persistence models for raw playback telemetry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventKind classifies a playback telemetry event.
type EventKind string

const (
	EventKindPlayStart EventKind = "play_start"
	EventKindPause     EventKind = "pause"
	EventKindResume    EventKind = "resume"
	EventKindPlayEnd   EventKind = "play_end"
	EventKindHeartbeat EventKind = "heartbeat"
)

// Valid reports whether the kind is one of the closed set.
func (k EventKind) Valid() bool {
	switch k {
	case EventKindPlayStart, EventKindPause, EventKindResume, EventKindPlayEnd, EventKindHeartbeat:
		return true
	default:
		return false
	}
}

// Accrues reports whether events of this kind can earn watch time.
// State transitions (start/pause/resume) never accrue on their own.
func (k EventKind) Accrues() bool {
	return k == EventKindHeartbeat || k == EventKindPlayEnd
}

// UsageEvent stores a single unit of client-reported playback telemetry.
// Rows are immutable once created; only the retention purge removes them.
type UsageEvent struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	ChildID           snowflake.ID      `gorm:"not null;index:idx_usage_events_child_book_occurred,priority:1" json:"child_id"`
	BookID            snowflake.ID      `gorm:"not null;index:idx_usage_events_child_book_occurred,priority:2" json:"book_id"`
	PlaybackSessionID *snowflake.ID     `gorm:"index" json:"playback_session_id,omitempty"`
	Kind              EventKind         `gorm:"type:text;not null;index" json:"kind"`
	PositionSeconds   *int64            `json:"position_seconds,omitempty"`
	WatchedSeconds    *int64            `json:"watched_seconds,omitempty"`
	OccurredAt        time.Time         `gorm:"not null;index:idx_usage_events_child_book_occurred,priority:3" json:"occurred_at"`
	IdempotencyKey    *string           `gorm:"type:text;uniqueIndex" json:"idempotency_key,omitempty"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }
