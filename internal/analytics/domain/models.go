// Package domain contains derived daily usage metrics.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DailyMetric is one fully derived rollup row per (date, publisher,
// book). Rows are never hand-edited: each aggregation run replaces the
// whole date's set, so the table is always safe to recompute.
type DailyMetric struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	MetricDate        time.Time    `gorm:"column:metric_date;type:date;not null;uniqueIndex:idx_daily_metrics_scope,priority:1" json:"metric_date"`
	PublisherID       snowflake.ID `gorm:"not null;uniqueIndex:idx_daily_metrics_scope,priority:2" json:"publisher_id"`
	BookID            snowflake.ID `gorm:"not null;uniqueIndex:idx_daily_metrics_scope,priority:3" json:"book_id"`
	PlayStarts        int64        `gorm:"not null;default:0" json:"play_starts"`
	PlayEnds          int64        `gorm:"not null;default:0" json:"play_ends"`
	UniqueChildren    int64        `gorm:"not null;default:0" json:"unique_children"`
	MinutesWatched    float64      `gorm:"not null;default:0" json:"minutes_watched"`
	AvgCompletionRate float64      `gorm:"not null;default:0" json:"avg_completion_rate"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DailyMetric) TableName() string { return "daily_metrics" }
