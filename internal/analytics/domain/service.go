package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidDateRange = errors.New("invalid_date_range")
)

// ReportRequest parameterizes an ad-hoc usage rollup. The range is
// inclusive of both dates; all filters are optional.
type ReportRequest struct {
	From        time.Time
	To          time.Time
	PublisherID *snowflake.ID
	BookID      *snowflake.ID
	ChildID     *snowflake.ID
}

// ReportRow is one (date, publisher, book) grouping of the report.
type ReportRow struct {
	Date           time.Time    `json:"date"`
	PublisherID    snowflake.ID `json:"publisher_id"`
	PublisherName  string       `json:"publisher_name"`
	BookID         snowflake.ID `json:"book_id"`
	BookTitle      string       `json:"book_title"`
	MinutesWatched float64      `json:"minutes_watched"`
	PlayStarts     int64        `json:"play_starts"`
	PlayEnds       int64        `json:"play_ends"`
	UniqueChildren int64        `json:"unique_children"`
}

// Service rolls attributed watch time up into daily metrics and
// on-demand reports. Both paths consume the same attribution primitive
// so their minutes-watched figures always agree.
type Service interface {
	// AggregateDay recomputes every DailyMetric row for the given UTC
	// calendar date, replacing any prior rows for that date in one
	// transaction. Returns the number of rows written.
	AggregateDay(ctx context.Context, date time.Time) (int, error)

	// Report computes the same grouping over an arbitrary inclusive
	// date range with optional filters, without persisting anything.
	Report(ctx context.Context, req ReportRequest) ([]ReportRow, error)

	// Metrics returns persisted DailyMetric rows for an inclusive
	// date range, newest first.
	Metrics(ctx context.Context, from, to time.Time, publisherID *snowflake.ID) ([]DailyMetric, error)
}
