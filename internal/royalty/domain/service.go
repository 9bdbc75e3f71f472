// Package domain defines the royalty calculation contract.
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

// BookBreakdown is the informational per-book slice of a publisher's
// calculation. It is persisted on the statement but never paid
// separately.
type BookBreakdown struct {
	BookID            snowflake.ID `json:"book_id"`
	BookTitle         string       `json:"book_title"`
	MinutesWatched    float64      `json:"minutes_watched"`
	GrossRevenueCents int64        `json:"gross_revenue_cents"`
}

// Calculation is one publisher's computed royalty for a period. All
// money fields are integer minor currency units, rounded step by step
// (half away from zero) rather than once at the end.
type Calculation struct {
	PublisherID       snowflake.ID    `json:"publisher_id"`
	PublisherName     string          `json:"publisher_name"`
	MinutesWatched    float64         `json:"minutes_watched"`
	PlayStarts        int64           `json:"play_starts"`
	PlayEnds          int64           `json:"play_ends"`
	UniqueChildren    int64           `json:"unique_children"`
	GrossRevenueCents int64           `json:"gross_revenue_cents"`
	PlatformFeeCents  int64           `json:"platform_fee_cents"`
	NetRevenueCents   int64           `json:"net_revenue_cents"`
	RevShareBps       int64           `json:"rev_share_bps"`
	PayoutAmountCents int64           `json:"payout_amount_cents"`
	Breakdown         []BookBreakdown `json:"breakdown"`
}

// Service computes per-publisher royalties over a date range.
type Service interface {
	// Calculate returns one row per publisher with any attributed usage
	// in the inclusive [from, to] range. Rev-share terms are resolved
	// against the range's end date.
	Calculate(ctx context.Context, from, to time.Time) ([]Calculation, error)
}
