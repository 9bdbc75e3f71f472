// Package domain contains payout period and publisher statement models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PeriodStatus is the payout period lifecycle state.
type PeriodStatus string

const (
	PeriodStatusDraft       PeriodStatus = "draft"
	PeriodStatusCalculating PeriodStatus = "calculating"
	PeriodStatusReady       PeriodStatus = "ready"
	PeriodStatusPaid        PeriodStatus = "paid"
	PeriodStatusFailed      PeriodStatus = "failed"
)

// StatementStatus is the per-publisher statement lifecycle state.
type StatementStatus string

const (
	StatementStatusDraft    StatementStatus = "draft"
	StatementStatusApproved StatementStatus = "approved"
	StatementStatusPaid     StatementStatus = "paid"
	StatementStatusFailed   StatementStatus = "failed"
)

// PayoutPeriod is one operator-created payout window. The (start, end)
// pair is unique; the status field drives statement generation and
// payment execution.
type PayoutPeriod struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	StartDate        time.Time    `gorm:"type:date;not null;uniqueIndex:idx_payout_periods_range,priority:1" json:"start_date"`
	EndDate          time.Time    `gorm:"type:date;not null;uniqueIndex:idx_payout_periods_range,priority:2" json:"end_date"`
	Currency         string       `gorm:"type:text;not null" json:"currency"`
	Status           PeriodStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	TotalGrossCents  int64        `gorm:"not null;default:0" json:"total_gross_cents"`
	TotalPayoutCents int64        `gorm:"not null;default:0" json:"total_payout_cents"`
	Notes            *string      `json:"notes,omitempty"`
	CalculatedAt     *time.Time   `json:"calculated_at,omitempty"`
	PaidAt           *time.Time   `json:"paid_at,omitempty"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PayoutPeriod) TableName() string { return "payout_periods" }

// PublisherStatement is one publisher's computed royalty for a period.
// The whole set for a period is regenerated atomically; rows are never
// partially patched.
type PublisherStatement struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	PayoutPeriodID    snowflake.ID    `gorm:"not null;uniqueIndex:idx_publisher_statements_scope,priority:1" json:"payout_period_id"`
	PublisherID       snowflake.ID    `gorm:"not null;uniqueIndex:idx_publisher_statements_scope,priority:2" json:"publisher_id"`
	Status            StatementStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	MinutesWatched    float64         `gorm:"not null;default:0" json:"minutes_watched"`
	PlayStarts        int64           `gorm:"not null;default:0" json:"play_starts"`
	PlayEnds          int64           `gorm:"not null;default:0" json:"play_ends"`
	UniqueChildren    int64           `gorm:"not null;default:0" json:"unique_children"`
	GrossRevenueCents int64           `gorm:"not null;default:0" json:"gross_revenue_cents"`
	PlatformFeeCents  int64           `gorm:"not null;default:0" json:"platform_fee_cents"`
	NetRevenueCents   int64           `gorm:"not null;default:0" json:"net_revenue_cents"`
	RevShareBps       int64           `gorm:"not null;default:0" json:"rev_share_bps"`
	PayoutAmountCents int64           `gorm:"not null;default:0" json:"payout_amount_cents"`
	Breakdown         datatypes.JSON  `json:"breakdown,omitempty"`
	StripeTransferID  *string         `json:"stripe_transfer_id,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PublisherStatement) TableName() string { return "publisher_statements" }
