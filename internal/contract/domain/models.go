// Package domain contains partnership contract models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentModel describes how a publisher is compensated.
type PaymentModel string

const (
	PaymentModelFlatFee  PaymentModel = "flat_fee"
	PaymentModelRevShare PaymentModel = "rev_share"
	PaymentModelHybrid   PaymentModel = "hybrid"
)

func (m PaymentModel) Valid() bool {
	switch m {
	case PaymentModelFlatFee, PaymentModelRevShare, PaymentModelHybrid:
		return true
	default:
		return false
	}
}

// RequiresRevShare reports whether the model pays out a revenue share,
// meaning its contract must carry a positive bps.
func (m PaymentModel) RequiresRevShare() bool {
	return m == PaymentModelRevShare || m == PaymentModelHybrid
}

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusActive     ContractStatus = "active"
	ContractStatusExpired    ContractStatus = "expired"
	ContractStatusTerminated ContractStatus = "terminated"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusActive, ContractStatusExpired, ContractStatusTerminated:
		return true
	default:
		return false
	}
}

// PartnershipContract records the commercial terms agreed with a
// publisher. Only active contracts whose date window covers a payout
// period's end participate in rev-share resolution.
type PartnershipContract struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	PublisherID snowflake.ID   `gorm:"not null;index" json:"publisher_id"`
	Model       PaymentModel   `gorm:"column:payment_model;type:text;not null" json:"payment_model"`
	RevShareBps int64          `gorm:"not null;default:0" json:"rev_share_bps"`
	StartDate   time.Time      `gorm:"not null" json:"start_date"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	Status      ContractStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PartnershipContract) TableName() string { return "partnership_contracts" }

// Covers reports whether the contract's date window includes the given
// day. An open-ended contract covers everything from its start.
func (c PartnershipContract) Covers(day time.Time) bool {
	if day.Before(c.StartDate) {
		return false
	}
	if c.EndDate != nil && day.After(*c.EndDate) {
		return false
	}
	return true
}
