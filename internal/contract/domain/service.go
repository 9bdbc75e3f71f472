package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidPublisher   = errors.New("invalid_publisher")
	ErrInvalidModel       = errors.New("invalid_payment_model")
	ErrInvalidStatus      = errors.New("invalid_contract_status")
	ErrInvalidBps         = errors.New("invalid_rev_share_bps")
	ErrInvalidDateWindow  = errors.New("invalid_date_window")
	ErrContractNotFound   = errors.New("contract_not_found")
	ErrMissingRevShareBps = errors.New("missing_rev_share_bps")
)

// CreateContractRequest is the write payload for a new contract.
type CreateContractRequest struct {
	PublisherID snowflake.ID   `json:"publisher_id"`
	Model       PaymentModel   `json:"payment_model"`
	RevShareBps int64          `json:"rev_share_bps"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	Status      ContractStatus `json:"status,omitempty"`
}

// ListContractsRequest filters stored contracts.
type ListContractsRequest struct {
	PublisherID *snowflake.ID
	Status      *ContractStatus
}

// Service manages partnership contracts and resolves rev-share terms.
type Service interface {
	Create(ctx context.Context, req CreateContractRequest) (*PartnershipContract, error)
	Get(ctx context.Context, id snowflake.ID) (*PartnershipContract, error)
	List(ctx context.Context, req ListContractsRequest) ([]PartnershipContract, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status ContractStatus) (*PartnershipContract, error)

	// ResolveRevShareBps picks the rev-share basis points that apply to
	// a publisher on the given day: the active contract covering the
	// day with the latest start date wins; with no such contract the
	// share is zero.
	ResolveRevShareBps(ctx context.Context, publisherID snowflake.ID, day time.Time) (int64, error)
}
