// Package domain defines the external payment-transfer contract.
package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig      = errors.New("invalid_adapter_config")
	ErrProviderNotFound   = errors.New("payment_provider_not_found")
	ErrMissingDestination = errors.New("missing_destination_account")
	ErrTransferFailed     = errors.New("transfer_failed")
)

// TransferRequest asks the provider to move money to a connected
// account. Amounts are integer minor currency units.
type TransferRequest struct {
	Amount      int64
	Currency    string
	Destination string
	Metadata    TransferMetadata
}

// TransferMetadata is attached to the provider-side transfer object so
// payments reconcile back to our records.
type TransferMetadata struct {
	PayoutPeriodID string
	StatementID    string
	PublisherID    string
}

// Transfer is the provider's accepted transfer.
type Transfer struct {
	ID string
}

// TransferAdapter executes outbound transfers against one provider.
// Implementations must bound each call with their own timeout; callers
// treat any error as a per-statement failure, never fatal.
type TransferAdapter interface {
	Provider() string
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

// AdapterFactory builds a TransferAdapter from provider credentials.
type AdapterFactory interface {
	Provider() string
	NewAdapter(secretKey string) (TransferAdapter, error)
}
