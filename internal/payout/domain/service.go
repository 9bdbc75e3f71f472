package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrPeriodNotFound    = errors.New("payout_period_not_found")
	ErrPeriodExists      = errors.New("payout_period_exists")
	ErrPeriodCalculating = errors.New("payout_period_calculating")
	ErrPeriodNotReady    = errors.New("payout_period_not_ready")
	ErrPeriodAlreadyPaid = errors.New("payout_period_already_paid")
	ErrStatementNotFound = errors.New("publisher_statement_not_found")
)

// CreatePeriodRequest opens a new payout window.
type CreatePeriodRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Currency  string    `json:"currency,omitempty"`
}

// PayResult summarizes one payment execution pass.
type PayResult struct {
	Period           *PayoutPeriod `json:"period"`
	StatementsPaid   int           `json:"statements_paid"`
	StatementsFailed int           `json:"statements_failed"`
}

// Service owns the payout period state machine.
type Service interface {
	// CreatePeriod registers a new draft period. The exact date range
	// must not already exist.
	CreatePeriod(ctx context.Context, req CreatePeriodRequest) (*PayoutPeriod, error)

	GetPeriod(ctx context.Context, id snowflake.ID) (*PayoutPeriod, error)
	ListPeriods(ctx context.Context) ([]PayoutPeriod, error)
	Statements(ctx context.Context, periodID snowflake.ID) ([]PublisherStatement, error)

	// Generate runs the royalty calculator for the period and replaces
	// its statement set atomically. Allowed from draft, failed or ready;
	// a period already calculating is rejected, a paid period can never
	// be regenerated.
	Generate(ctx context.Context, periodID snowflake.ID) (*PayoutPeriod, error)

	// Pay executes the period's payouts. With a configured transfer
	// provider each approved or failed statement gets its own transfer
	// call; without one, everything is marked paid directly.
	Pay(ctx context.Context, periodID snowflake.ID) (*PayResult, error)
}
