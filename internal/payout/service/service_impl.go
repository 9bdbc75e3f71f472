package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/clock"
	"github.com/storynest/storynest/internal/config"
	"github.com/storynest/storynest/internal/locks"
	"github.com/storynest/storynest/internal/payment"
	paymentdomain "github.com/storynest/storynest/internal/payment/domain"
	payoutdomain "github.com/storynest/storynest/internal/payout/domain"
	royaltydomain "github.com/storynest/storynest/internal/royalty/domain"
	"github.com/storynest/storynest/pkg/db"
)

const (
	generateNoteLimit = 500
	payoutNoteLimit   = 1000

	generateLockTTL = 10 * time.Minute
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	RoyaltySvc   royaltydomain.Service
	CatalogSvc   catalogdomain.Service
	Payments     *payment.Provider
	Locker       *locks.Locker `optional:"true"`
	PayoutConfig *config.PayoutConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	royaltysvc   royaltydomain.Service
	catalogsvc   catalogdomain.Service
	payments     *payment.Provider
	locker       *locks.Locker
	payoutConfig *config.PayoutConfigHolder
}

func NewService(p ServiceParam) payoutdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payout.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		royaltysvc:   p.RoyaltySvc,
		catalogsvc:   p.CatalogSvc,
		payments:     p.Payments,
		locker:       p.Locker,
		payoutConfig: p.PayoutConfig,
	}
}

func (s *Service) CreatePeriod(ctx context.Context, req payoutdomain.CreatePeriodRequest) (*payoutdomain.PayoutPeriod, error) {
	start := truncateToDay(req.StartDate)
	end := truncateToDay(req.EndDate)
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, payoutdomain.ErrInvalidDateRange
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.payoutConfig.Current().Currency
	}

	now := s.clock.Now()
	record := &payoutdomain.PayoutPeriod{
		ID:        s.genID.Generate(),
		StartDate: start,
		EndDate:   end,
		Currency:  currency,
		Status:    payoutdomain.PeriodStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, payoutdomain.ErrPeriodExists
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) GetPeriod(ctx context.Context, id snowflake.ID) (*payoutdomain.PayoutPeriod, error) {
	var period payoutdomain.PayoutPeriod
	err := s.db.WithContext(ctx).First(&period, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, payoutdomain.ErrPeriodNotFound
		}
		return nil, err
	}
	return &period, nil
}

func (s *Service) ListPeriods(ctx context.Context) ([]payoutdomain.PayoutPeriod, error) {
	var periods []payoutdomain.PayoutPeriod
	if err := s.db.WithContext(ctx).Order("start_date DESC, id DESC").Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (s *Service) Statements(ctx context.Context, periodID snowflake.ID) ([]payoutdomain.PublisherStatement, error) {
	if _, err := s.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	var statements []payoutdomain.PublisherStatement
	err := s.db.WithContext(ctx).
		Where("payout_period_id = ?", periodID).
		Order("payout_amount_cents DESC, publisher_id ASC").
		Find(&statements).Error
	if err != nil {
		return nil, err
	}
	return statements, nil
}

func (s *Service) Generate(ctx context.Context, periodID snowflake.ID) (*payoutdomain.PayoutPeriod, error) {
	period, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status == payoutdomain.PeriodStatusPaid {
		return nil, payoutdomain.ErrPeriodAlreadyPaid
	}

	// Cross-node serialization when redis is available. The database
	// status guard below still protects single-node deployments.
	if s.locker.Enabled() {
		key := "payout:generate:" + periodID.String()
		token, acquired, err := s.locker.TryLock(ctx, key, generateLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, payoutdomain.ErrPeriodCalculating
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("failed to release generate lock", zap.Error(err))
			}
		}()
	}

	// Claim the period; a concurrent generate loses the conditional
	// update and is rejected rather than interleaved.
	claim := s.db.WithContext(ctx).
		Model(&payoutdomain.PayoutPeriod{}).
		Where("id = ? AND status IN ?", periodID, []payoutdomain.PeriodStatus{
			payoutdomain.PeriodStatusDraft,
			payoutdomain.PeriodStatusFailed,
			payoutdomain.PeriodStatusReady,
		}).
		Updates(map[string]any{
			"status":     payoutdomain.PeriodStatusCalculating,
			"updated_at": s.clock.Now(),
		})
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil, payoutdomain.ErrPeriodCalculating
	}

	calculations, err := s.royaltysvc.Calculate(ctx, period.StartDate, period.EndDate)
	if err != nil {
		s.markGenerateFailed(ctx, periodID, err)
		return nil, err
	}

	now := s.clock.Now()
	statements := make([]payoutdomain.PublisherStatement, 0, len(calculations))
	var totalGross, totalPayout int64
	for _, calc := range calculations {
		breakdown, err := json.Marshal(calc.Breakdown)
		if err != nil {
			s.markGenerateFailed(ctx, periodID, err)
			return nil, err
		}
		statements = append(statements, payoutdomain.PublisherStatement{
			ID:                s.genID.Generate(),
			PayoutPeriodID:    periodID,
			PublisherID:       calc.PublisherID,
			Status:            payoutdomain.StatementStatusApproved,
			MinutesWatched:    calc.MinutesWatched,
			PlayStarts:        calc.PlayStarts,
			PlayEnds:          calc.PlayEnds,
			UniqueChildren:    calc.UniqueChildren,
			GrossRevenueCents: calc.GrossRevenueCents,
			PlatformFeeCents:  calc.PlatformFeeCents,
			NetRevenueCents:   calc.NetRevenueCents,
			RevShareBps:       calc.RevShareBps,
			PayoutAmountCents: calc.PayoutAmountCents,
			Breakdown:         breakdown,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		totalGross += calc.GrossRevenueCents
		totalPayout += calc.PayoutAmountCents
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("payout_period_id = ?", periodID).Delete(&payoutdomain.PublisherStatement{}).Error; err != nil {
			return err
		}
		if len(statements) > 0 {
			if err := tx.Create(&statements).Error; err != nil {
				return err
			}
		}
		return tx.Model(&payoutdomain.PayoutPeriod{}).
			Where("id = ?", periodID).
			Updates(map[string]any{
				"status":             payoutdomain.PeriodStatusReady,
				"total_gross_cents":  totalGross,
				"total_payout_cents": totalPayout,
				"calculated_at":      now,
				"notes":              nil,
				"updated_at":         now,
			}).Error
	})
	if err != nil {
		s.markGenerateFailed(ctx, periodID, err)
		return nil, err
	}

	s.log.Info("generated publisher statements",
		zap.String("period_id", periodID.String()),
		zap.Int("statements", len(statements)),
		zap.Int64("total_gross_cents", totalGross),
		zap.Int64("total_payout_cents", totalPayout),
	)
	return s.GetPeriod(ctx, periodID)
}

func (s *Service) Pay(ctx context.Context, periodID snowflake.ID) (*payoutdomain.PayResult, error) {
	period, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	switch period.Status {
	case payoutdomain.PeriodStatusReady, payoutdomain.PeriodStatusFailed:
	case payoutdomain.PeriodStatusPaid:
		return nil, payoutdomain.ErrPeriodAlreadyPaid
	default:
		return nil, payoutdomain.ErrPeriodNotReady
	}

	adapter := s.payments.Adapter()
	if adapter == nil {
		return s.markPaidWithoutTransfer(ctx, period)
	}
	return s.payWithTransfers(ctx, period, adapter)
}

func (s *Service) markPaidWithoutTransfer(ctx context.Context, period *payoutdomain.PayoutPeriod) (*payoutdomain.PayResult, error) {
	now := s.clock.Now()

	var paid int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&payoutdomain.PublisherStatement{}).
			Where("payout_period_id = ?", period.ID).
			Updates(map[string]any{
				"status":     payoutdomain.StatementStatusPaid,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		paid = res.RowsAffected
		return tx.Model(&payoutdomain.PayoutPeriod{}).
			Where("id = ?", period.ID).
			Updates(map[string]any{
				"status":     payoutdomain.PeriodStatusPaid,
				"paid_at":    now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("marked period paid without transfers",
		zap.String("period_id", period.ID.String()),
		zap.Int64("statements", paid),
	)
	updated, err := s.GetPeriod(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	return &payoutdomain.PayResult{Period: updated, StatementsPaid: int(paid)}, nil
}

func (s *Service) payWithTransfers(ctx context.Context, period *payoutdomain.PayoutPeriod, adapter paymentdomain.TransferAdapter) (*payoutdomain.PayResult, error) {
	var statements []payoutdomain.PublisherStatement
	err := s.db.WithContext(ctx).
		Where("payout_period_id = ? AND status IN ?", period.ID, []payoutdomain.StatementStatus{
			payoutdomain.StatementStatusApproved,
			payoutdomain.StatementStatusFailed,
		}).
		Order("publisher_id ASC").
		Find(&statements).Error
	if err != nil {
		return nil, err
	}

	// Previous notes describe a previous attempt; start clean.
	if err := s.updatePeriodFields(ctx, period.ID, map[string]any{"notes": nil}); err != nil {
		return nil, err
	}

	result := &payoutdomain.PayResult{}
	var notes []string
	for i := range statements {
		statement := &statements[i]
		if err := s.executeTransfer(ctx, period, statement, adapter); err != nil {
			result.StatementsFailed++
			notes = append(notes, fmt.Sprintf("Publisher #%s: %s", statement.PublisherID.String(), err.Error()))
			s.setStatementStatus(ctx, statement.ID, payoutdomain.StatementStatusFailed, nil)
			s.log.Warn("statement transfer failed",
				zap.String("period_id", period.ID.String()),
				zap.String("statement_id", statement.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.StatementsPaid++
	}

	if len(notes) > 0 {
		note := truncate(strings.Join(notes, "\n"), payoutNoteLimit)
		if err := s.updatePeriodFields(ctx, period.ID, map[string]any{"notes": note}); err != nil {
			return nil, err
		}
	}

	// The period is paid only when nothing is left failed, counting
	// statements failed on earlier attempts too.
	var failedCount int64
	err = s.db.WithContext(ctx).
		Model(&payoutdomain.PublisherStatement{}).
		Where("payout_period_id = ? AND status = ?", period.ID, payoutdomain.StatementStatusFailed).
		Count(&failedCount).Error
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if failedCount > 0 {
		err = s.updatePeriodFields(ctx, period.ID, map[string]any{
			"status":     payoutdomain.PeriodStatusFailed,
			"updated_at": now,
		})
	} else {
		err = s.updatePeriodFields(ctx, period.ID, map[string]any{
			"status":     payoutdomain.PeriodStatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.GetPeriod(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	result.Period = updated
	return result, nil
}

// executeTransfer pays one statement. Every error is a per-statement
// failure; it never aborts the siblings.
func (s *Service) executeTransfer(ctx context.Context, period *payoutdomain.PayoutPeriod, statement *payoutdomain.PublisherStatement, adapter paymentdomain.TransferAdapter) error {
	publisher, err := s.catalogsvc.GetPublisher(ctx, statement.PublisherID)
	if err != nil {
		return err
	}
	if publisher.StripeAccountID == nil || strings.TrimSpace(*publisher.StripeAccountID) == "" || !publisher.StripeOnboardingComplete {
		return fmt.Errorf("publisher %s is not fully onboarded for transfers", publisher.ID.String())
	}

	if statement.PayoutAmountCents <= 0 {
		return s.setStatementStatus(ctx, statement.ID, payoutdomain.StatementStatusPaid, nil)
	}

	transfer, err := adapter.CreateTransfer(ctx, paymentdomain.TransferRequest{
		Amount:      statement.PayoutAmountCents,
		Currency:    period.Currency,
		Destination: *publisher.StripeAccountID,
		Metadata: paymentdomain.TransferMetadata{
			PayoutPeriodID: period.ID.String(),
			StatementID:    statement.ID.String(),
			PublisherID:    statement.PublisherID.String(),
		},
	})
	if err != nil {
		return err
	}
	return s.setStatementStatus(ctx, statement.ID, payoutdomain.StatementStatusPaid, &transfer.ID)
}

func (s *Service) markGenerateFailed(ctx context.Context, periodID snowflake.ID, cause error) {
	note := truncate(cause.Error(), generateNoteLimit)
	err := s.updatePeriodFields(ctx, periodID, map[string]any{
		"status":     payoutdomain.PeriodStatusFailed,
		"notes":      note,
		"updated_at": s.clock.Now(),
	})
	if err != nil {
		s.log.Error("failed to record generation failure",
			zap.String("period_id", periodID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) setStatementStatus(ctx context.Context, id snowflake.ID, status payoutdomain.StatementStatus, transferID *string) error {
	fields := map[string]any{
		"status":     status,
		"updated_at": s.clock.Now(),
	}
	if transferID != nil {
		fields["stripe_transfer_id"] = *transferID
	}
	return s.db.WithContext(ctx).
		Model(&payoutdomain.PublisherStatement{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *Service) updatePeriodFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return s.db.WithContext(ctx).
		Model(&payoutdomain.PayoutPeriod{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
