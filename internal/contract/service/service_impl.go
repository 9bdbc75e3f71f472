package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/clock"
	contractdomain "github.com/storynest/storynest/internal/contract/domain"
	"github.com/storynest/storynest/pkg/db/option"
	"github.com/storynest/storynest/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	catalogsvc   catalogdomain.Service
	contractrepo repository.Repository[contractdomain.PartnershipContract]
}

func NewService(p ServiceParam) contractdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("contract.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		catalogsvc:   p.CatalogSvc,
		contractrepo: repository.ProvideStore[contractdomain.PartnershipContract](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req contractdomain.CreateContractRequest) (*contractdomain.PartnershipContract, error) {
	if req.PublisherID == 0 {
		return nil, contractdomain.ErrInvalidPublisher
	}
	if !req.Model.Valid() {
		return nil, contractdomain.ErrInvalidModel
	}
	if req.RevShareBps < 0 || req.RevShareBps > 10000 {
		return nil, contractdomain.ErrInvalidBps
	}
	if req.Model.RequiresRevShare() && req.RevShareBps == 0 {
		return nil, contractdomain.ErrMissingRevShareBps
	}
	if req.StartDate.IsZero() {
		return nil, contractdomain.ErrInvalidDateWindow
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return nil, contractdomain.ErrInvalidDateWindow
	}

	status := req.Status
	if status == "" {
		status = contractdomain.ContractStatusDraft
	}
	if !status.Valid() {
		return nil, contractdomain.ErrInvalidStatus
	}

	if _, err := s.catalogsvc.GetPublisher(ctx, req.PublisherID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &contractdomain.PartnershipContract{
		ID:          s.genID.Generate(),
		PublisherID: req.PublisherID,
		Model:       req.Model,
		RevShareBps: req.RevShareBps,
		StartDate:   req.StartDate.UTC(),
		EndDate:     req.EndDate,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.contractrepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*contractdomain.PartnershipContract, error) {
	record, err := s.contractrepo.FindOne(ctx, &contractdomain.PartnershipContract{ID: id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, contractdomain.ErrContractNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, req contractdomain.ListContractsRequest) ([]contractdomain.PartnershipContract, error) {
	filter := &contractdomain.PartnershipContract{}
	if req.PublisherID != nil {
		filter.PublisherID = *req.PublisherID
	}
	if req.Status != nil {
		filter.Status = *req.Status
	}

	rows, err := s.contractrepo.Find(ctx, filter, option.WithOrder("start_date DESC, id DESC"))
	if err != nil {
		return nil, err
	}
	contracts := make([]contractdomain.PartnershipContract, 0, len(rows))
	for _, row := range rows {
		contracts = append(contracts, *row)
	}
	return contracts, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status contractdomain.ContractStatus) (*contractdomain.PartnershipContract, error) {
	if !status.Valid() {
		return nil, contractdomain.ErrInvalidStatus
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Model(&contractdomain.PartnershipContract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": s.clock.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	record.Status = status
	return record, nil
}

func (s *Service) ResolveRevShareBps(ctx context.Context, publisherID snowflake.ID, day time.Time) (int64, error) {
	var contract contractdomain.PartnershipContract
	err := s.db.WithContext(ctx).
		Where("publisher_id = ? AND status = ?", publisherID, contractdomain.ContractStatusActive).
		Where("start_date <= ?", day).
		Where("end_date IS NULL OR end_date >= ?", day).
		Order("start_date DESC, id DESC").
		First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return contract.RevShareBps, nil
}
