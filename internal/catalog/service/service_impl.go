package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storynest/storynest/internal/cache"
	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const durationCacheTTL = 5 * time.Minute

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	publisherRepo repository.Repository[catalogdomain.Publisher]
	durationCache *cache.TTLCache[snowflake.ID, int64]
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),

		publisherRepo: repository.ProvideStore[catalogdomain.Publisher](p.DB),
		durationCache: cache.NewTTLCache[snowflake.ID, int64](),
	}
}

func (s *Service) ValidatePlaybackSession(ctx context.Context, sessionID, childID, bookID snowflake.ID) error {
	var exists bool
	err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM playback_sessions WHERE id = ? AND child_id = ? AND book_id = ?)`,
		sessionID,
		childID,
		bookID,
	).Scan(&exists).Error
	if err != nil {
		return err
	}
	if !exists {
		return catalogdomain.ErrSessionNotFound
	}
	return nil
}

func (s *Service) EnsureChildAndBook(ctx context.Context, childID, bookID snowflake.ID) error {
	var childExists bool
	if err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM child_profiles WHERE id = ?)`, childID,
	).Scan(&childExists).Error; err != nil {
		return err
	}
	if !childExists {
		return catalogdomain.ErrChildNotFound
	}

	var bookExists bool
	if err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM books WHERE id = ?)`, bookID,
	).Scan(&bookExists).Error; err != nil {
		return err
	}
	if !bookExists {
		return catalogdomain.ErrBookNotFound
	}
	return nil
}

func (s *Service) BookInfoByID(ctx context.Context, bookIDs []snowflake.ID) (map[snowflake.ID]catalogdomain.BookInfo, error) {
	result := make(map[snowflake.ID]catalogdomain.BookInfo, len(bookIDs))
	if len(bookIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		BookID        snowflake.ID
		Title         string
		PublisherID   snowflake.ID
		PublisherName string
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT b.id AS book_id, b.title AS title, b.publisher_id AS publisher_id, p.name AS publisher_name
		 FROM books b
		 JOIN publishers p ON p.id = b.publisher_id
		 WHERE b.id IN ?`,
		bookIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.BookID] = catalogdomain.BookInfo{
			BookID:        row.BookID,
			Title:         row.Title,
			PublisherID:   row.PublisherID,
			PublisherName: row.PublisherName,
		}
	}
	return result, nil
}

func (s *Service) AssetDurations(ctx context.Context, bookIDs []snowflake.ID) (map[snowflake.ID]int64, error) {
	result := make(map[snowflake.ID]int64, len(bookIDs))
	missing := make([]snowflake.ID, 0, len(bookIDs))

	for _, id := range bookIDs {
		if duration, ok := s.durationCache.Get(id); ok {
			if duration > 0 {
				result[id] = duration
			}
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	var rows []struct {
		BookID          snowflake.ID
		DurationSeconds int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT book_id, duration_seconds FROM video_assets WHERE book_id IN ?`,
		missing,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		s.durationCache.Set(row.BookID, row.DurationSeconds, durationCacheTTL)
		if row.DurationSeconds > 0 {
			result[row.BookID] = row.DurationSeconds
		}
	}
	return result, nil
}

func (s *Service) GetPublisher(ctx context.Context, publisherID snowflake.ID) (*catalogdomain.Publisher, error) {
	publisher, err := s.publisherRepo.FindOne(ctx, &catalogdomain.Publisher{ID: publisherID})
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, catalogdomain.ErrPublisherNotFound
	}
	return publisher, nil
}
