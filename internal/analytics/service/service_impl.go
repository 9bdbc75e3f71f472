package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/clock"
	"github.com/storynest/storynest/internal/usage/attribution"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	UsageSvc   usagedomain.Service
	CatalogSvc catalogdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	usagesvc   usagedomain.Service
	catalogsvc catalogdomain.Service
}

func NewService(p ServiceParam) analyticsdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("analytics.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		usagesvc:   p.UsageSvc,
		catalogsvc: p.CatalogSvc,
	}
}

// rollup accumulates one (date, publisher, book) grouping.
type rollup struct {
	date        time.Time
	publisherID snowflake.ID
	bookID      snowflake.ID

	playStarts     int64
	playEnds       int64
	children       map[snowflake.ID]struct{}
	watchedSeconds int64

	completionSum   float64
	completionCount int64
}

type rollupKey struct {
	date        time.Time
	publisherID snowflake.ID
	bookID      snowflake.ID
}

func (s *Service) AggregateDay(ctx context.Context, date time.Time) (int, error) {
	day := truncateToDay(date)

	events, err := s.usagesvc.EventsForDay(ctx, day)
	if err != nil {
		return 0, err
	}

	rollups, err := s.rollupEvents(ctx, events, nil)
	if err != nil {
		return 0, err
	}

	rows := make([]analyticsdomain.DailyMetric, 0, len(rollups))
	now := s.clock.Now()
	for _, r := range rollups {
		rows = append(rows, analyticsdomain.DailyMetric{
			ID:                s.genID.Generate(),
			MetricDate:        r.date,
			PublisherID:       r.publisherID,
			BookID:            r.bookID,
			PlayStarts:        r.playStarts,
			PlayEnds:          r.playEnds,
			UniqueChildren:    int64(len(r.children)),
			MinutesWatched:    roundTo(float64(r.watchedSeconds)/60, 2),
			AvgCompletionRate: r.completionRate(),
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	// Replace the whole date in one transaction so a re-run can never
	// leave a partial set visible.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("metric_date = ?", day).Delete(&analyticsdomain.DailyMetric{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("aggregated daily metrics",
		zap.Time("date", day),
		zap.Int("rows", len(rows)),
		zap.Int("events", len(events)),
	)
	return len(rows), nil
}

func (s *Service) Report(ctx context.Context, req analyticsdomain.ReportRequest) ([]analyticsdomain.ReportRow, error) {
	if req.From.IsZero() || req.To.IsZero() {
		return nil, analyticsdomain.ErrInvalidDateRange
	}
	from := truncateToDay(req.From)
	to := truncateToDay(req.To)
	if to.Before(from) {
		return nil, analyticsdomain.ErrInvalidDateRange
	}

	events, err := s.usagesvc.EventsForRange(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if req.ChildID != nil {
		events = filterEvents(events, func(e usagedomain.UsageEvent) bool {
			return e.ChildID == *req.ChildID
		})
	}
	if req.BookID != nil {
		events = filterEvents(events, func(e usagedomain.UsageEvent) bool {
			return e.BookID == *req.BookID
		})
	}

	rollups, err := s.rollupEvents(ctx, events, req.PublisherID)
	if err != nil {
		return nil, err
	}

	infos, err := s.bookInfos(ctx, events)
	if err != nil {
		return nil, err
	}

	rows := make([]analyticsdomain.ReportRow, 0, len(rollups))
	for _, r := range rollups {
		info := infos[r.bookID]
		rows = append(rows, analyticsdomain.ReportRow{
			Date:           r.date,
			PublisherID:    r.publisherID,
			PublisherName:  info.PublisherName,
			BookID:         r.bookID,
			BookTitle:      info.Title,
			MinutesWatched: roundTo(float64(r.watchedSeconds)/60, 2),
			PlayStarts:     r.playStarts,
			PlayEnds:       r.playEnds,
			UniqueChildren: int64(len(r.children)),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		if rows[i].PublisherName != rows[j].PublisherName {
			return rows[i].PublisherName < rows[j].PublisherName
		}
		return rows[i].BookTitle < rows[j].BookTitle
	})
	return rows, nil
}

func (s *Service) Metrics(ctx context.Context, from, to time.Time, publisherID *snowflake.ID) ([]analyticsdomain.DailyMetric, error) {
	if from.IsZero() || to.IsZero() || truncateToDay(to).Before(truncateToDay(from)) {
		return nil, analyticsdomain.ErrInvalidDateRange
	}

	query := s.db.WithContext(ctx).
		Where("metric_date >= ? AND metric_date <= ?", truncateToDay(from), truncateToDay(to))
	if publisherID != nil {
		query = query.Where("publisher_id = ?", *publisherID)
	}

	var metrics []analyticsdomain.DailyMetric
	if err := query.Order("metric_date DESC, publisher_id ASC, book_id ASC").Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

// rollupEvents attributes the events and accumulates their groupings.
// When publisherFilter is set, groups for other publishers are dropped.
func (s *Service) rollupEvents(ctx context.Context, events []usagedomain.UsageEvent, publisherFilter *snowflake.ID) ([]*rollup, error) {
	if len(events) == 0 {
		return nil, nil
	}

	infos, err := s.bookInfos(ctx, events)
	if err != nil {
		return nil, err
	}
	durations, err := s.catalogsvc.AssetDurations(ctx, bookIDsOf(events))
	if err != nil {
		return nil, err
	}

	attributed := attribution.Compute(events)

	groups := make(map[rollupKey]*rollup)
	order := make([]rollupKey, 0)
	for _, a := range attributed {
		e := a.Event
		info, ok := infos[e.BookID]
		if !ok {
			// The book was removed after its telemetry arrived; there
			// is no publisher to credit, so drop the event.
			s.log.Warn("dropping event for unknown book",
				zap.String("book_id", e.BookID.String()),
				zap.String("event_id", e.ID.String()),
			)
			continue
		}
		if publisherFilter != nil && info.PublisherID != *publisherFilter {
			continue
		}

		key := rollupKey{
			date:        truncateToDay(e.OccurredAt),
			publisherID: info.PublisherID,
			bookID:      e.BookID,
		}
		group, ok := groups[key]
		if !ok {
			group = &rollup{
				date:        key.date,
				publisherID: key.publisherID,
				bookID:      key.bookID,
				children:    make(map[snowflake.ID]struct{}),
			}
			groups[key] = group
			order = append(order, key)
		}

		group.children[e.ChildID] = struct{}{}
		group.watchedSeconds += a.Seconds
		switch e.Kind {
		case usagedomain.EventKindPlayStart:
			group.playStarts++
		case usagedomain.EventKindPlayEnd:
			group.playEnds++
			if e.PositionSeconds != nil {
				if duration, ok := durations[e.BookID]; ok && duration > 0 {
					ratio := float64(*e.PositionSeconds) / float64(duration)
					group.completionSum += math.Min(ratio, 1.0)
					group.completionCount++
				}
			}
		}
	}

	out := make([]*rollup, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out, nil
}

func (s *Service) bookInfos(ctx context.Context, events []usagedomain.UsageEvent) (map[snowflake.ID]catalogdomain.BookInfo, error) {
	ids := bookIDsOf(events)
	if len(ids) == 0 {
		return map[snowflake.ID]catalogdomain.BookInfo{}, nil
	}
	return s.catalogsvc.BookInfoByID(ctx, ids)
}

func (r *rollup) completionRate() float64 {
	if r.completionCount == 0 {
		return 0
	}
	return roundTo(r.completionSum/float64(r.completionCount), 4)
}

func bookIDsOf(events []usagedomain.UsageEvent) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(events))
	ids := make([]snowflake.ID, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e.BookID]; ok {
			continue
		}
		seen[e.BookID] = struct{}{}
		ids = append(ids, e.BookID)
	}
	return ids
}

func filterEvents(events []usagedomain.UsageEvent, keep func(usagedomain.UsageEvent) bool) []usagedomain.UsageEvent {
	out := events[:0:0]
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// roundTo rounds half away from zero at the given decimal precision.
func roundTo(value float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(value*scale) / scale
}
