package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/config"
	contractdomain "github.com/storynest/storynest/internal/contract/domain"
	royaltydomain "github.com/storynest/storynest/internal/royalty/domain"
	"github.com/storynest/storynest/internal/usage/attribution"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

type ServiceParam struct {
	fx.In

	Log          *zap.Logger
	UsageSvc     usagedomain.Service
	CatalogSvc   catalogdomain.Service
	ContractSvc  contractdomain.Service
	PayoutConfig *config.PayoutConfigHolder
}

type Service struct {
	log *zap.Logger

	usagesvc     usagedomain.Service
	catalogsvc   catalogdomain.Service
	contractsvc  contractdomain.Service
	payoutConfig *config.PayoutConfigHolder
}

func NewService(p ServiceParam) royaltydomain.Service {
	return &Service{
		log:          p.Log.Named("royalty.service"),
		usagesvc:     p.UsageSvc,
		catalogsvc:   p.CatalogSvc,
		contractsvc:  p.ContractSvc,
		payoutConfig: p.PayoutConfig,
	}
}

// publisherAccum collects one publisher's usage before the money math.
type publisherAccum struct {
	publisherID   snowflake.ID
	publisherName string

	playStarts     int64
	playEnds       int64
	children       map[snowflake.ID]struct{}
	watchedSeconds int64

	bookSeconds map[snowflake.ID]int64
	bookOrder   []snowflake.ID
}

func (s *Service) Calculate(ctx context.Context, from, to time.Time) ([]royaltydomain.Calculation, error) {
	from = truncateToDay(from)
	to = truncateToDay(to)
	if from.IsZero() || to.Before(from) {
		return nil, royaltydomain.ErrInvalidDateRange
	}

	events, err := s.usagesvc.EventsForRange(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	infos, err := s.catalogsvc.BookInfoByID(ctx, bookIDsOf(events))
	if err != nil {
		return nil, err
	}

	attributed := attribution.Compute(events)

	accums := make(map[snowflake.ID]*publisherAccum)
	order := make([]snowflake.ID, 0)
	for _, a := range attributed {
		e := a.Event
		info, ok := infos[e.BookID]
		if !ok {
			continue
		}

		accum, ok := accums[info.PublisherID]
		if !ok {
			accum = &publisherAccum{
				publisherID:   info.PublisherID,
				publisherName: info.PublisherName,
				children:      make(map[snowflake.ID]struct{}),
				bookSeconds:   make(map[snowflake.ID]int64),
			}
			accums[info.PublisherID] = accum
			order = append(order, info.PublisherID)
		}

		accum.children[e.ChildID] = struct{}{}
		accum.watchedSeconds += a.Seconds
		if _, seen := accum.bookSeconds[e.BookID]; !seen {
			accum.bookOrder = append(accum.bookOrder, e.BookID)
		}
		accum.bookSeconds[e.BookID] += a.Seconds
		switch e.Kind {
		case usagedomain.EventKindPlayStart:
			accum.playStarts++
		case usagedomain.EventKindPlayEnd:
			accum.playEnds++
		}
	}

	cfg := s.payoutConfig.Current()

	out := make([]royaltydomain.Calculation, 0, len(order))
	for _, publisherID := range order {
		accum := accums[publisherID]

		calc, err := s.moneyFor(ctx, accum, infos, cfg, to)
		if err != nil {
			return nil, err
		}
		out = append(out, calc)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PublisherName != out[j].PublisherName {
			return out[i].PublisherName < out[j].PublisherName
		}
		return out[i].PublisherID < out[j].PublisherID
	})
	return out, nil
}

// moneyFor applies the rate card to one publisher's accumulated usage.
// Each step rounds independently so downstream figures reconcile with
// published statements to the cent.
func (s *Service) moneyFor(
	ctx context.Context,
	accum *publisherAccum,
	infos map[snowflake.ID]catalogdomain.BookInfo,
	cfg config.PayoutConfig,
	periodEnd time.Time,
) (royaltydomain.Calculation, error) {

	minutes := roundTo(float64(accum.watchedSeconds)/60, 2)
	gross := roundCents(minutes * float64(cfg.PricePerMinuteCents))
	fee := roundCents(float64(gross) * float64(cfg.PlatformFeeBps) / 10000)
	net := gross - fee
	if net < 0 {
		net = 0
	}

	bps, err := s.contractsvc.ResolveRevShareBps(ctx, accum.publisherID, periodEnd)
	if err != nil {
		return royaltydomain.Calculation{}, err
	}
	payout := roundCents(float64(net) * float64(bps) / 10000)

	breakdown := make([]royaltydomain.BookBreakdown, 0, len(accum.bookOrder))
	for _, bookID := range accum.bookOrder {
		bookMinutes := roundTo(float64(accum.bookSeconds[bookID])/60, 2)
		breakdown = append(breakdown, royaltydomain.BookBreakdown{
			BookID:            bookID,
			BookTitle:         infos[bookID].Title,
			MinutesWatched:    bookMinutes,
			GrossRevenueCents: roundCents(bookMinutes * float64(cfg.PricePerMinuteCents)),
		})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].BookTitle != breakdown[j].BookTitle {
			return breakdown[i].BookTitle < breakdown[j].BookTitle
		}
		return breakdown[i].BookID < breakdown[j].BookID
	})

	return royaltydomain.Calculation{
		PublisherID:       accum.publisherID,
		PublisherName:     accum.publisherName,
		MinutesWatched:    minutes,
		PlayStarts:        accum.playStarts,
		PlayEnds:          accum.playEnds,
		UniqueChildren:    int64(len(accum.children)),
		GrossRevenueCents: gross,
		PlatformFeeCents:  fee,
		NetRevenueCents:   net,
		RevShareBps:       bps,
		PayoutAmountCents: payout,
		Breakdown:         breakdown,
	}, nil
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

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// roundCents rounds half away from zero to an integer minor unit.
func roundCents(value float64) int64 {
	return int64(math.Round(value))
}

func roundTo(value float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(value*scale) / scale
}
