package migration

import (
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	contractdomain "github.com/storynest/storynest/internal/contract/domain"
	payoutdomain "github.com/storynest/storynest/internal/payout/domain"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// The versioned SQL migrations target postgres. Other dialects
		// (sqlite in development) fall back to schema auto-migration.
		if !strings.EqualFold(conn.Dialector.Name(), "postgres") {
			return conn.AutoMigrate(
				&catalogdomain.Publisher{},
				&catalogdomain.Book{},
				&catalogdomain.VideoAsset{},
				&catalogdomain.ChildProfile{},
				&catalogdomain.PlaybackSession{},
				&usagedomain.UsageEvent{},
				&analyticsdomain.DailyMetric{},
				&contractdomain.PartnershipContract{},
				&payoutdomain.PayoutPeriod{},
				&payoutdomain.PublisherStatement{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
