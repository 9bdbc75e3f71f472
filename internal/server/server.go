package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/storynest/storynest/internal/analytics"
	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	"github.com/storynest/storynest/internal/catalog"
	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	"github.com/storynest/storynest/internal/config"
	"github.com/storynest/storynest/internal/contract"
	contractdomain "github.com/storynest/storynest/internal/contract/domain"
	"github.com/storynest/storynest/internal/locks"
	"github.com/storynest/storynest/internal/observability"
	obsmiddleware "github.com/storynest/storynest/internal/observability/logger"
	obsmetrics "github.com/storynest/storynest/internal/observability/metrics"
	obstracing "github.com/storynest/storynest/internal/observability/tracing"
	"github.com/storynest/storynest/internal/payment"
	"github.com/storynest/storynest/internal/payout"
	payoutdomain "github.com/storynest/storynest/internal/payout/domain"
	"github.com/storynest/storynest/internal/royalty"
	royaltydomain "github.com/storynest/storynest/internal/royalty/domain"
	"github.com/storynest/storynest/internal/usage"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

var Module = fx.Module("http.server",
	catalog.Module,
	usage.Module,
	contract.Module,
	analytics.Module,
	royalty.Module,
	locks.Module,
	payment.Module,
	payout.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	catalogSvc   catalogdomain.Service
	usageSvc     usagedomain.Service
	contractSvc  contractdomain.Service
	analyticsSvc analyticsdomain.Service
	royaltySvc   royaltydomain.Service
	payoutSvc    payoutdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	CatalogSvc   catalogdomain.Service
	UsageSvc     usagedomain.Service
	ContractSvc  contractdomain.Service
	AnalyticsSvc analyticsdomain.Service
	RoyaltySvc   royaltydomain.Service
	PayoutSvc    payoutdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		catalogSvc:   p.CatalogSvc,
		usageSvc:     p.UsageSvc,
		contractSvc:  p.ContractSvc,
		analyticsSvc: p.AnalyticsSvc,
		royaltySvc:   p.RoyaltySvc,
		payoutSvc:    p.PayoutSvc,
	}
}

// RegisterAPIRoutes mounts the versioned API surface.
func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/usage-events", s.IngestUsageEvent)
	v1.GET("/usage-events", s.ListUsageEvents)
	v1.GET("/usage-events/:id", s.GetUsageEvent)

	v1.GET("/reports/usage", s.UsageReport)
	v1.GET("/metrics/daily", s.DailyMetrics)
	v1.GET("/royalties/preview", s.RoyaltyPreview)

	v1.POST("/publishers/:publisher_id/contracts", s.CreateContract)
	v1.GET("/publishers/:publisher_id/contracts", s.ListPublisherContracts)
	v1.GET("/contracts/:id", s.GetContract)
	v1.PATCH("/contracts/:id/status", s.UpdateContractStatus)

	v1.POST("/payout-periods", s.CreatePayoutPeriod)
	v1.GET("/payout-periods", s.ListPayoutPeriods)
	v1.GET("/payout-periods/:id", s.GetPayoutPeriod)
	v1.GET("/payout-periods/:id/statements", s.ListPeriodStatements)
	v1.POST("/payout-periods/:id/generate", s.GeneratePayoutPeriod)
	v1.POST("/payout-periods/:id/pay", s.PayPayoutPeriod)
}
