package payout

import (
	"go.uber.org/fx"

	"github.com/storynest/storynest/internal/payout/service"
)

var Module = fx.Module("payout.service",
	fx.Provide(service.NewService),
)
