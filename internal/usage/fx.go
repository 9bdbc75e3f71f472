package usage

import (
	"go.uber.org/fx"

	"github.com/storynest/storynest/internal/usage/service"
)

var Module = fx.Module("usage.service",
	fx.Provide(service.NewService),
)
