package contract

import (
	"go.uber.org/fx"

	"github.com/storynest/storynest/internal/contract/service"
)

var Module = fx.Module("contract.service",
	fx.Provide(service.NewService),
)
