package royalty

import (
	"go.uber.org/fx"

	"github.com/storynest/storynest/internal/royalty/service"
)

var Module = fx.Module("royalty.service",
	fx.Provide(service.NewService),
)
