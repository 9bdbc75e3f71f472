package payment

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/storynest/storynest/internal/config"
	"github.com/storynest/storynest/internal/payment/adapters"
	"github.com/storynest/storynest/internal/payment/adapters/stripe"
	"github.com/storynest/storynest/internal/payment/domain"
)

// Provider exposes the configured transfer adapter, if any. A nil
// adapter means payouts run in mark-paid-without-transfer mode.
type Provider struct {
	adapter domain.TransferAdapter
}

func (p *Provider) Adapter() domain.TransferAdapter {
	if p == nil {
		return nil
	}
	return p.adapter
}

// ProviderWithAdapter wraps an explicit adapter, bypassing config.
func ProviderWithAdapter(adapter domain.TransferAdapter) *Provider {
	return &Provider{adapter: adapter}
}

func NewProvider(cfg config.Config, log *zap.Logger) (*Provider, error) {
	registry := adapters.NewRegistry(stripe.NewFactory())

	secretKey := strings.TrimSpace(cfg.StripeSecretKey)
	if secretKey == "" {
		log.Named("payment").Info("no transfer provider configured; payouts will be marked paid without transfers")
		return &Provider{}, nil
	}

	adapter, err := registry.NewAdapter("stripe", secretKey)
	if err != nil {
		return nil, err
	}
	log.Named("payment").Info("transfer provider configured", zap.String("provider", adapter.Provider()))
	return &Provider{adapter: adapter}, nil
}

var Module = fx.Module("payment",
	fx.Provide(NewProvider),
)
