package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PayoutConfig carries the rate card used by the royalty calculator.
// Amounts are integer minor currency units; bps are basis points (1/100 %).
type PayoutConfig struct {
	PricePerMinuteCents int64  `mapstructure:"pricePerMinuteCents"`
	PlatformFeeBps      int64  `mapstructure:"platformFeeBps"`
	Currency            string `mapstructure:"currency"`
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		PricePerMinuteCents: envInt64("PAYOUT_PRICE_PER_MINUTE_CENTS", 2),
		PlatformFeeBps:      envInt64("PAYOUT_PLATFORM_FEE_BPS", 1500),
		Currency:            strings.ToLower(strings.TrimSpace(envString("PAYOUT_CURRENCY", "usd"))),
	}
}

// PayoutConfigHolder exposes the current rate card and hot-reloads it when
// a mounted payout.yml changes. Env-derived defaults apply when no file exists.
type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

func NewPayoutConfigHolder() (*PayoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("payout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storynest/config")
	v.AddConfigPath("/etc/storynest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STORYNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayoutConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("payout.pricePerMinuteCents", defaults.PricePerMinuteCents)
		v.SetDefault("payout.platformFeeBps", defaults.PlatformFeeBps)
		v.SetDefault("payout.currency", defaults.Currency)
	}

	var cfg PayoutConfig
	if err := v.UnmarshalKey("payout", &cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults(defaults)
	if err := validatePayoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutConfig
		if err := v.UnmarshalKey("payout", &updated); err != nil {
			log.Printf("[payout-config] reload failed: %v", err)
			return
		}
		updated = updated.withDefaults(defaults)
		if err := validatePayoutConfig(updated); err != nil {
			log.Printf("[payout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// StaticPayoutConfigHolder wraps a fixed rate card with no file watch.
func StaticPayoutConfigHolder(cfg PayoutConfig) *PayoutConfigHolder {
	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Current returns the active rate card.
func (h *PayoutConfigHolder) Current() PayoutConfig {
	if h == nil {
		return DefaultPayoutConfig()
	}
	if cfg, ok := h.current.Load().(PayoutConfig); ok {
		return cfg
	}
	return DefaultPayoutConfig()
}

func (c PayoutConfig) withDefaults(defaults PayoutConfig) PayoutConfig {
	if c.PricePerMinuteCents == 0 {
		c.PricePerMinuteCents = defaults.PricePerMinuteCents
	}
	if c.PlatformFeeBps == 0 {
		c.PlatformFeeBps = defaults.PlatformFeeBps
	}
	if strings.TrimSpace(c.Currency) == "" {
		c.Currency = defaults.Currency
	}
	c.Currency = strings.ToLower(strings.TrimSpace(c.Currency))
	return c
}

func validatePayoutConfig(cfg PayoutConfig) error {
	if cfg.PricePerMinuteCents < 0 {
		return errors.New("payout pricePerMinuteCents must not be negative")
	}
	if cfg.PlatformFeeBps < 0 || cfg.PlatformFeeBps > 10_000 {
		return errors.New("payout platformFeeBps must be within 0..10000")
	}
	if len(cfg.Currency) != 3 {
		return errors.New("payout currency must be a 3-letter code")
	}
	return nil
}

func envString(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func envInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
