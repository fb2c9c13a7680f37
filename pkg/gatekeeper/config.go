package gatekeeper

import (
	"time"

	"github.com/dmitrymomot/gatekit/pkg/ads"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

const (
	DefaultTierResolveTimeout  = 5 * time.Second
	DefaultPurchaseSyncTimeout = 30 * time.Second
)

// Config is the engine configuration, loaded from the environment.
type Config struct {
	EntitlementID       string          `env:"GATE_ENTITLEMENT_ID,required"`
	ProductTiers        tier.ProductMap `env:"GATE_PRODUCT_TIERS"`
	PurchaseAPIKey      string          `env:"GATE_PURCHASE_API_KEY"`
	TierResolveTimeout  time.Duration   `env:"GATE_TIER_RESOLVE_TIMEOUT" envDefault:"5s"`
	PurchaseSyncTimeout time.Duration   `env:"GATE_PURCHASE_SYNC_TIMEOUT" envDefault:"30s"`

	Ads ads.Config
}

func (c Config) withDefaults() Config {
	if c.TierResolveTimeout <= 0 {
		c.TierResolveTimeout = DefaultTierResolveTimeout
	}
	if c.PurchaseSyncTimeout <= 0 {
		c.PurchaseSyncTimeout = DefaultPurchaseSyncTimeout
	}
	defaults := ads.DefaultConfig()
	if c.Ads.InterstitialCooldown <= 0 {
		c.Ads.InterstitialCooldown = defaults.InterstitialCooldown
	}
	if c.Ads.MaxRetryAttempts <= 0 {
		c.Ads.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if c.Ads.RetryBaseDelay <= 0 {
		c.Ads.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if c.Ads.RetryMultiplier <= 0 {
		c.Ads.RetryMultiplier = defaults.RetryMultiplier
	}
	if c.Ads.PendingTTL <= 0 {
		c.Ads.PendingTTL = defaults.PendingTTL
	}
	return c
}
