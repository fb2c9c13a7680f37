package ads

import "time"

const (
	DefaultInterstitialCooldown = 3 * time.Minute
	DefaultMaxRetryAttempts     = 3
	DefaultRetryBaseDelay       = 5 * time.Second
	DefaultRetryMultiplier      = 3.0
	DefaultPendingTTL           = 10 * time.Minute
)

// Config holds the per ad type settings.
type Config struct {
	InterstitialUnitID   string        `env:"ADS_INTERSTITIAL_UNIT_ID"`
	RewardedUnitID       string        `env:"ADS_REWARDED_UNIT_ID"`
	InterstitialCooldown time.Duration `env:"ADS_INTERSTITIAL_COOLDOWN" envDefault:"3m"`
	MaxRetryAttempts     int           `env:"ADS_MAX_RETRY_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay       time.Duration `env:"ADS_RETRY_BASE_DELAY" envDefault:"5s"`
	RetryMultiplier      float64       `env:"ADS_RETRY_MULTIPLIER" envDefault:"3"`
	RetryMaxDelay        time.Duration `env:"ADS_RETRY_MAX_DELAY"`
	RetryJitter          float64       `env:"ADS_RETRY_JITTER"`
	PendingTTL           time.Duration `env:"ADS_PENDING_TTL" envDefault:"10m"`
}

// DefaultConfig returns the defaults without unit ids.
func DefaultConfig() Config {
	return Config{
		InterstitialCooldown: DefaultInterstitialCooldown,
		MaxRetryAttempts:     DefaultMaxRetryAttempts,
		RetryBaseDelay:       DefaultRetryBaseDelay,
		RetryMultiplier:      DefaultRetryMultiplier,
		PendingTTL:           DefaultPendingTTL,
	}
}

// Policy is the retry and cooldown behavior of one slot.
type Policy struct {
	Backoff    BackoffStrategy
	MaxRetries int
	// Cooldown is the minimum time between two shows. Zero disables it.
	Cooldown time.Duration
}

// Policy builds the slot policy for kind. Only interstitials have a cooldown.
// A multiplier of 1 without jitter retries at a fixed interval.
func (c Config) Policy(kind Kind) Policy {
	p := Policy{
		Backoff:    c.backoff(),
		MaxRetries: c.MaxRetryAttempts,
	}
	if kind == Interstitial {
		p.Cooldown = c.InterstitialCooldown
	}
	return p
}

func (c Config) backoff() BackoffStrategy {
	if c.RetryMultiplier == 1 && c.RetryJitter == 0 {
		return FixedBackoff{Interval: c.RetryBaseDelay}
	}
	return ExponentialBackoff{
		InitialInterval: c.RetryBaseDelay,
		MaxInterval:     c.RetryMaxDelay,
		Multiplier:      c.RetryMultiplier,
		JitterFactor:    c.RetryJitter,
	}
}

// UnitID returns the configured unit id for kind.
func (c Config) UnitID(kind Kind) string {
	if kind == Rewarded {
		return c.RewardedUnitID
	}
	return c.InterstitialUnitID
}
