package ads_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/gatekit/pkg/ads"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		backoff  ads.ExponentialBackoff
		attempts []int
		want     []time.Duration
	}{
		{
			name:     "default schedule",
			backoff:  ads.ExponentialBackoff{},
			attempts: []int{0, 1, 2},
			want:     []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second},
		},
		{
			name: "custom values with max cap",
			backoff: ads.ExponentialBackoff{
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2,
			},
			attempts: []int{0, 1, 2, 3, 4},
			want: []time.Duration{
				500 * time.Millisecond,
				time.Second,
				2 * time.Second,
				4 * time.Second,
				5 * time.Second,
			},
		},
		{
			name:     "negative attempt returns zero",
			backoff:  ads.ExponentialBackoff{},
			attempts: []int{-1},
			want:     []time.Duration{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for i, attempt := range tt.attempts {
				assert.Equal(t, tt.want[i], tt.backoff.NextInterval(attempt), "attempt %d", attempt)
			}
		})
	}
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	t.Parallel()
	b := ads.ExponentialBackoff{InitialInterval: 10 * time.Second, Multiplier: 1, JitterFactor: 0.1}
	for range 100 {
		d := b.NextInterval(0)
		assert.GreaterOrEqual(t, d, 9*time.Second)
		assert.LessOrEqual(t, d, 11*time.Second)
	}
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()
	b := ads.FixedBackoff{Interval: time.Second}
	assert.Equal(t, time.Second, b.NextInterval(0))
	assert.Equal(t, time.Second, b.NextInterval(7))
	assert.Zero(t, b.NextInterval(-1))
}

func TestConfig_Policy(t *testing.T) {
	t.Parallel()
	cfg := ads.DefaultConfig()

	inter := cfg.Policy(ads.Interstitial)
	assert.Equal(t, ads.DefaultInterstitialCooldown, inter.Cooldown)
	assert.Equal(t, 3, inter.MaxRetries)
	assert.Equal(t, 15*time.Second, inter.Backoff.NextInterval(1))

	rewarded := cfg.Policy(ads.Rewarded)
	assert.Zero(t, rewarded.Cooldown)
}

func TestConfig_PolicyBackoff(t *testing.T) {
	t.Parallel()

	t.Run("unit multiplier retries at a fixed interval", func(t *testing.T) {
		t.Parallel()
		cfg := ads.DefaultConfig()
		cfg.RetryMultiplier = 1
		cfg.RetryBaseDelay = 2 * time.Second

		p := cfg.Policy(ads.Rewarded)
		assert.IsType(t, ads.FixedBackoff{}, p.Backoff)
		assert.Equal(t, 2*time.Second, p.Backoff.NextInterval(0))
		assert.Equal(t, 2*time.Second, p.Backoff.NextInterval(2))
	})

	t.Run("max delay and jitter reach the schedule", func(t *testing.T) {
		t.Parallel()
		cfg := ads.DefaultConfig()
		cfg.RetryMaxDelay = 20 * time.Second
		cfg.RetryJitter = 0.1

		b := cfg.Policy(ads.Interstitial).Backoff
		for range 50 {
			d := b.NextInterval(0)
			assert.GreaterOrEqual(t, d, 4500*time.Millisecond)
			assert.LessOrEqual(t, d, 5500*time.Millisecond)
			assert.LessOrEqual(t, b.NextInterval(2), 20*time.Second)
		}
	})
}
