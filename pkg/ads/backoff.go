package ads

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy calculates the delay before a failed ad load is retried.
// Implementations should be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay for the given attempt. Attempt starts at 0
	// for the first retry.
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay as InitialInterval * Multiplier^attempt.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	// MaxInterval caps the delay. Zero means uncapped.
	MaxInterval  time.Duration
	Multiplier   float64
	JitterFactor float64
}

// NextInterval implements BackoffStrategy.
// Formula: min(InitialInterval * Multiplier^attempt * (1 ± JitterFactor), MaxInterval)
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial == 0 {
		initial = DefaultRetryBaseDelay
	}

	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = DefaultRetryMultiplier
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt))

	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}

	if e.MaxInterval > 0 && interval > float64(e.MaxInterval) {
		interval = float64(e.MaxInterval)
	}

	return time.Duration(interval)
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
}

// NextInterval implements BackoffStrategy.
func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoffStrategy returns the 5s, 15s, 45s schedule.
func DefaultBackoffStrategy() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: DefaultRetryBaseDelay,
		Multiplier:      DefaultRetryMultiplier,
	}
}
