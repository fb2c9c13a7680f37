package ads

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// Option configures a Slot or a Manager.
type Option func(*options)

type options struct {
	log     *slog.Logger
	clock   clockwork.Clock
	metrics *Metrics
}

func newOptions(opts []Option) options {
	o := options{
		log:   slog.Default(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock replaces the clock used for backoff, cooldown and pending TTL timers.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to unregistered counters.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
