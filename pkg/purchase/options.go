package purchase

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSyncTimeout bounds how long a successful purchase waits for the
// authoritative tier to catch up before isPurchasing resets.
const DefaultSyncTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces the wall clock used for the purchase sync timer.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSyncTimeout overrides DefaultSyncTimeout.
func WithSyncTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.syncTimeout = d
		}
	}
}

// WithSnapshotStore sets where cached tier snapshots are persisted.
// Defaults to an in-memory LRU.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(c *Client) {
		if s != nil {
			c.snapshots = s
		}
	}
}

// WithPurchasingObserver registers fn to be called whenever isPurchasing flips.
// fn runs outside the client lock and may call back into the client.
func WithPurchasingObserver(fn func(purchasing bool)) Option {
	return func(c *Client) {
		c.onPurchasing = fn
	}
}
