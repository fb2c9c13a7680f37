package tier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/gatekit/pkg/logger"
)

// Unsubscribe detaches a realtime listener. Implementations must be idempotent.
type Unsubscribe func()

// RealtimeStore is the shared backend holding the group tier record.
type RealtimeStore interface {
	// Watch attaches a value listener for groupID. The current value (Default when
	// the group has no stored tier) is delivered first, then every change.
	Watch(ctx context.Context, groupID string, fn func(Record)) (Unsubscribe, error)

	// Update writes the tier fields of the group record without touching other fields.
	// Only the payment webhook process and the reconciler may call it.
	Update(ctx context.Context, groupID string, rec Record) error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store keeps exactly one realtime listener attached for the active group and
// exposes the latest authoritative tier.
type Store struct {
	rt  RealtimeStore
	log *slog.Logger

	mu       sync.Mutex
	groupID  string
	current  Record
	received bool
	unsub    Unsubscribe
	gen      uint64
}

// NewStore creates a Store reading from rt. Panics if rt is nil.
func NewStore(rt RealtimeStore, opts ...StoreOption) *Store {
	if rt == nil {
		panic("tier: RealtimeStore is required")
	}
	s := &Store{
		rt:      rt,
		log:     slog.Default(),
		current: Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("tier_store"))
	return s
}

// Subscribe attaches the listener for groupID and calls onChange with every
// authoritative value. Subscribing to the active group again is a no-op;
// subscribing to another group detaches the old listener first.
func (s *Store) Subscribe(ctx context.Context, groupID string, onChange func(Record)) error {
	if groupID == "" {
		return ErrEmptyGroupID
	}

	s.mu.Lock()
	if s.groupID == groupID && s.unsub != nil {
		s.mu.Unlock()
		return nil
	}
	old := s.detachLocked()
	s.gen++
	gen := s.gen
	s.groupID = groupID
	s.mu.Unlock()

	if old != nil {
		old()
	}

	unsub, err := s.rt.Watch(ctx, groupID, func(rec Record) {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.current = rec
		s.received = true
		s.mu.Unlock()

		s.log.DebugContext(ctx, "tier changed", logger.GroupID(groupID), logger.Tier(rec.Tier))
		if onChange != nil {
			onChange(rec)
		}
	})
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.groupID = ""
		}
		s.mu.Unlock()
		s.log.WarnContext(ctx, "tier listener attach failed", logger.GroupID(groupID), logger.Error(err))
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		// Unsubscribed or re-subscribed while Watch was attaching.
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()

	s.log.DebugContext(ctx, "tier listener attached", logger.GroupID(groupID))
	return nil
}

// Unsubscribe detaches the active listener and resets the tier to free.
// It is synchronous and safe to call any number of times.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	s.gen++
	unsub := s.detachLocked()
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Current returns the latest tier record. ok is false until a live listener has
// delivered a value; callers then fall back to a cached tier.
func (s *Store) Current() (rec Record, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.received
}

// GroupID returns the group the listener is attached to, if any.
func (s *Store) GroupID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

// Must be called with lock held.
func (s *Store) detachLocked() Unsubscribe {
	unsub := s.unsub
	s.unsub = nil
	s.groupID = ""
	s.current = Default()
	s.received = false
	return unsub
}
