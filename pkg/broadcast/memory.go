package broadcast

import (
	"context"
	"sync"
)

// Option configures a MemoryBroadcaster.
type Option func(*options)

type options struct {
	replay     bool
	keepLatest bool
}

// WithReplay makes new subscribers receive the last broadcast value first.
// Used for state-like streams where a listener needs the current value on attach.
func WithReplay() Option {
	return func(o *options) { o.replay = true }
}

// WithLatestWins keeps slow subscribers attached and drops their oldest buffered
// value instead. Intended for snapshot streams where only the newest value matters.
func WithLatestWins() Option {
	return func(o *options) { o.keepLatest = true }
}

// MemoryBroadcaster is an in-process Broadcaster. All methods are safe for concurrent use.
type MemoryBroadcaster[T any] struct {
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	opts        options
	latest      *Message[T]
	closed      bool
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// NewMemoryBroadcaster creates a new in-memory broadcaster.
// A minimum buffer size of 1 is enforced.
func NewMemoryBroadcaster[T any](bufferSize int, opts ...Option) *MemoryBroadcaster[T] {
	b := &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

// Subscribe creates a new subscriber. The subscription is removed when ctx is cancelled.
// If the broadcaster is already closed, a closed subscriber is returned.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T](b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}

	if b.opts.replay && b.latest != nil {
		sub.send(*b.latest, false)
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-sub.done:
			}
		}()
	}

	return sub
}

// Broadcast sends a message to all active subscribers and records it as the latest value.
// Slow subscribers are removed unless WithLatestWins is set.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBroadcasterClosed
	}
	latest := msg
	b.latest = &latest

	var slow []*subscriber[T]
	for sub := range b.subscribers {
		if !sub.send(msg, b.opts.keepLatest) {
			slow = append(slow, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range slow {
		b.unsubscribe(sub)
	}

	return nil
}

// Latest returns the last broadcast value.
func (b *MemoryBroadcaster[T]) Latest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.latest == nil {
		var zero T
		return zero, false
	}
	return b.latest.Data, true
}

// Forget clears the latest value so new subscribers start empty.
func (b *MemoryBroadcaster[T]) Forget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = nil
}

// Len returns the number of active subscribers.
func (b *MemoryBroadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts down the broadcaster and closes all subscribers. Safe to call multiple times.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}
