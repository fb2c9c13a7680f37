package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// ID identifies the subscription in logs.
	ID() string

	// Receive returns a channel for receiving broadcast messages.
	Receive() <-chan Message[T]

	// Close closes the subscriber and releases resources.
	// After Close, the receive channel is closed and no more messages are delivered.
	// Close is idempotent.
	Close() error
}

// Broadcaster sends messages to multiple subscribers.
// Implementations drop messages for slow consumers rather than blocking.
type Broadcaster[T any] interface {
	// Subscribe creates a subscriber that lives until it is closed or ctx is cancelled.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast sends a message to all active subscribers.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Latest returns the last broadcast value, if any.
	Latest() (T, bool)

	// Close shuts down the broadcaster and closes all subscribers.
	Close() error
}

type subscriber[T any] struct {
	id     string
	ch     chan Message[T]
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{
		id:   uuid.NewString(),
		ch:   make(chan Message[T], bufferSize),
		done: make(chan struct{}),
	}
}

func (s *subscriber[T]) ID() string {
	return s.id
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		close(s.done)
		s.closed = true
	}
	return nil
}

// send delivers msg without blocking. When the buffer is full and replace is set,
// the oldest buffered message is dropped so the newest value always lands.
func (s *subscriber[T]) send(msg Message[T], replace bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	for {
		select {
		case s.ch <- msg:
			return true
		default:
		}
		if !replace {
			return false
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
