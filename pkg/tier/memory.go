package tier

import (
	"context"
	"sync"

	"github.com/dmitrymomot/gatekit/pkg/broadcast"
)

// MemoryStore is an in-process RealtimeStore. Each group gets a replaying
// broadcaster so late listeners receive the current value first.
type MemoryStore struct {
	mu     sync.Mutex
	groups map[string]*broadcast.MemoryBroadcaster[Record]
	writes map[string]int
	closed bool
}

// NewMemoryStore creates an empty in-memory realtime store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: make(map[string]*broadcast.MemoryBroadcaster[Record]),
		writes: make(map[string]int),
	}
}

// Watch implements RealtimeStore.
func (m *MemoryStore) Watch(ctx context.Context, groupID string, fn func(Record)) (Unsubscribe, error) {
	if groupID == "" {
		return nil, ErrEmptyGroupID
	}
	b, err := m.group(groupID)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := b.Subscribe(watchCtx)

	go func() {
		for msg := range sub.Receive() {
			if watchCtx.Err() != nil {
				return
			}
			fn(msg.Data)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
		})
	}, nil
}

// Update implements RealtimeStore.
func (m *MemoryStore) Update(ctx context.Context, groupID string, rec Record) error {
	if groupID == "" {
		return ErrEmptyGroupID
	}
	b, err := m.group(groupID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.writes[groupID]++
	m.mu.Unlock()

	return b.Broadcast(ctx, broadcast.Message[Record]{Data: rec})
}

// Get returns the stored record for groupID.
func (m *MemoryStore) Get(groupID string) Record {
	b, err := m.group(groupID)
	if err != nil {
		return Default()
	}
	rec, _ := b.Latest()
	return rec
}

// Writes returns how many updates groupID has received.
func (m *MemoryStore) Writes(groupID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[groupID]
}

// Close detaches every listener.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, b := range m.groups {
		_ = b.Close()
	}
	clear(m.groups)
	return nil
}

func (m *MemoryStore) group(groupID string) (*broadcast.MemoryBroadcaster[Record], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	b, ok := m.groups[groupID]
	if !ok {
		b = broadcast.NewMemoryBroadcaster[Record](8, broadcast.WithReplay(), broadcast.WithLatestWins())
		_ = b.Broadcast(context.Background(), broadcast.Message[Record]{Data: Default()})
		m.groups[groupID] = b
	}
	return b, nil
}
