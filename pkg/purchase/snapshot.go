package purchase

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSnapshotCacheSize = 64
	DefaultSnapshotTTL       = 30 * 24 * time.Hour
)

// MemorySnapshotStore keeps snapshots in a bounded LRU with expiry.
type MemorySnapshotStore struct {
	cache *expirable.LRU[string, CachedTierSnapshot]
}

// NewMemorySnapshotStore creates a store holding up to size snapshots for ttl.
// Non-positive values fall back to the defaults.
func NewMemorySnapshotStore(size int, ttl time.Duration) *MemorySnapshotStore {
	if size <= 0 {
		size = DefaultSnapshotCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &MemorySnapshotStore{cache: expirable.NewLRU[string, CachedTierSnapshot](size, nil, ttl)}
}

// Load implements SnapshotStore.
func (s *MemorySnapshotStore) Load(_ context.Context, uid string) (CachedTierSnapshot, error) {
	snap, ok := s.cache.Get(uid)
	if !ok {
		return CachedTierSnapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}

// Save implements SnapshotStore.
func (s *MemorySnapshotStore) Save(_ context.Context, uid string, snap CachedTierSnapshot) error {
	s.cache.Add(uid, snap)
	return nil
}

// Len returns the number of live snapshots.
func (s *MemorySnapshotStore) Len() int {
	return s.cache.Len()
}
