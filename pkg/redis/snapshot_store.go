package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gatekit/pkg/purchase"
)

// SnapshotStore persists cached tier snapshots as JSON under
// {prefix}:snapshots:{uid}. It implements purchase.SnapshotStore.
type SnapshotStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSnapshotStore creates a SnapshotStore. Panics if client is nil.
func NewSnapshotStore(client redis.UniversalClient, opts ...Option) *SnapshotStore {
	if client == nil {
		panic("redis: client is required")
	}
	o := newOptions(opts)
	return &SnapshotStore{client: client, prefix: o.prefix, ttl: o.ttl}
}

func (s *SnapshotStore) key(uid string) string {
	return s.prefix + ":snapshots:" + uid
}

// Load implements purchase.SnapshotStore.
func (s *SnapshotStore) Load(ctx context.Context, uid string) (purchase.CachedTierSnapshot, error) {
	if uid == "" {
		return purchase.CachedTierSnapshot{}, purchase.ErrEmptyUserID
	}
	raw, err := s.client.Get(ctx, s.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return purchase.CachedTierSnapshot{}, purchase.ErrSnapshotNotFound
	}
	if err != nil {
		return purchase.CachedTierSnapshot{}, err
	}

	var snap purchase.CachedTierSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return purchase.CachedTierSnapshot{}, errors.Join(ErrMalformedRecord, err)
	}
	return snap, nil
}

// Save implements purchase.SnapshotStore.
func (s *SnapshotStore) Save(ctx context.Context, uid string, snap purchase.CachedTierSnapshot) error {
	if uid == "" {
		return purchase.ErrEmptyUserID
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(uid), raw, s.ttl).Err()
}
