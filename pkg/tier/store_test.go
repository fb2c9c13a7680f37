package tier_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

const waitFor = time.Second

type recorder struct {
	mu   sync.Mutex
	seen []tier.Record
}

func (r *recorder) record(rec tier.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rec)
}

func (r *recorder) last() (tier.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return tier.Record{}, false
	}
	return r.seen[len(r.seen)-1], true
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func lastTierIs(r *recorder, want tier.Tier) func() bool {
	return func() bool {
		rec, ok := r.last()
		return ok && rec.Tier == want
	}
}

// countingStore counts attached listeners on top of a MemoryStore.
type countingStore struct {
	*tier.MemoryStore
	active  atomic.Int32
	watches atomic.Int32
	failFor string
}

func (c *countingStore) Watch(ctx context.Context, groupID string, fn func(tier.Record)) (tier.Unsubscribe, error) {
	if groupID == c.failFor {
		return nil, errors.New("permission denied")
	}
	unsub, err := c.MemoryStore.Watch(ctx, groupID, fn)
	if err != nil {
		return nil, err
	}
	c.watches.Add(1)
	c.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.active.Add(-1)
			unsub()
		})
	}, nil
}

func newStore(t *testing.T) (*tier.Store, *countingStore) {
	t.Helper()
	rt := &countingStore{MemoryStore: tier.NewMemoryStore()}
	t.Cleanup(func() { _ = rt.Close() })
	return tier.NewStore(rt, tier.WithLogger(logger.Discard())), rt
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delivers current value and changes", func(t *testing.T) {
		t.Parallel()
		store, rt := newStore(t)
		var rec recorder

		require.NoError(t, store.Subscribe(ctx, "g1", rec.record))
		assert.Eventually(t, lastTierIs(&rec, tier.Free), waitFor, 5*time.Millisecond)

		require.NoError(t, rt.Update(ctx, "g1", tier.Record{Tier: tier.Family, UpdatedAt: time.Now()}))
		assert.Eventually(t, lastTierIs(&rec, tier.Family), waitFor, 5*time.Millisecond)

		current, ok := store.Current()
		assert.True(t, ok)
		assert.Equal(t, tier.Family, current.Tier)
		assert.Equal(t, "g1", store.GroupID())
	})

	t.Run("same group is a no-op", func(t *testing.T) {
		t.Parallel()
		store, rt := newStore(t)

		require.NoError(t, store.Subscribe(ctx, "g1", nil))
		require.NoError(t, store.Subscribe(ctx, "g1", nil))
		assert.Equal(t, int32(1), rt.watches.Load())
		assert.Equal(t, int32(1), rt.active.Load())
	})

	t.Run("switching groups keeps one listener", func(t *testing.T) {
		t.Parallel()
		store, rt := newStore(t)
		var rec recorder

		require.NoError(t, rt.Update(ctx, "g2", tier.Record{Tier: tier.Premium}))
		require.NoError(t, store.Subscribe(ctx, "g1", rec.record))
		require.NoError(t, store.Subscribe(ctx, "g2", rec.record))

		assert.Equal(t, int32(1), rt.active.Load())
		assert.Eventually(t, lastTierIs(&rec, tier.Premium), waitFor, 5*time.Millisecond)

		n := rec.len()
		require.NoError(t, rt.Update(ctx, "g1", tier.Record{Tier: tier.Family}))
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, n, rec.len(), "old group changes must not reach the callback")
	})

	t.Run("empty group is rejected", func(t *testing.T) {
		t.Parallel()
		store, _ := newStore(t)
		assert.ErrorIs(t, store.Subscribe(ctx, "", nil), tier.ErrEmptyGroupID)
	})

	t.Run("attach failure leaves store detached", func(t *testing.T) {
		t.Parallel()
		store, rt := newStore(t)
		rt.failFor = "denied"

		require.Error(t, store.Subscribe(ctx, "denied", nil))
		assert.Empty(t, store.GroupID())
		_, ok := store.Current()
		assert.False(t, ok)
	})
}

func TestStore_Unsubscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resets to free and silences callbacks", func(t *testing.T) {
		t.Parallel()
		store, rt := newStore(t)
		var rec recorder

		require.NoError(t, rt.Update(ctx, "g1", tier.Record{Tier: tier.Family}))
		require.NoError(t, store.Subscribe(ctx, "g1", rec.record))
		assert.Eventually(t, lastTierIs(&rec, tier.Family), waitFor, 5*time.Millisecond)

		store.Unsubscribe()
		assert.Equal(t, int32(0), rt.active.Load())

		current, ok := store.Current()
		assert.False(t, ok)
		assert.Equal(t, tier.Free, current.Tier)
		assert.Empty(t, store.GroupID())

		n := rec.len()
		require.NoError(t, rt.Update(ctx, "g1", tier.Record{Tier: tier.Premium}))
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, n, rec.len())
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		store, rt := newStore(t)

		store.Unsubscribe()
		require.NoError(t, store.Subscribe(ctx, "g1", nil))
		store.Unsubscribe()
		store.Unsubscribe()
		assert.Equal(t, int32(0), rt.active.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := tier.NewMemoryStore()
	assert.Equal(t, tier.Free, m.Get("g1").Tier)

	require.NoError(t, m.Update(ctx, "g1", tier.Record{Tier: tier.Premium}))
	assert.Equal(t, tier.Premium, m.Get("g1").Tier)
	assert.Equal(t, 1, m.Writes("g1"))

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Update(ctx, "g1", tier.Record{Tier: tier.Free}), tier.ErrStoreClosed)
	_, err := m.Watch(ctx, "g1", func(tier.Record) {})
	assert.ErrorIs(t, err, tier.ErrStoreClosed)
}
