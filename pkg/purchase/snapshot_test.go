package purchase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

func TestMemorySnapshotStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		t.Parallel()
		s := purchase.NewMemorySnapshotStore(2, time.Hour)

		_, err := s.Load(ctx, "u1")
		assert.ErrorIs(t, err, purchase.ErrSnapshotNotFound)

		now := time.Now()
		require.NoError(t, s.Save(ctx, "u1", purchase.CachedTierSnapshot{Tier: tier.Family, Timestamp: now}))
		snap, err := s.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, tier.Family, snap.Tier)
		assert.True(t, now.Equal(snap.Timestamp))
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()
		s := purchase.NewMemorySnapshotStore(2, time.Hour)
		for _, uid := range []string{"a", "b", "c"} {
			require.NoError(t, s.Save(ctx, uid, purchase.CachedTierSnapshot{Tier: tier.Premium}))
		}
		assert.Equal(t, 2, s.Len())
		_, err := s.Load(ctx, "a")
		assert.ErrorIs(t, err, purchase.ErrSnapshotNotFound)
	})

	t.Run("expires entries", func(t *testing.T) {
		t.Parallel()
		s := purchase.NewMemorySnapshotStore(2, 10*time.Millisecond)
		require.NoError(t, s.Save(ctx, "u1", purchase.CachedTierSnapshot{Tier: tier.Premium}))
		assert.Eventually(t, func() bool {
			_, err := s.Load(ctx, "u1")
			return err != nil
		}, time.Second, 5*time.Millisecond)
	})
}
