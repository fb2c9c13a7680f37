package gatekeeper_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekit/pkg/gatekeeper"
	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/statemachine"
)

func TestSequencer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resolves in order", func(t *testing.T) {
		t.Parallel()
		var (
			mu   sync.Mutex
			seen []gatekeeper.Phase
		)
		s := gatekeeper.NewSequencer(logger.Discard(), func(_, to gatekeeper.Phase) {
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()
		})

		assert.Equal(t, gatekeeper.PhaseIdle, s.Phase())
		assert.False(t, s.Ready())

		require.NoError(t, s.BeginIdentity(ctx))
		assert.True(t, s.Resolving())
		require.NoError(t, s.IdentityResolved(ctx))
		assert.True(t, s.Resolving())
		require.NoError(t, s.TierResolved(ctx))
		assert.True(t, s.Ready())
		assert.False(t, s.Resolving())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []gatekeeper.Phase{
			gatekeeper.PhaseResolvingIdentity,
			gatekeeper.PhaseResolvingTier,
			gatekeeper.PhaseReady,
		}, seen)
	})

	t.Run("tier cannot resolve before identity", func(t *testing.T) {
		t.Parallel()
		s := gatekeeper.NewSequencer(logger.Discard(), nil)

		require.NoError(t, s.BeginIdentity(ctx))
		err := s.TierResolved(ctx)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.Equal(t, gatekeeper.PhaseResolvingIdentity, s.Phase())
	})

	t.Run("group change returns to resolving tier", func(t *testing.T) {
		t.Parallel()
		s := gatekeeper.NewSequencer(logger.Discard(), nil)
		require.NoError(t, s.BeginIdentity(ctx))
		require.NoError(t, s.IdentityResolved(ctx))

		assert.Error(t, s.GroupChanged(ctx))
		require.NoError(t, s.TierResolved(ctx))
		require.NoError(t, s.GroupChanged(ctx))
		assert.Equal(t, gatekeeper.PhaseResolvingTier, s.Phase())
		assert.False(t, s.Ready())
	})

	t.Run("identify restarts from any phase", func(t *testing.T) {
		t.Parallel()
		s := gatekeeper.NewSequencer(logger.Discard(), nil)
		require.NoError(t, s.BeginIdentity(ctx))
		require.NoError(t, s.IdentityResolved(ctx))
		require.NoError(t, s.TierResolved(ctx))

		require.NoError(t, s.BeginIdentity(ctx))
		assert.Equal(t, gatekeeper.PhaseResolvingIdentity, s.Phase())
	})

	t.Run("reset returns to idle", func(t *testing.T) {
		t.Parallel()
		s := gatekeeper.NewSequencer(nil, nil)
		require.NoError(t, s.BeginIdentity(ctx))

		s.Reset(ctx)
		assert.Equal(t, gatekeeper.PhaseIdle, s.Phase())
		s.Reset(ctx)
		assert.Equal(t, gatekeeper.PhaseIdle, s.Phase())
	})
}
