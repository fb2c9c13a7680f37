package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroadcaster_Subscribe(t *testing.T) {
	t.Run("subscribe creates active subscriber", func(t *testing.T) {
		b := NewMemoryBroadcaster[string](10)
		defer b.Close()

		sub := b.Subscribe(context.Background())
		require.NotNil(t, sub)
		assert.NotEmpty(t, sub.ID())
		assert.Equal(t, 1, b.Len())
	})

	t.Run("subscribe after close returns closed subscriber", func(t *testing.T) {
		b := NewMemoryBroadcaster[string](10)
		require.NoError(t, b.Close())

		sub := b.Subscribe(context.Background())
		_, ok := <-sub.Receive()
		assert.False(t, ok)
	})

	t.Run("context cancellation unsubscribes", func(t *testing.T) {
		b := NewMemoryBroadcaster[string](10)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)
		cancel()

		assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
		_, ok := <-sub.Receive()
		assert.False(t, ok)
	})
}

func TestMemoryBroadcaster_Replay(t *testing.T) {
	t.Run("late subscriber receives latest value first", func(t *testing.T) {
		b := NewMemoryBroadcaster[int](4, WithReplay())
		defer b.Close()
		ctx := context.Background()

		require.NoError(t, b.Broadcast(ctx, Message[int]{Data: 1}))
		require.NoError(t, b.Broadcast(ctx, Message[int]{Data: 2}))

		sub := b.Subscribe(ctx)
		msg := <-sub.Receive()
		assert.Equal(t, 2, msg.Data)

		latest, ok := b.Latest()
		require.True(t, ok)
		assert.Equal(t, 2, latest)
	})

	t.Run("without replay late subscriber starts empty", func(t *testing.T) {
		b := NewMemoryBroadcaster[int](4)
		defer b.Close()
		ctx := context.Background()

		require.NoError(t, b.Broadcast(ctx, Message[int]{Data: 1}))
		sub := b.Subscribe(ctx)

		select {
		case msg := <-sub.Receive():
			t.Fatalf("unexpected message %v", msg)
		case <-time.After(20 * time.Millisecond):
		}
	})

	t.Run("forget drops the latest value", func(t *testing.T) {
		b := NewMemoryBroadcaster[int](4, WithReplay())
		defer b.Close()
		ctx := context.Background()

		require.NoError(t, b.Broadcast(ctx, Message[int]{Data: 7}))
		b.Forget()
		_, ok := b.Latest()
		assert.False(t, ok)
	})
}

func TestMemoryBroadcaster_SlowConsumers(t *testing.T) {
	t.Run("slow subscriber is dropped", func(t *testing.T) {
		b := NewMemoryBroadcaster[int](1)
		defer b.Close()
		ctx := context.Background()

		sub := b.Subscribe(ctx)
		require.NoError(t, b.Broadcast(ctx, Message[int]{Data: 1}))
		require.NoError(t, b.Broadcast(ctx, Message[int]{Data: 2}))

		assert.Equal(t, 0, b.Len())
		msg, ok := <-sub.Receive()
		require.True(t, ok)
		assert.Equal(t, 1, msg.Data)
	})

	t.Run("latest wins keeps subscriber and newest value", func(t *testing.T) {
		b := NewMemoryBroadcaster[int](1, WithLatestWins())
		defer b.Close()
		ctx := context.Background()

		sub := b.Subscribe(ctx)
		for i := range 5 {
			require.NoError(t, b.Broadcast(ctx, Message[int]{Data: i}))
		}

		assert.Equal(t, 1, b.Len())
		msg := <-sub.Receive()
		assert.Equal(t, 4, msg.Data)
	})
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	b := NewMemoryBroadcaster[string](10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-sub.Receive()
	assert.False(t, ok)
	assert.ErrorIs(t, b.Broadcast(ctx, Message[string]{Data: "late"}), ErrBroadcasterClosed)
	assert.NoError(t, sub.Close())
}
