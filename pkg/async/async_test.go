package async_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekit/pkg/async"
)

func TestAsync(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()
		f := async.Async(context.Background(), 42, func(_ context.Context, n int) (string, error) {
			return fmt.Sprintf("n=%d", n), nil
		})

		res, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, "n=42", res)
		assert.True(t, f.IsComplete())
	})

	t.Run("propagates error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		f := async.Async(context.Background(), 0, func(context.Context, int) (int, error) {
			return 0, boom
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context skips the call", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := make(chan struct{}, 1)
		f := async.Async(ctx, 0, func(context.Context, int) (int, error) {
			called <- struct{}{}
			return 1, nil
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, called)
	})
}

func TestFuture_AwaitContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := async.Async(context.Background(), 0, func(context.Context, int) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.AwaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.IsComplete())

	close(release)
	res, err := f.AwaitContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res)
}

func TestResolved(t *testing.T) {
	t.Parallel()

	f := async.Resolved("done", nil)
	select {
	case <-f.Done():
	default:
		t.Fatal("resolved future must be complete")
	}
	res, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, "done", res)
}

func TestThen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("chains on success", func(t *testing.T) {
		t.Parallel()
		first := async.Resolved(2, nil)
		second := async.Then(ctx, first, func(_ context.Context, n int) (int, error) {
			return n * 10, nil
		})

		res, err := second.Await()
		require.NoError(t, err)
		assert.Equal(t, 20, res)
	})

	t.Run("skips step on failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		first := async.Resolved(0, boom)
		second := async.Then(ctx, first, func(context.Context, int) (string, error) {
			t.Error("must not run")
			return "", nil
		})

		_, err := second.Await()
		assert.ErrorIs(t, err, boom)
	})
}
