package async

import (
	"context"
	"sync"
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	once   sync.Once
	done   chan struct{}
}

func newFuture[U any]() *Future[U] {
	return &Future[U]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete with the given value.
// Used when the caller collapses into work that has already settled.
func Resolved[U any](value U, err error) *Future[U] {
	f := newFuture[U]()
	f.complete(value, err)
	return f
}

// Await waits for the computation to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext waits for completion or for ctx to be done, whichever happens first.
// A context error does not cancel the underlying computation.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the computation completes.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// IsComplete checks whether the computation is complete without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future[U]) complete(value U, err error) {
	f.once.Do(func() {
		f.result = value
		f.err = err
		close(f.done)
	})
}

// Async executes fn in its own goroutine and returns a Future for its result.
// If ctx is already cancelled, fn is not called and the future completes with ctx.Err().
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := newFuture[U]()

	go func() {
		select {
		case <-ctx.Done():
			var zero U
			f.complete(zero, ctx.Err())
			return
		default:
		}

		res, err := fn(ctx, param)
		f.complete(res, err)
	}()

	return f
}

// Then runs fn with the result of f once it completes successfully.
// The returned future carries f's error unchanged when f fails.
func Then[U any, V any](ctx context.Context, f *Future[U], fn func(context.Context, U) (V, error)) *Future[V] {
	next := newFuture[V]()

	go func() {
		res, err := f.Await()
		if err != nil {
			var zero V
			next.complete(zero, err)
			return
		}
		v, err := fn(ctx, res)
		next.complete(v, err)
	}()

	return next
}
