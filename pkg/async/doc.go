// Package async provides generic futures for running blocking SDK calls off the
// caller's goroutine.
//
// Async starts a function in its own goroutine and returns a *Future. Callers
// wait with Await or AwaitContext, poll with IsComplete, or select on Done.
// Then chains a follow-up step that runs only when the first one succeeds.
// Resolved builds an already-complete future for callers that collapse into
// work that has settled.
//
//	f := async.Async(ctx, struct{}{}, func(ctx context.Context, _ struct{}) (consent.State, error) {
//	    return manager.Gather(ctx)
//	})
//	state, err := f.AwaitContext(ctx)
//
// AwaitContext only bounds the wait; the computation keeps running and its
// result is still recorded in the future.
package async
