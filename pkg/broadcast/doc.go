// Package broadcast provides typed one-to-many delivery of state updates.
//
// MemoryBroadcaster fans a value out to every subscriber channel without
// blocking the sender. With WithReplay a new subscriber first receives the last
// broadcast value, which makes the broadcaster a good fit for state streams
// (customer info, group tier, engine snapshots) where a listener attaching late
// still needs the current value. With WithLatestWins a slow subscriber keeps its
// subscription and only the newest value is kept in its buffer.
//
//	b := broadcast.NewMemoryBroadcaster[tier.Record](1, broadcast.WithReplay())
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	defer sub.Close()
//
//	_ = b.Broadcast(ctx, broadcast.Message[tier.Record]{Data: rec})
//	for msg := range sub.Receive() {
//		handle(msg.Data)
//	}
//
// Subscriptions are removed when their context is cancelled, when they are
// closed, or when the broadcaster is closed.
package broadcast
