// Package tier holds the group-level subscription tier and the store that keeps a
// single realtime listener attached to the active group.
//
// The authoritative tier lives in a shared backend behind RealtimeStore. Clients only
// read it through Store; the payment webhook process and the reconciler are the only
// writers.
//
//	store := tier.NewStore(rt, tier.WithLogger(log))
//	if err := store.Subscribe(ctx, groupID, func(rec tier.Record) {
//		// rec.Tier is authoritative
//	}); err != nil {
//		// fall back to the cached tier
//	}
//	defer store.Unsubscribe()
//
// ProductMap resolves purchase product identifiers to tiers. Unknown products resolve
// to Premium.
package tier
