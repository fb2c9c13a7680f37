// Package purchase wraps the payment SDK used to sell subscriptions.
//
// Client owns the CustomerInfo snapshot and replaces it wholesale on every SDK
// push. It serializes login and logout, collapses concurrent logins and restores
// into a single SDK call, and keeps a locally cached tier snapshot for display
// while the authoritative tier is not yet known.
//
// A successful paywall or restore sets IsPurchasing and arms a bounded wait. The
// wait ends when TierUpdated is called or when the timer elapses. Neither case is
// an error: the tier arrives later through the realtime listener.
//
//	client := purchase.NewClient(sdk,
//		purchase.WithLogger(log),
//		purchase.WithSnapshotStore(snapshots),
//	)
//	if err := client.Configure(ctx, apiKey); err != nil {
//		log.Warn("purchases degraded", logger.Error(err))
//	}
package purchase
