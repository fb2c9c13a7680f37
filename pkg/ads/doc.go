// Package ads preloads, retries and shows interstitial and rewarded ads.
//
// Each ad type gets a Slot with its own state machine. Failed loads are retried
// after 5s, 15s and 45s by default and then abandoned until the slot is restarted.
// Interstitials respect a cooldown between shows. Rewarded ads resolve to exactly
// one of the two callbacks passed to ShowRewarded.
//
// Manager ties both slots to global eligibility and to ad SDK initialization, and
// keeps the "show on next foreground" request with its TTL:
//
//	m := ads.NewManager(sdk, cfg, ads.WithLogger(log), ads.WithMetrics(metrics))
//	_ = m.Initialize(ctx) // only after consent allows ads
//	m.SetEligible(ctx, true)
//	if !m.ShowInterstitial(ctx) {
//		m.SetPendingInterstitial()
//	}
package ads
