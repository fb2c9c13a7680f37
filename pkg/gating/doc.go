// Package gating combines tier, entitlement and consent into the booleans the
// rest of the app reads.
//
//	hasEntitlement = customer info has the entitlement active
//	isFreeUser     = tier is free and no entitlement
//	shouldShowAds  = isFreeUser and consent obtained
//
// Evaluate is pure. Evaluator binds it to injected sources and prefers the
// authoritative tier over the cached one once the listener is live.
package gating
