package gating

import (
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// Input is everything a gating decision depends on.
type Input struct {
	Tier            tier.Tier
	Info            purchase.CustomerInfo
	ConsentObtained bool
}

// Decision is the set of booleans the rest of the app consumes.
type Decision struct {
	HasEntitlement  bool
	IsFreeUser      bool
	ShouldShowAds   bool
	PremiumUnlocked bool
}

// Evaluate derives the gating decision. It is pure and safe to call any number of times.
func Evaluate(in Input, entitlementID string) Decision {
	_, hasEntitlement := in.Info.ActiveEntitlement(entitlementID)
	isFree := !in.Tier.IsPaid() && !hasEntitlement
	return Decision{
		HasEntitlement:  hasEntitlement,
		IsFreeUser:      isFree,
		ShouldShowAds:   isFree && in.ConsentObtained,
		PremiumUnlocked: !isFree,
	}
}
