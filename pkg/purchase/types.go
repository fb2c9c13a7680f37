package purchase

import (
	"maps"
	"time"

	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// EntitlementInfo is a single named capability grant reported by the purchase SDK.
type EntitlementInfo struct {
	Identifier        string
	ProductIdentifier string
	Active            bool
	ExpiresAt         time.Time
}

// CustomerInfo is the purchase SDK snapshot for the logged in user.
// It is replaced wholesale on every SDK push and never mutated in place.
type CustomerInfo struct {
	AppUserID    string
	Entitlements map[string]EntitlementInfo
	RequestedAt  time.Time
}

// Clone returns a deep copy safe to hand to other goroutines.
func (c CustomerInfo) Clone() CustomerInfo {
	c.Entitlements = maps.Clone(c.Entitlements)
	return c
}

// ActiveEntitlement returns the entitlement with the given id if it is active.
func (c CustomerInfo) ActiveEntitlement(id string) (EntitlementInfo, bool) {
	e, ok := c.Entitlements[id]
	if !ok || !e.Active {
		return EntitlementInfo{}, false
	}
	return e, true
}

// HasActive reports whether any entitlement is active.
func (c CustomerInfo) HasActive() bool {
	for _, e := range c.Entitlements {
		if e.Active {
			return true
		}
	}
	return false
}

// Package is a purchasable product inside an offering.
type Package struct {
	Identifier        string
	ProductIdentifier string
	PriceString       string
}

// Offering groups the packages presented on a paywall.
type Offering struct {
	Identifier string
	Packages   []Package
}

// Offerings is the SDK offerings response. Current names the offering the paywall shows.
type Offerings struct {
	Current string
	All     map[string]Offering
}

// CurrentOffering returns the offering named by Current.
func (o Offerings) CurrentOffering() (Offering, bool) {
	off, ok := o.All[o.Current]
	return off, ok
}

// PaywallResult is the outcome of a paywall presentation.
type PaywallResult string

const (
	PaywallPurchased    PaywallResult = "purchased"
	PaywallRestored     PaywallResult = "restored"
	PaywallCancelled    PaywallResult = "cancelled"
	PaywallError        PaywallResult = "error"
	PaywallNotPresented PaywallResult = "not_presented"
)

// Succeeded reports whether the purchase SDK granted something. The authoritative
// tier may still lag behind.
func (r PaywallResult) Succeeded() bool {
	return r == PaywallPurchased || r == PaywallRestored
}

// CachedTierSnapshot is the locally persisted last known tier. It is a fallback
// display value only and never authoritative once the tier listener is live.
type CachedTierSnapshot struct {
	Tier      tier.Tier `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
}
