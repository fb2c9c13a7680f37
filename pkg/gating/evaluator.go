package gating

import (
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// TierSource provides the authoritative tier. ok is false until a live listener
// has delivered a value.
type TierSource interface {
	Current() (rec tier.Record, ok bool)
}

// EntitlementSource provides purchase SDK state and the cached fallback tier.
type EntitlementSource interface {
	CustomerInfo() (purchase.CustomerInfo, bool)
	CachedTier() tier.Tier
}

// ConsentSource reports whether consent allows ads.
type ConsentSource interface {
	Obtained() bool
}

// Evaluator binds Evaluate to live sources.
type Evaluator struct {
	tiers         TierSource
	entitlements  EntitlementSource
	consent       ConsentSource
	entitlementID string
}

// NewEvaluator creates an Evaluator. Panics if any source is nil.
func NewEvaluator(tiers TierSource, entitlements EntitlementSource, consent ConsentSource, entitlementID string) *Evaluator {
	if tiers == nil || entitlements == nil || consent == nil {
		panic("gating: tier, entitlement and consent sources are required")
	}
	return &Evaluator{
		tiers:         tiers,
		entitlements:  entitlements,
		consent:       consent,
		entitlementID: entitlementID,
	}
}

// Tier returns the authoritative tier once the listener is live and the cached
// tier before that.
func (e *Evaluator) Tier() (t tier.Tier, authoritative bool) {
	if rec, ok := e.tiers.Current(); ok {
		return rec.Tier, true
	}
	return e.entitlements.CachedTier(), false
}

// Input collects the current inputs.
func (e *Evaluator) Input() Input {
	t, _ := e.Tier()
	info, _ := e.entitlements.CustomerInfo()
	return Input{
		Tier:            t,
		Info:            info,
		ConsentObtained: e.consent.Obtained(),
	}
}

// Evaluate returns the decision for the current inputs.
func (e *Evaluator) Evaluate() Decision {
	return Evaluate(e.Input(), e.entitlementID)
}

// EntitlementID returns the configured entitlement id.
func (e *Evaluator) EntitlementID() string {
	return e.entitlementID
}
