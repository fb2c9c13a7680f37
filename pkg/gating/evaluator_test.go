package gating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/gatekit/pkg/gating"
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

type tierSource struct {
	rec tier.Record
	ok  bool
}

func (s tierSource) Current() (tier.Record, bool) { return s.rec, s.ok }

type entitlementSource struct {
	info   purchase.CustomerInfo
	cached tier.Tier
}

func (s entitlementSource) CustomerInfo() (purchase.CustomerInfo, bool) { return s.info, true }
func (s entitlementSource) CachedTier() tier.Tier { return s.cached }

type consentSource bool

func (c consentSource) Obtained() bool { return bool(c) }

func TestEvaluator(t *testing.T) {
	t.Parallel()

	t.Run("cached tier before listener is live", func(t *testing.T) {
		t.Parallel()
		e := gating.NewEvaluator(tierSource{}, entitlementSource{cached: tier.Premium}, consentSource(true), entitlementID)

		got, authoritative := e.Tier()
		assert.Equal(t, tier.Premium, got)
		assert.False(t, authoritative)
		assert.False(t, e.Evaluate().ShouldShowAds)
	})

	t.Run("authoritative tier wins over cache", func(t *testing.T) {
		t.Parallel()
		e := gating.NewEvaluator(
			tierSource{rec: tier.Record{Tier: tier.Free}, ok: true},
			entitlementSource{cached: tier.Family},
			consentSource(true),
			entitlementID,
		)

		got, authoritative := e.Tier()
		assert.Equal(t, tier.Free, got)
		assert.True(t, authoritative)
		assert.True(t, e.Evaluate().ShouldShowAds)
	})

	t.Run("entitlement suppresses ads", func(t *testing.T) {
		t.Parallel()
		e := gating.NewEvaluator(
			tierSource{rec: tier.Record{Tier: tier.Free}, ok: true},
			entitlementSource{info: info(true)},
			consentSource(true),
			entitlementID,
		)
		d := e.Evaluate()
		assert.True(t, d.HasEntitlement)
		assert.False(t, d.ShouldShowAds)
		assert.True(t, d.PremiumUnlocked)
	})

	t.Run("nil sources panic", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { gating.NewEvaluator(nil, entitlementSource{}, consentSource(true), entitlementID) })
	})
}
