package gating_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/gatekit/pkg/gating"
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

const entitlementID = "pro"

func info(active bool) purchase.CustomerInfo {
	return purchase.CustomerInfo{Entitlements: map[string]purchase.EntitlementInfo{
		entitlementID: {Identifier: entitlementID, ProductIdentifier: "monthly", Active: active},
	}}
}

func TestEvaluate_AllCombinations(t *testing.T) {
	t.Parallel()

	for _, tr := range []tier.Tier{tier.Free, tier.Premium, tier.Family} {
		for _, ent := range []bool{true, false} {
			for _, consent := range []bool{true, false} {
				t.Run(fmt.Sprintf("%s/entitlement=%t/consent=%t", tr, ent, consent), func(t *testing.T) {
					t.Parallel()
					d := gating.Evaluate(gating.Input{Tier: tr, Info: info(ent), ConsentObtained: consent}, entitlementID)

					assert.Equal(t, tr == tier.Free && !ent && consent, d.ShouldShowAds)
					assert.Equal(t, tr == tier.Free && !ent, d.IsFreeUser)
					assert.Equal(t, ent, d.HasEntitlement)
					assert.Equal(t, tr != tier.Free || ent, d.PremiumUnlocked)
				})
			}
		}
	}
}

func TestEvaluate_EdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("empty customer info", func(t *testing.T) {
		t.Parallel()
		d := gating.Evaluate(gating.Input{Tier: tier.Free, ConsentObtained: true}, entitlementID)
		assert.False(t, d.HasEntitlement)
		assert.True(t, d.ShouldShowAds)
	})

	t.Run("unknown tier counts as free", func(t *testing.T) {
		t.Parallel()
		d := gating.Evaluate(gating.Input{Tier: "", ConsentObtained: true}, entitlementID)
		assert.True(t, d.IsFreeUser)
	})

	t.Run("inactive entitlement does not count", func(t *testing.T) {
		t.Parallel()
		d := gating.Evaluate(gating.Input{Tier: tier.Free, Info: info(false)}, entitlementID)
		assert.False(t, d.HasEntitlement)
		assert.True(t, d.IsFreeUser)
	})
}
