package gatekeeper

import (
	"github.com/dmitrymomot/gatekit/pkg/consent"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// Snapshot is the state exposed to the rest of the app.
type Snapshot struct {
	Phase   Phase
	UserID  string
	GroupID string

	Tier tier.Tier
	// TierAuthoritative is false while the tier comes from the cached snapshot.
	TierAuthoritative bool
	HasEntitlement    bool
	IsFreeUser        bool
	PremiumUnlocked   bool
	IsPurchasing      bool
	Degraded          bool

	// ShouldShowAds is never true before the sequencer is Ready.
	ShouldShowAds   bool
	IsInitialized   bool
	ConsentChecked  bool
	ConsentObtained bool
	ConsentState    consent.State
}
