package purchase

import "context"

// SDK is the payment SDK surface the client consumes. Every method is an
// asynchronous boundary; implementations may call listeners from any goroutine.
type SDK interface {
	Configure(ctx context.Context, apiKey string) error
	LogIn(ctx context.Context, appUserID string) (CustomerInfo, error)
	LogOut(ctx context.Context) (CustomerInfo, error)
	GetCustomerInfo(ctx context.Context) (CustomerInfo, error)
	GetOfferings(ctx context.Context) (Offerings, error)

	// AddCustomerInfoListener registers fn for every customer info push and returns
	// a function that removes it.
	AddCustomerInfoListener(fn func(CustomerInfo)) (remove func())

	// PresentPaywall shows the SDK paywall and reports how it was dismissed.
	PresentPaywall(ctx context.Context) (PaywallResult, error)
	RestorePurchases(ctx context.Context) (CustomerInfo, error)
}

// SnapshotStore persists CachedTierSnapshot values per user.
type SnapshotStore interface {
	// Load returns ErrSnapshotNotFound when nothing is stored for uid.
	Load(ctx context.Context, uid string) (CachedTierSnapshot, error)
	Save(ctx context.Context, uid string, snap CachedTierSnapshot) error
}
