package purchase

import "errors"

var (
	// ErrConfiguration reports a missing or rejected SDK key. The client keeps
	// running in degraded mode; callers only log it.
	ErrConfiguration = errors.New("purchase: sdk configuration failed")

	// ErrPurchase is returned once from paywall and restore when the SDK fails.
	// It is never retried automatically.
	ErrPurchase = errors.New("purchase: sdk purchase operation failed")

	ErrLogin            = errors.New("purchase: login failed")
	ErrLogout           = errors.New("purchase: logout failed")
	ErrCustomerInfo     = errors.New("purchase: failed to fetch customer info")
	ErrOfferings        = errors.New("purchase: failed to fetch offerings")
	ErrMissingAPIKey    = errors.New("purchase: api key is required")
	ErrNotLoggedIn      = errors.New("purchase: no user is logged in")
	ErrEmptyUserID      = errors.New("purchase: user id is required")
	ErrSnapshotNotFound = errors.New("purchase: cached tier snapshot not found")
	ErrClientClosed     = errors.New("purchase: client is closed")
)
