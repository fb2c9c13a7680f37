package ads

import "errors"

var (
	// ErrAdLoad marks a failed ad load. Loads are retried on the backoff schedule
	// and then abandoned silently.
	ErrAdLoad = errors.New("ads: ad failed to load")

	ErrInitialize    = errors.New("ads: sdk initialization failed")
	ErrCreateAd      = errors.New("ads: failed to create ad request")
	ErrShow          = errors.New("ads: ad failed to show")
	ErrManagerClosed = errors.New("ads: manager is closed")
)
