package consent

import "errors"

var (
	// ErrConsent marks a failed or declined consent flow. Ads stay disabled for
	// the session until an explicit retry.
	ErrConsent = errors.New("consent: consent not obtained")

	ErrDeclined = errors.New("consent: user declined")
	ErrNotReady = errors.New("consent: identity and tier are not resolved yet")
)
