package consent

import "context"

// State is the consent flow position.
type State string

const (
	NotChecked  State = "not_checked"
	Checking    State = "checking"
	Obtained    State = "obtained"
	NotRequired State = "not_required"
	Denied      State = "denied"
)

// AllowsAds reports whether the state authorizes ad SDK initialization.
func (s State) AllowsAds() bool {
	return s == Obtained || s == NotRequired
}

// Settled reports whether a consent flow has finished.
func (s State) Settled() bool {
	return s == Obtained || s == NotRequired || s == Denied
}

// Status is the consent SDK's view of whether consent is required.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusRequired    Status = "required"
	StatusNotRequired Status = "not_required"
	StatusObtained    Status = "obtained"
)

// Info is the consent SDK result after the form flow.
type Info struct {
	CanRequestAds bool
	Status        Status
}

// SDK is the UMP-style consent SDK.
type SDK interface {
	RequestInfoUpdate(ctx context.Context) error
	// LoadAndShowFormIfRequired presents the consent form when the user has not
	// answered yet and returns after it is dismissed.
	LoadAndShowFormIfRequired(ctx context.Context) error
	ConsentInfo(ctx context.Context) (Info, error)
	Reset(ctx context.Context) error
}

// Gate reports whether downstream work may start. Consent never runs while
// identity and tier are still resolving.
type Gate interface {
	Ready() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

// Ready implements Gate.
func (f GateFunc) Ready() bool { return f() }

type event string

const (
	evStart       event = "start"
	evObtain      event = "obtain"
	evNotRequired event = "not_required"
	evDeny        event = "deny"
	evRetry       event = "retry"
	evReset       event = "reset"
)
