package ads

import "context"

// Kind is the ad format a slot serves.
type Kind string

const (
	Interstitial Kind = "interstitial"
	Rewarded     Kind = "rewarded"
)

// EventType is an ad lifecycle event reported by the SDK.
type EventType string

const (
	EventLoaded       EventType = "loaded"
	EventOpened       EventType = "opened"
	EventClosed       EventType = "closed"
	EventError        EventType = "error"
	EventEarnedReward EventType = "earned_reward"
)

// Event is delivered to ad listeners. Err is set for EventError.
type Event struct {
	Type EventType
	Err  error
}

// Ad is a single SDK ad object. Load and Show start asynchronous work; results
// arrive through listeners.
type Ad interface {
	Load(ctx context.Context) error
	Show(ctx context.Context) error
	AddListener(fn func(Event)) (remove func())
}

// SDK is the ad serving SDK. Initialize must not be called before consent allows ads.
type SDK interface {
	Initialize(ctx context.Context) error
	CreateForAdRequest(kind Kind, unitID string) (Ad, error)
}

// SlotState is the position of a slot's load/show state machine.
type SlotState string

const (
	StateIdle    SlotState = "idle"
	StateLoading SlotState = "loading"
	StateLoaded  SlotState = "loaded"
	StateShowing SlotState = "showing"
	StateClosed  SlotState = "closed"
	StateError   SlotState = "error"
)

type slotEvent string

const (
	evLoad   slotEvent = "load"
	evLoaded slotEvent = "loaded"
	evFail   slotEvent = "fail"
	evShow   slotEvent = "show"
	evClose  slotEvent = "close"
)
