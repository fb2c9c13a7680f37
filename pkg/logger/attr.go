package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the purchase identity under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// GroupID records the family/account group under the key "group_id".
// An empty id is logged explicitly because "no group" is a meaningful state.
func GroupID(id string) slog.Attr {
	if id == "" {
		return slog.String("group_id", "<none>")
	}
	return slog.String("group_id", id)
}

// Tier records a subscription tier. Accepts any string-based tier type.
func Tier[T ~string](t T) slog.Attr {
	return slog.String("tier", string(t))
}

// AdKind records the ad type (interstitial, rewarded).
func AdKind[T ~string](k T) slog.Attr {
	return slog.String("ad_kind", string(k))
}

// SlotState records an ad slot state.
func SlotState[T ~string](s T) slog.Attr {
	return slog.String("slot_state", string(s))
}

// ConsentState records the consent state machine position.
func ConsentState[T ~string](s T) slog.Attr {
	return slog.String("consent_state", string(s))
}

// Phase records the identity sequencer phase.
func Phase[T ~string](p T) slog.Attr {
	return slog.String("phase", string(p))
}

// Transition records a state change as "from->to".
func Transition[T ~string](from, to T) slog.Attr {
	return slog.String("transition", string(from)+"->"+string(to))
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Delay records a scheduled delay.
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records an SDK event name.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
