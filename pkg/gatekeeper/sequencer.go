package gatekeeper

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/statemachine"
)

// Phase is the identity resolution barrier position.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseResolvingIdentity Phase = "resolving_identity"
	PhaseResolvingTier     Phase = "resolving_tier"
	PhaseReady             Phase = "ready"
)

type phaseEvent string

const (
	evIdentify         phaseEvent = "identify"
	evIdentityResolved phaseEvent = "identity_resolved"
	evTierResolved     phaseEvent = "tier_resolved"
	evGroupChanged     phaseEvent = "group_changed"
	evReset            phaseEvent = "reset"
)

// Sequencer orders identity and tier resolution ahead of consent and ads:
//
//	Idle -> ResolvingIdentity -> ResolvingTier -> Ready
//
// A group change moves Ready back to ResolvingTier. Nothing downstream may start
// its own async work until Ready.
type Sequencer struct {
	sm *statemachine.Machine[Phase, phaseEvent]
}

// NewSequencer creates a sequencer in PhaseIdle. observer, when not nil, is called
// after every transition.
func NewSequencer(log *slog.Logger, observer func(from, to Phase)) *Sequencer {
	if log == nil {
		log = slog.Default()
	}
	all := []Phase{PhaseIdle, PhaseResolvingIdentity, PhaseResolvingTier, PhaseReady}
	sm := statemachine.MustNew(PhaseIdle,
		statemachine.WithTransitionFrom(all, PhaseResolvingIdentity, evIdentify),
		statemachine.WithTransition(PhaseResolvingIdentity, PhaseResolvingTier, evIdentityResolved),
		statemachine.WithTransition(PhaseResolvingTier, PhaseReady, evTierResolved),
		statemachine.WithTransition(PhaseReady, PhaseResolvingTier, evGroupChanged),
		statemachine.WithTransitionFrom(all, PhaseIdle, evReset),
		statemachine.WithObserver(func(from, to Phase, _ phaseEvent) {
			log.Debug("sequencer phase changed", logger.Transition(from, to))
			if observer != nil {
				observer(from, to)
			}
		}),
	)
	return &Sequencer{sm: sm}
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase { return s.sm.Current() }

// Ready implements consent.Gate.
func (s *Sequencer) Ready() bool { return s.sm.Is(PhaseReady) }

// Resolving reports whether identity or tier resolution is in progress.
func (s *Sequencer) Resolving() bool {
	return s.sm.Is(PhaseResolvingIdentity, PhaseResolvingTier)
}

// BeginIdentity enters ResolvingIdentity from any phase.
func (s *Sequencer) BeginIdentity(ctx context.Context) error {
	return s.sm.Fire(ctx, evIdentify)
}

// IdentityResolved moves from ResolvingIdentity to ResolvingTier.
func (s *Sequencer) IdentityResolved(ctx context.Context) error {
	return s.sm.Fire(ctx, evIdentityResolved)
}

// TierResolved moves from ResolvingTier to Ready.
func (s *Sequencer) TierResolved(ctx context.Context) error {
	return s.sm.Fire(ctx, evTierResolved)
}

// GroupChanged moves Ready back to ResolvingTier. Outside Ready it returns a
// statemachine error and the phase is unchanged.
func (s *Sequencer) GroupChanged(ctx context.Context) error {
	return s.sm.Fire(ctx, evGroupChanged)
}

// Reset returns to Idle.
func (s *Sequencer) Reset(ctx context.Context) {
	_ = s.sm.Fire(ctx, evReset)
}
