package consent

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/statemachine"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithObserver registers fn for every settled or reset state. fn runs outside the
// manager lock.
func WithObserver(fn func(State)) Option {
	return func(m *Manager) {
		m.observer = fn
	}
}

// Manager drives consent acquisition. Only one flow runs at a time; calls made
// while a flow is in flight return immediately.
type Manager struct {
	sdk      SDK
	gate     Gate
	log      *slog.Logger
	observer func(State)
	sm       *statemachine.Machine[State, event]

	mu       sync.Mutex
	inFlight bool
	gen      uint64
}

// NewManager creates a consent manager. Panics if sdk or gate is nil.
func NewManager(sdk SDK, gate Gate, opts ...Option) *Manager {
	if sdk == nil {
		panic("consent: SDK is required")
	}
	if gate == nil {
		panic("consent: Gate is required")
	}
	m := &Manager{
		sdk:  sdk,
		gate: gate,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("consent"))

	all := []State{NotChecked, Checking, Obtained, NotRequired, Denied}
	gateOpen := statemachine.WithGuard(func(context.Context, State, event) bool {
		return m.gate.Ready()
	})
	m.sm = statemachine.MustNew(NotChecked,
		statemachine.WithTransition(NotChecked, Checking, evStart, gateOpen),
		statemachine.WithTransition(Checking, Obtained, evObtain),
		statemachine.WithTransition(Checking, NotRequired, evNotRequired),
		statemachine.WithTransition(Checking, Denied, evDeny),
		statemachine.WithTransitionFrom([]State{NotChecked, Obtained, NotRequired, Denied}, Checking, evRetry, gateOpen),
		statemachine.WithTransitionFrom(all, NotChecked, evReset),
		statemachine.WithObserver(func(from, to State, _ event) {
			m.log.Debug("consent state changed", logger.Transition(from, to))
		}),
	)
	return m
}

// Gather runs the consent flow once per session. It is a no-op while a flow is
// in flight or after one has settled. Starting a flow is refused with ErrNotReady
// while the gate is closed. SDK failures and declines end in Denied and return ErrConsent.
// A flow whose ctx is cancelled returns to NotChecked with the context error.
func (m *Manager) Gather(ctx context.Context) (State, error) {
	return m.begin(ctx, evStart)
}

// Retry forces a new consent flow from any settled state.
func (m *Manager) Retry(ctx context.Context) (State, error) {
	return m.begin(ctx, evRetry)
}

func (m *Manager) begin(ctx context.Context, ev event) (State, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return Checking, nil
	}
	if err := m.sm.Fire(ctx, ev); err != nil {
		m.mu.Unlock()
		if statemachine.IsTransitionRejectedError(err) {
			return m.State(), ErrNotReady
		}
		// Gather after the flow has settled.
		return m.State(), nil
	}
	m.inFlight = true
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.notify(Checking)
	return m.run(ctx, gen)
}

func (m *Manager) run(ctx context.Context, gen uint64) (State, error) {
	info, err := m.collect(ctx)

	ev := evDeny
	switch {
	case err != nil && ctx.Err() != nil:
		// Cancelled by the caller, not declined by the user.
		ev = evReset
	case err != nil:
	case info.CanRequestAds && info.Status == StatusNotRequired:
		ev = evNotRequired
	case info.CanRequestAds:
		ev = evObtain
	default:
		err = ErrDeclined
	}

	m.mu.Lock()
	if gen != m.gen {
		// Reset while the SDK was busy; the result belongs to a discarded flow.
		m.mu.Unlock()
		return m.State(), nil
	}
	m.inFlight = false
	if ferr := m.sm.Fire(ctx, ev); ferr != nil {
		m.mu.Unlock()
		return m.State(), ferr
	}
	st := m.sm.Current()
	m.mu.Unlock()

	m.notify(st)
	if ev == evReset {
		m.log.DebugContext(ctx, "consent flow cancelled", logger.Error(err))
		return st, err
	}
	if err != nil {
		m.log.WarnContext(ctx, "consent not obtained, ads disabled", logger.ConsentState(st), logger.Error(err))
		return st, errors.Join(ErrConsent, err)
	}
	m.log.InfoContext(ctx, "consent settled", logger.ConsentState(st))
	return st, nil
}

func (m *Manager) collect(ctx context.Context) (Info, error) {
	if err := m.sdk.RequestInfoUpdate(ctx); err != nil {
		return Info{}, err
	}
	if err := m.sdk.LoadAndShowFormIfRequired(ctx); err != nil {
		return Info{}, err
	}
	return m.sdk.ConsentInfo(ctx)
}

// Cancel discards a flow in flight and returns to NotChecked so the next Gather
// starts over. A settled state is kept.
func (m *Manager) Cancel(ctx context.Context) {
	m.mu.Lock()
	if !m.inFlight {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.inFlight = false
	_ = m.sm.Fire(ctx, evReset)
	m.mu.Unlock()

	m.log.DebugContext(ctx, "consent flow discarded")
	m.notify(NotChecked)
}

// Reset clears the stored consent in the SDK and returns to NotChecked.
// A flow in flight is discarded.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.inFlight = false
	_ = m.sm.Fire(ctx, evReset)
	m.mu.Unlock()

	m.notify(NotChecked)
	if err := m.sdk.Reset(ctx); err != nil {
		m.log.WarnContext(ctx, "consent reset failed", logger.Error(err))
		return errors.Join(ErrConsent, err)
	}
	return nil
}

func (m *Manager) notify(st State) {
	if m.observer != nil {
		m.observer(st)
	}
}

// State returns the current consent state.
func (m *Manager) State() State {
	return m.sm.Current()
}

// Checked reports whether a consent flow has settled.
func (m *Manager) Checked() bool {
	return m.State().Settled()
}

// Obtained reports whether ads may be requested.
func (m *Manager) Obtained() bool {
	return m.State().AllowsAds()
}
