package ads

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/gatekit/pkg/logger"
)

// PendingInterstitial is a request to show an interstitial on the next app
// foreground, valid until ExpiresAt.
type PendingInterstitial struct {
	Pending   bool
	ExpiresAt time.Time
}

// Manager owns the interstitial and rewarded slots. Slots run only while the ad
// SDK is initialized and ads are eligible.
type Manager struct {
	sdk          SDK
	cfg          Config
	log          *slog.Logger
	clock        clockwork.Clock
	metrics      *Metrics
	interstitial *Slot
	rewarded     *Slot

	initMu sync.Mutex

	mu           sync.Mutex
	initialized  bool
	eligible     bool
	closed       bool
	pending      PendingInterstitial
	pendingTimer clockwork.Timer
	pendingGen   uint64
}

// NewManager creates a manager for both ad types. Panics if sdk is nil.
func NewManager(sdk SDK, cfg Config, opts ...Option) *Manager {
	if sdk == nil {
		panic("ads: SDK is required")
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	o := newOptions(opts)
	return &Manager{
		sdk:          sdk,
		cfg:          cfg,
		log:          o.log.With(logger.Component("ads")),
		clock:        o.clock,
		metrics:      o.metrics,
		interstitial: NewSlot(sdk, Interstitial, cfg.UnitID(Interstitial), cfg.Policy(Interstitial), opts...),
		rewarded:     NewSlot(sdk, Rewarded, cfg.UnitID(Rewarded), cfg.Policy(Rewarded), opts...),
	}
}

// Initialize initializes the ad SDK once. It must only be called after consent
// allows ads. Slots start right away when ads are already eligible.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.sdk.Initialize(ctx); err != nil {
		m.log.WarnContext(ctx, "ad sdk initialization failed", logger.Error(err))
		return errors.Join(ErrInitialize, err)
	}

	m.mu.Lock()
	m.initialized = true
	start := m.eligible && !m.closed
	m.mu.Unlock()

	m.log.InfoContext(ctx, "ad sdk initialized")
	if start {
		m.startSlots(ctx)
	}
	return nil
}

// Initialized reports whether the ad SDK is initialized.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// SetEligible records global ad eligibility. Becoming eligible starts both slots;
// losing eligibility stops them, detaching listeners and clearing retry timers.
func (m *Manager) SetEligible(ctx context.Context, eligible bool) {
	m.mu.Lock()
	if m.closed || m.eligible == eligible {
		m.mu.Unlock()
		return
	}
	m.eligible = eligible
	start := eligible && m.initialized
	m.mu.Unlock()

	if eligible {
		if start {
			m.startSlots(ctx)
		}
		return
	}
	m.stopSlots()
}

// Eligible reports whether ads may be shown right now.
func (m *Manager) Eligible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eligible && m.initialized && !m.closed
}

func (m *Manager) startSlots(ctx context.Context) {
	for _, s := range []*Slot{m.interstitial, m.rewarded} {
		if err := s.Start(ctx); err != nil {
			m.log.WarnContext(ctx, "ad slot not started", logger.AdKind(s.Kind()), logger.Error(err))
		}
	}
}

func (m *Manager) stopSlots() {
	m.interstitial.Stop()
	m.rewarded.Stop()
}

// ShowInterstitial shows the preloaded interstitial. It returns false when ads are
// not eligible, nothing is loaded or the cooldown has not elapsed.
func (m *Manager) ShowInterstitial(ctx context.Context) bool {
	if !m.Eligible() {
		m.metrics.rejected(Interstitial, reasonIneligible)
		return false
	}
	return m.interstitial.Show(ctx)
}

// ShowRewarded shows the preloaded rewarded ad. When it returns true exactly one
// of onRewarded or onDismissed runs later.
func (m *Manager) ShowRewarded(ctx context.Context, onRewarded, onDismissed func()) bool {
	if !m.Eligible() {
		m.metrics.rejected(Rewarded, reasonIneligible)
		return false
	}
	return m.rewarded.ShowRewarded(ctx, onRewarded, onDismissed)
}

// SetPendingInterstitial asks for an interstitial on the next foreground. The
// request expires after the pending TTL.
func (m *Manager) SetPendingInterstitial() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.stopPendingLocked()
	m.pending = PendingInterstitial{Pending: true, ExpiresAt: m.clock.Now().Add(m.cfg.PendingTTL)}
	gen := m.pendingGen
	m.pendingTimer = m.clock.AfterFunc(m.cfg.PendingTTL, func() { m.expirePending(gen) })
}

// Foreground runs the pending show check for an app foreground transition.
// A live request attempts a show and is cleared on success; an expired request is
// discarded without showing. It reports whether an ad was shown.
func (m *Manager) Foreground(ctx context.Context) bool {
	m.mu.Lock()
	if !m.pending.Pending {
		m.mu.Unlock()
		return false
	}
	if !m.clock.Now().Before(m.pending.ExpiresAt) {
		m.stopPendingLocked()
		m.mu.Unlock()
		m.log.DebugContext(ctx, "pending interstitial expired")
		return false
	}
	gen := m.pendingGen
	m.mu.Unlock()

	if !m.ShowInterstitial(ctx) {
		return false
	}

	m.mu.Lock()
	if gen == m.pendingGen {
		m.stopPendingLocked()
	}
	m.mu.Unlock()
	return true
}

// Pending returns the pending interstitial record.
func (m *Manager) Pending() PendingInterstitial {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// ClearPending discards the pending interstitial and its timer.
func (m *Manager) ClearPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopPendingLocked()
}

func (m *Manager) expirePending(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.pendingGen {
		return
	}
	m.pendingTimer = nil
	m.pending = PendingInterstitial{}
	m.pendingGen++
}

// Must be called with lock held.
func (m *Manager) stopPendingLocked() {
	if m.pendingTimer != nil {
		m.pendingTimer.Stop()
		m.pendingTimer = nil
	}
	m.pending = PendingInterstitial{}
	m.pendingGen++
}

// Interstitial returns the interstitial slot.
func (m *Manager) Interstitial() *Slot { return m.interstitial }

// RewardedSlot returns the rewarded slot.
func (m *Manager) RewardedSlot() *Slot { return m.rewarded }

// Close stops both slots, then clears the pending interstitial timer.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.eligible = false
	m.mu.Unlock()

	m.stopSlots()
	m.ClearPending()
	return nil
}
