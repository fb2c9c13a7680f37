package gatekeeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/gatekit/pkg/ads"
	"github.com/dmitrymomot/gatekit/pkg/async"
	"github.com/dmitrymomot/gatekit/pkg/broadcast"
	"github.com/dmitrymomot/gatekit/pkg/consent"
	"github.com/dmitrymomot/gatekit/pkg/gating"
	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/reconcile"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// Lifecycle reports app foreground transitions.
type Lifecycle interface {
	OnForeground(fn func()) (remove func())
}

// Identity is the signed in user and their group, if any.
type Identity struct {
	UserID  string
	GroupID string
}

// Deps are the external collaborators. PurchaseSDK, ConsentSDK, AdSDK and Realtime
// are required.
type Deps struct {
	PurchaseSDK purchase.SDK
	ConsentSDK  consent.SDK
	AdSDK       ads.SDK
	Realtime    tier.RealtimeStore
	Snapshots   purchase.SnapshotStore
	Lifecycle   Lifecycle
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	log   *slog.Logger
	clock clockwork.Clock
	reg   prometheus.Registerer
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock sets the clock shared by every component.
func WithClock(clock clockwork.Clock) Option {
	return func(o *engineOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRegisterer registers ad and reconciliation metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) {
		o.reg = reg
	}
}

// Engine wires purchases, tier, reconciliation, consent and ads behind an
// attach/detach lifecycle and publishes gating snapshots.
type Engine struct {
	cfg       Config
	log       *slog.Logger
	clock     clockwork.Clock
	lifecycle Lifecycle

	seq        *Sequencer
	purchases  *purchase.Client
	tiers      *tier.Store
	reconciler *reconcile.Reconciler
	consent    *consent.Manager
	ads        *ads.Manager
	evaluator  *gating.Evaluator
	snapshots  *broadcast.MemoryBroadcaster[Snapshot]

	// applyMu serializes snapshot recomputation with the eligibility it drives.
	applyMu sync.Mutex

	mu               sync.Mutex
	attached         bool
	closed           bool
	identity         Identity
	session          string
	sessionGen       uint64
	sessionCtx       context.Context
	sessionCancel    context.CancelFunc
	tierCancel       context.CancelFunc
	removeForeground func()
	consentRun       *async.Future[consent.State]
}

// New builds an engine and all of its components. Panics if a required
// dependency is missing.
func New(cfg Config, deps Deps, opts ...Option) *Engine {
	if deps.PurchaseSDK == nil || deps.ConsentSDK == nil || deps.AdSDK == nil || deps.Realtime == nil {
		panic("gatekeeper: purchase, consent and ad SDKs and a realtime store are required")
	}
	if cfg.EntitlementID == "" {
		panic("gatekeeper: entitlement id is required")
	}
	cfg = cfg.withDefaults()

	o := engineOptions{log: slog.Default(), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:       cfg,
		log:       o.log.With(logger.Component("gatekeeper")),
		clock:     o.clock,
		lifecycle: deps.Lifecycle,
		snapshots: broadcast.NewMemoryBroadcaster[Snapshot](4, broadcast.WithReplay(), broadcast.WithLatestWins()),
	}

	e.seq = NewSequencer(e.log, nil)
	e.purchases = purchase.NewClient(deps.PurchaseSDK,
		purchase.WithLogger(o.log),
		purchase.WithClock(o.clock),
		purchase.WithSyncTimeout(cfg.PurchaseSyncTimeout),
		purchase.WithSnapshotStore(deps.Snapshots),
		purchase.WithPurchasingObserver(func(bool) { e.recompute(context.Background()) }),
	)
	e.tiers = tier.NewStore(deps.Realtime, tier.WithLogger(o.log))
	e.reconciler = reconcile.New(deps.Realtime, cfg.EntitlementID, cfg.ProductTiers,
		reconcile.WithLogger(o.log),
		reconcile.WithClock(o.clock),
		reconcile.WithMetrics(reconcile.NewMetrics(o.reg)),
	)
	e.consent = consent.NewManager(deps.ConsentSDK, e.seq,
		consent.WithLogger(o.log),
		consent.WithObserver(func(consent.State) { e.recompute(context.Background()) }),
	)
	e.ads = ads.NewManager(deps.AdSDK, cfg.Ads,
		ads.WithLogger(o.log),
		ads.WithClock(o.clock),
		ads.WithMetrics(ads.NewMetrics(o.reg)),
	)
	e.evaluator = gating.NewEvaluator(e.tiers, e.purchases, e.consent, cfg.EntitlementID)
	return e
}

// Attach configures the purchase SDK. A configuration failure is logged and the
// engine continues in degraded mode.
func (e *Engine) Attach(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.attached {
		e.mu.Unlock()
		return nil
	}
	e.attached = true
	e.mu.Unlock()

	if err := e.purchases.Configure(ctx, e.cfg.PurchaseAPIKey); err != nil {
		e.log.WarnContext(ctx, "purchases unavailable, using cached tier", logger.Error(err))
	}
	e.recompute(ctx)
	return nil
}

// Identify resolves a user session: purchase login, customer info and offerings
// first, then the group tier, then consent off the caller's goroutine. Calling it
// again for the same user only updates the group.
func (e *Engine) Identify(ctx context.Context, id Identity) error {
	if id.UserID == "" {
		return ErrEmptyUserID
	}

	e.mu.Lock()
	if !e.attached {
		e.mu.Unlock()
		return ErrNotAttached
	}
	current := e.identity
	active := e.session != ""
	e.mu.Unlock()

	if active && current.UserID == id.UserID {
		return e.SetGroup(ctx, id.GroupID)
	}
	if active {
		if err := e.Logout(ctx); err != nil {
			e.log.WarnContext(ctx, "previous session logout failed", logger.Error(err))
		}
	}

	sessCtx, gen := e.beginSession(ctx, id)
	if err := e.seq.BeginIdentity(sessCtx); err != nil {
		return err
	}
	e.recompute(sessCtx)

	if err := e.purchases.Login(sessCtx, id.UserID); err != nil {
		e.log.WarnContext(sessCtx, "login failed, using cached tier", logger.Error(err))
	}
	if _, err := e.purchases.RefreshCustomerInfo(sessCtx); err != nil && !errors.Is(err, purchase.ErrConfiguration) {
		e.log.WarnContext(sessCtx, "customer info unavailable", logger.Error(err))
	}
	if _, err := e.purchases.Offerings(sessCtx); err != nil && !errors.Is(err, purchase.ErrConfiguration) {
		e.log.WarnContext(sessCtx, "offerings unavailable", logger.Error(err))
	}

	if !e.current(gen) {
		return nil
	}
	if err := e.seq.IdentityResolved(sessCtx); err != nil {
		return err
	}
	e.recompute(sessCtx)

	e.resolveTier(sessCtx, gen)
	return nil
}

func (e *Engine) beginSession(ctx context.Context, id Identity) (context.Context, uint64) {
	sessionID := uuid.NewString()
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sessCtx = logger.WithUser(logger.WithSession(sessCtx, sessionID), id.UserID)

	e.mu.Lock()
	e.sessionGen++
	gen := e.sessionGen
	e.session = sessionID
	e.identity = id
	e.sessionCtx = sessCtx
	e.sessionCancel = cancel
	e.mu.Unlock()

	sub := e.purchases.Subscribe(sessCtx)
	go func() {
		for msg := range sub.Receive() {
			e.onCustomerInfo(sessCtx, gen, msg.Data)
		}
	}()

	if e.lifecycle != nil {
		remove := e.lifecycle.OnForeground(func() { e.onForeground(gen) })
		e.mu.Lock()
		if e.sessionGen == gen {
			e.removeForeground = remove
			remove = nil
		}
		e.mu.Unlock()
		if remove != nil {
			remove()
		}
	}

	e.log.InfoContext(sessCtx, "session started", logger.GroupID(id.GroupID))
	return sessCtx, gen
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionGen == gen && e.session != ""
}

// resolveTier attaches the tier listener for the current group and waits a bounded
// time for the first authoritative value before declaring the session Ready. A
// newer resolution cancels the wait of an older one.
func (e *Engine) resolveTier(sessCtx context.Context, gen uint64) {
	e.mu.Lock()
	if e.sessionGen != gen {
		e.mu.Unlock()
		return
	}
	if e.tierCancel != nil {
		e.tierCancel()
	}
	ctx, cancel := context.WithCancel(sessCtx)
	e.tierCancel = cancel
	groupID := e.identity.GroupID
	e.mu.Unlock()

	if info, ok := e.purchases.CustomerInfo(); ok {
		e.reconciler.ObserveCustomerInfo(ctx, info)
	}
	e.reconciler.ObserveGroup(ctx, groupID)

	if groupID == "" {
		// Without a group there is no shared tier.
		e.tiers.Unsubscribe()
		if err := e.purchases.RememberTier(ctx, tier.Free); err != nil {
			e.log.DebugContext(ctx, "tier snapshot not saved", logger.Error(err))
		}
	} else {
		resolved := make(chan struct{})
		var once sync.Once
		err := e.tiers.Subscribe(ctx, groupID, func(rec tier.Record) {
			e.onTier(sessCtx, gen, rec)
			once.Do(func() { close(resolved) })
		})
		if _, ok := e.tiers.Current(); ok && e.tiers.GroupID() == groupID {
			// Listener for this group was already live.
			once.Do(func() { close(resolved) })
		}
		if err != nil {
			e.log.WarnContext(ctx, "tier listener unavailable, using cached tier", logger.GroupID(groupID), logger.Error(err))
		} else {
			timer := e.clock.NewTimer(e.cfg.TierResolveTimeout)
			select {
			case <-resolved:
				timer.Stop()
			case <-timer.Chan():
				e.log.WarnContext(ctx, "tier not resolved in time, using cached tier",
					logger.GroupID(groupID), logger.Delay(e.cfg.TierResolveTimeout))
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}

	if ctx.Err() != nil || !e.current(gen) {
		return
	}
	if err := e.seq.TierResolved(ctx); err != nil {
		return
	}
	e.recompute(ctx)
	e.startConsent(sessCtx, gen)
}

// SetGroup records a group change for the active session. Once Ready it re-runs
// tier resolution; before that the in-flight Identify picks the new group up.
func (e *Engine) SetGroup(ctx context.Context, groupID string) error {
	e.mu.Lock()
	if e.session == "" {
		e.mu.Unlock()
		return ErrNoSession
	}
	if e.identity.GroupID == groupID {
		e.mu.Unlock()
		return nil
	}
	e.identity.GroupID = groupID
	gen, sessCtx := e.sessionGen, e.sessionCtx
	e.mu.Unlock()

	e.log.InfoContext(sessCtx, "group changed", logger.GroupID(groupID))

	switch e.seq.Phase() {
	case PhaseReady:
		if err := e.seq.GroupChanged(sessCtx); err != nil {
			return err
		}
		e.recompute(sessCtx)
		e.resolveTier(sessCtx, gen)
	case PhaseResolvingTier:
		e.resolveTier(sessCtx, gen)
	}
	return nil
}

// Logout ends the session. Listeners are detached first (tier, customer info, ad
// events, app foreground), then timers are cleared, then the purchase identity is
// logged out. The tier falls back to free.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	if e.session == "" {
		e.mu.Unlock()
		return nil
	}
	e.sessionGen++
	e.session = ""
	e.identity = Identity{}
	sessionCancel, tierCancel := e.sessionCancel, e.tierCancel
	removeForeground := e.removeForeground
	e.sessionCancel, e.tierCancel, e.removeForeground = nil, nil, nil
	e.sessionCtx = nil
	e.mu.Unlock()

	e.tiers.Unsubscribe()
	if sessionCancel != nil {
		// Ends the customer info subscription.
		sessionCancel()
	}
	if removeForeground != nil {
		removeForeground()
	}
	// A consent form left open by this session is not an answer.
	e.consent.Cancel(ctx)
	e.ads.SetEligible(ctx, false)

	if tierCancel != nil {
		tierCancel()
	}
	e.ads.ClearPending()

	e.reconciler.ObserveGroup(ctx, "")
	e.reconciler.Reset()
	err := e.purchases.Logout(ctx)
	e.seq.Reset(ctx)
	e.recompute(ctx)

	e.log.InfoContext(ctx, "session ended")
	if err != nil {
		e.log.WarnContext(ctx, "purchase logout failed", logger.Error(err))
	}
	return err
}

// Detach ends the session and releases every component.
func (e *Engine) Detach(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	logoutErr := e.Logout(ctx)

	e.mu.Lock()
	e.closed = true
	e.attached = false
	e.mu.Unlock()

	e.reconciler.Wait()
	return errors.Join(
		logoutErr,
		e.ads.Close(),
		e.purchases.Close(),
		e.snapshots.Close(),
	)
}

func (e *Engine) onCustomerInfo(ctx context.Context, gen uint64, info purchase.CustomerInfo) {
	if !e.current(gen) {
		return
	}
	e.reconciler.ObserveCustomerInfo(ctx, info)
	e.recompute(ctx)
}

func (e *Engine) onTier(ctx context.Context, gen uint64, rec tier.Record) {
	if !e.current(gen) {
		return
	}
	e.purchases.TierUpdated()
	if err := e.purchases.RememberTier(ctx, rec.Tier); err != nil {
		e.log.DebugContext(ctx, "tier snapshot not saved", logger.Error(err))
	}
	e.recompute(ctx)
}

func (e *Engine) onForeground(gen uint64) {
	e.mu.Lock()
	if e.sessionGen != gen || e.session == "" {
		e.mu.Unlock()
		return
	}
	ctx := e.sessionCtx
	e.mu.Unlock()

	if e.seq.Ready() && e.consent.State() == consent.NotChecked {
		e.startConsent(ctx, gen)
	}
	e.ads.Foreground(ctx)
}

// startConsent gathers consent off the caller's goroutine. Ads initialize only
// when consent allows them.
func (e *Engine) startConsent(ctx context.Context, gen uint64) {
	gather := async.Async(ctx, gen, func(ctx context.Context, _ uint64) (consent.State, error) {
		st, err := e.consent.Gather(ctx)
		if err != nil {
			e.log.WarnContext(ctx, "consent gathering ended without ads", logger.ConsentState(st), logger.Error(err))
		}
		return st, err
	})
	run := async.Then(ctx, gather, func(ctx context.Context, st consent.State) (consent.State, error) {
		if e.current(gen) && st.AllowsAds() {
			e.initializeAds(ctx)
			e.recompute(ctx)
		}
		return st, nil
	})

	e.mu.Lock()
	e.consentRun = run
	e.mu.Unlock()
}

func (e *Engine) initializeAds(ctx context.Context) {
	if err := e.ads.Initialize(ctx); err != nil {
		e.log.WarnContext(ctx, "ads disabled", logger.Error(err))
	}
}

// WaitConsent blocks until the latest consent run finishes or ctx is done.
func (e *Engine) WaitConsent(ctx context.Context) (consent.State, error) {
	e.mu.Lock()
	run := e.consentRun
	e.mu.Unlock()

	if run == nil {
		run = async.Resolved(e.consent.State(), nil)
	}
	st, err := run.AwaitContext(ctx)
	if err != nil && ctx.Err() == nil {
		return e.consent.State(), err
	}
	return st, err
}

// RetryConsent forces a new consent flow. It is refused with consent.ErrNotReady
// until the session is Ready.
func (e *Engine) RetryConsent(ctx context.Context) error {
	st, err := e.consent.Retry(ctx)
	if errors.Is(err, consent.ErrNotReady) {
		return err
	}
	if st.AllowsAds() {
		e.initializeAds(ctx)
	}
	e.recompute(ctx)
	return err
}

// ShowInterstitial shows an interstitial when ads are eligible, loaded and off cooldown.
func (e *Engine) ShowInterstitial(ctx context.Context) bool {
	return e.ads.ShowInterstitial(ctx)
}

// SetPendingInterstitial asks for an interstitial on the next app foreground.
func (e *Engine) SetPendingInterstitial() {
	e.ads.SetPendingInterstitial()
}

// ShowRewarded shows a rewarded ad. When it returns true exactly one of the
// callbacks runs later.
func (e *Engine) ShowRewarded(ctx context.Context, onRewarded, onDismissed func()) bool {
	return e.ads.ShowRewarded(ctx, onRewarded, onDismissed)
}

// PresentPaywall presents the purchase paywall. Its result and error are the only
// values from the engine that callers are expected to surface.
func (e *Engine) PresentPaywall(ctx context.Context) (purchase.PaywallResult, error) {
	res, err := e.purchases.PresentPaywall(ctx)
	e.recompute(ctx)
	return res, err
}

// RestorePurchases restores previous purchases.
func (e *Engine) RestorePurchases(ctx context.Context) (purchase.CustomerInfo, error) {
	info, err := e.purchases.RestorePurchases(ctx)
	e.recompute(ctx)
	return info, err
}

// Snapshot returns the current exposed state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	id := e.identity
	e.mu.Unlock()

	phase := e.seq.Phase()
	t, authoritative := e.evaluator.Tier()
	d := e.evaluator.Evaluate()
	st := e.consent.State()

	return Snapshot{
		Phase:             phase,
		UserID:            id.UserID,
		GroupID:           id.GroupID,
		Tier:              t,
		TierAuthoritative: authoritative,
		HasEntitlement:    d.HasEntitlement,
		IsFreeUser:        d.IsFreeUser,
		PremiumUnlocked:   d.PremiumUnlocked,
		IsPurchasing:      e.purchases.IsPurchasing(),
		Degraded:          e.purchases.Degraded(),
		ShouldShowAds:     d.ShouldShowAds && phase == PhaseReady,
		IsInitialized:     e.ads.Initialized(),
		ConsentChecked:    st.Settled(),
		ConsentObtained:   st.AllowsAds(),
		ConsentState:      st,
	}
}

// Watch streams snapshots. The latest snapshot is delivered first; slow readers
// only see the newest value.
func (e *Engine) Watch(ctx context.Context) broadcast.Subscriber[Snapshot] {
	return e.snapshots.Subscribe(ctx)
}

// recompute publishes a fresh snapshot and applies ad eligibility:
// Ready, shouldShowAds and an initialized ad SDK.
func (e *Engine) recompute(ctx context.Context) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	snap := e.Snapshot()
	e.ads.SetEligible(ctx, snap.ShouldShowAds && snap.IsInitialized)
	_ = e.snapshots.Broadcast(ctx, broadcast.Message[Snapshot]{Data: snap})
}

// Ads exposes the ad manager for metrics and diagnostics.
func (e *Engine) Ads() *ads.Manager { return e.ads }

// Reconciler exposes the reconciler for diagnostics.
func (e *Engine) Reconciler() *reconcile.Reconciler { return e.reconciler }

// Sequencer exposes the identity resolution barrier.
func (e *Engine) Sequencer() *Sequencer { return e.seq }
