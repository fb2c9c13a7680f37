package ads

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/statemachine"
)

// Slot preloads and shows one ad type.
//
//	Idle -> Loading -> Loaded -> Showing -> Closed -> Loading
//	Loading -> Error -> Loading (after backoff, at most Policy.MaxRetries times)
//
// Past the retry cap the slot stays in Error until it is stopped and started again.
type Slot struct {
	kind    Kind
	unitID  string
	sdk     SDK
	policy  Policy
	log     *slog.Logger
	clock   clockwork.Clock
	metrics *Metrics
	sm      *statemachine.Machine[SlotState, slotEvent]

	mu         sync.Mutex
	ctx        context.Context
	running    bool
	gen        uint64
	ad         Ad
	removeAd   func()
	retryCount int
	retryTimer clockwork.Timer
	lastShown  time.Time
	shown      bool

	earned      bool
	onRewarded  func()
	onDismissed func()
}

// NewSlot creates a stopped slot. Panics if sdk is nil.
func NewSlot(sdk SDK, kind Kind, unitID string, policy Policy, opts ...Option) *Slot {
	if sdk == nil {
		panic("ads: SDK is required")
	}
	if policy.Backoff == nil {
		policy.Backoff = DefaultBackoffStrategy()
	}
	o := newOptions(opts)
	s := &Slot{
		kind:    kind,
		unitID:  unitID,
		sdk:     sdk,
		policy:  policy,
		log:     o.log.With(logger.Component("ad_slot"), logger.AdKind(kind)),
		clock:   o.clock,
		metrics: o.metrics,
		ctx:     context.Background(),
	}
	s.sm = statemachine.MustNew(StateIdle,
		statemachine.WithTransitionFrom([]SlotState{StateIdle, StateClosed, StateError}, StateLoading, evLoad),
		statemachine.WithTransition(StateLoading, StateLoaded, evLoaded,
			statemachine.WithAction(func(context.Context, SlotState, SlotState, slotEvent) error {
				// Runs with s.mu held by handle.
				s.retryCount = 0
				s.metrics.loaded(s.kind)
				return nil
			}),
		),
		statemachine.WithTransitionFrom([]SlotState{StateLoading, StateLoaded, StateShowing}, StateError, evFail),
		statemachine.WithTransition(StateLoaded, StateShowing, evShow),
		statemachine.WithTransition(StateShowing, StateClosed, evClose),
		statemachine.WithObserver(func(from, to SlotState, _ slotEvent) {
			s.log.Debug("ad slot state changed", logger.Transition(from, to))
		}),
	)
	return s
}

// Kind returns the slot's ad type.
func (s *Slot) Kind() Kind { return s.kind }

// State returns the current slot state.
func (s *Slot) State() SlotState { return s.sm.Current() }

// RetryCount returns the number of retries scheduled since the last successful load.
func (s *Slot) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// Running reports whether the slot is started.
func (s *Slot) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start creates the SDK ad, attaches its listener and begins loading.
// Starting a running slot is a no-op.
func (s *Slot) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ad, err := s.sdk.CreateForAdRequest(s.kind, s.unitID)
	if err != nil {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "failed to create ad", logger.Error(err))
		return errors.Join(ErrCreateAd, err)
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.ctx = context.WithoutCancel(ctx)
	s.ad = ad
	s.retryCount = 0
	s.mu.Unlock()

	remove := ad.AddListener(func(ev Event) { s.handle(gen, ev) })

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		remove()
		return nil
	}
	s.removeAd = remove
	s.mu.Unlock()

	s.load(gen)
	return nil
}

// Stop detaches the ad listener, then cancels the retry timer and returns to Idle.
// A rewarded ad on screen resolves as dismissed.
func (s *Slot) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	gen := s.gen
	remove := s.removeAd
	s.removeAd = nil
	s.mu.Unlock()

	if remove != nil {
		remove()
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	var resolve func()
	if s.sm.Is(StateShowing) {
		resolve = s.resolveRewardLocked()
	}
	s.clearRewardLocked()
	s.sm.Reset()
	s.ad = nil
	s.retryCount = 0
	s.mu.Unlock()

	if resolve != nil {
		resolve()
	}
	s.log.Debug("ad slot stopped")
}

func (s *Slot) load(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running {
		s.mu.Unlock()
		return
	}
	if err := s.sm.Fire(s.ctx, evLoad); err != nil {
		s.mu.Unlock()
		return
	}
	ad, ctx := s.ad, s.ctx
	s.mu.Unlock()

	if err := ad.Load(ctx); err != nil {
		s.handle(gen, Event{Type: EventError, Err: err})
	}
}

func (s *Slot) retry(gen uint64) {
	s.mu.Lock()
	if gen == s.gen {
		s.retryTimer = nil
	}
	s.mu.Unlock()
	s.load(gen)
}

func (s *Slot) handle(gen uint64, ev Event) {
	s.mu.Lock()
	if gen != s.gen || !s.running {
		s.mu.Unlock()
		return
	}

	var (
		resolve func()
		reload  bool
	)
	state := s.sm.Current()

	switch ev.Type {
	case EventLoaded:
		_ = s.sm.Fire(s.ctx, evLoaded)
	case EventOpened:
	case EventEarnedReward:
		if state == StateShowing {
			s.earned = true
		}
	case EventClosed:
		if state == StateShowing && s.sm.Fire(s.ctx, evClose) == nil {
			resolve = s.resolveRewardLocked()
			reload = true
		}
	case EventError:
		if s.sm.Fire(s.ctx, evFail) != nil {
			break
		}
		if state == StateShowing {
			resolve = s.resolveRewardLocked()
		} else {
			s.metrics.loadFailed(s.kind)
		}
		s.log.WarnContext(s.ctx, "ad failed", logger.SlotState(state), logger.Error(errors.Join(ErrAdLoad, ev.Err)))
		s.scheduleRetryLocked(gen)
	}
	s.mu.Unlock()

	if resolve != nil {
		resolve()
	}
	if reload {
		s.load(gen)
	}
}

// Must be called with lock held.
func (s *Slot) scheduleRetryLocked(gen uint64) {
	if s.retryCount >= s.policy.MaxRetries {
		s.metrics.abandoned(s.kind)
		s.log.WarnContext(s.ctx, "ad load abandoned", logger.RetryCount(s.retryCount))
		return
	}
	delay := s.policy.Backoff.NextInterval(s.retryCount)
	s.retryCount++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = s.clock.AfterFunc(delay, func() { s.retry(gen) })
	s.metrics.retried(s.kind)
	s.log.DebugContext(s.ctx, "ad load retry scheduled", logger.RetryCount(s.retryCount), logger.Delay(delay))
}

// Show presents a loaded ad. It returns false without side effects when the slot
// is stopped, not loaded or still cooling down.
func (s *Slot) Show(ctx context.Context) bool {
	return s.show(ctx, nil, nil)
}

// ShowRewarded presents a loaded rewarded ad. When it returns true, exactly one of
// onRewarded (reward earned) or onDismissed runs once the ad closes. When it
// returns false neither runs.
func (s *Slot) ShowRewarded(ctx context.Context, onRewarded, onDismissed func()) bool {
	return s.show(ctx, onRewarded, onDismissed)
}

func (s *Slot) show(ctx context.Context, onRewarded, onDismissed func()) bool {
	s.mu.Lock()
	if reason, ok := s.canShowLocked(); !ok {
		s.mu.Unlock()
		s.metrics.rejected(s.kind, reason)
		return false
	}
	if err := s.sm.Fire(ctx, evShow); err != nil {
		s.mu.Unlock()
		s.metrics.rejected(s.kind, reasonNotLoaded)
		return false
	}
	prevShown, hadShown := s.lastShown, s.shown
	s.lastShown = s.clock.Now()
	s.shown = true
	s.earned = false
	s.onRewarded = onRewarded
	s.onDismissed = onDismissed
	ad, gen := s.ad, s.gen
	s.mu.Unlock()

	if err := ad.Show(ctx); err != nil {
		s.mu.Lock()
		if gen == s.gen {
			// Nothing reached the screen: no callback is owed and no cooldown starts.
			s.clearRewardLocked()
			s.lastShown, s.shown = prevShown, hadShown
		}
		s.mu.Unlock()
		s.metrics.rejected(s.kind, reasonShowFailed)
		s.handle(gen, Event{Type: EventError, Err: errors.Join(ErrShow, err)})
		return false
	}
	s.metrics.shown(s.kind)
	return true
}

// Must be called with lock held.
func (s *Slot) canShowLocked() (string, bool) {
	if !s.running {
		return reasonIneligible, false
	}
	if !s.sm.Is(StateLoaded) {
		return reasonNotLoaded, false
	}
	if s.policy.Cooldown > 0 && s.shown && s.clock.Since(s.lastShown) <= s.policy.Cooldown {
		return reasonCooldown, false
	}
	return "", true
}

// resolveRewardLocked picks the callback owed for the ad on screen and clears the
// pair so it can run at most once. Must be called with lock held.
func (s *Slot) resolveRewardLocked() func() {
	fn := s.onDismissed
	if s.earned {
		fn = s.onRewarded
	}
	s.clearRewardLocked()
	return fn
}

// Must be called with lock held.
func (s *Slot) clearRewardLocked() {
	s.earned = false
	s.onRewarded = nil
	s.onDismissed = nil
}
