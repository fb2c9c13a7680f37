package gatekeeper_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/gatekit/pkg/ads"
	"github.com/dmitrymomot/gatekit/pkg/consent"
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

type fakePurchases struct {
	mu           sync.Mutex
	configureErr error
	infos        map[string]purchase.CustomerInfo
	user         string
	listener     func(purchase.CustomerInfo)
	paywall      purchase.PaywallResult

	logins  atomic.Int32
	logouts atomic.Int32
}

func newFakePurchases() *fakePurchases {
	return &fakePurchases{infos: make(map[string]purchase.CustomerInfo), paywall: purchase.PaywallCancelled}
}

func (f *fakePurchases) Configure(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configureErr
}

func (f *fakePurchases) LogIn(_ context.Context, uid string) (purchase.CustomerInfo, error) {
	f.logins.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = uid
	return f.infoLocked(), nil
}

func (f *fakePurchases) LogOut(context.Context) (purchase.CustomerInfo, error) {
	f.logouts.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = ""
	return purchase.CustomerInfo{}, nil
}

func (f *fakePurchases) GetCustomerInfo(context.Context) (purchase.CustomerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoLocked(), nil
}

func (f *fakePurchases) GetOfferings(context.Context) (purchase.Offerings, error) {
	return purchase.Offerings{}, nil
}

func (f *fakePurchases) AddCustomerInfoListener(fn func(purchase.CustomerInfo)) func() {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listener = nil
		f.mu.Unlock()
	}
}

func (f *fakePurchases) PresentPaywall(context.Context) (purchase.PaywallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paywall, nil
}

func (f *fakePurchases) RestorePurchases(context.Context) (purchase.CustomerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoLocked(), nil
}

func (f *fakePurchases) infoLocked() purchase.CustomerInfo {
	info := f.infos[f.user]
	info.AppUserID = f.user
	return info.Clone()
}

func (f *fakePurchases) grant(uid, product string) purchase.CustomerInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := purchase.CustomerInfo{
		AppUserID: uid,
		Entitlements: map[string]purchase.EntitlementInfo{
			entitlementID: {Identifier: entitlementID, ProductIdentifier: product, Active: true},
		},
	}
	f.infos[uid] = info
	return info
}

func (f *fakePurchases) push(info purchase.CustomerInfo) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(info)
	}
}

type fakeConsent struct {
	mu     sync.Mutex
	info   consent.Info
	err    error
	opened chan struct{}
	checks atomic.Int32
}

func newFakeConsent(canRequestAds bool) *fakeConsent {
	status := consent.StatusObtained
	if !canRequestAds {
		status = consent.StatusRequired
	}
	return &fakeConsent{info: consent.Info{CanRequestAds: canRequestAds, Status: status}}
}

func (f *fakeConsent) RequestInfoUpdate(context.Context) error {
	f.checks.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// LoadAndShowFormIfRequired keeps the form open until ctx is done once holdForm
// has been called.
func (f *fakeConsent) LoadAndShowFormIfRequired(ctx context.Context) error {
	f.mu.Lock()
	opened := f.opened
	f.opened = nil
	f.mu.Unlock()
	if opened == nil {
		return nil
	}
	close(opened)
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsent) holdForm() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = make(chan struct{})
	return f.opened
}

func (f *fakeConsent) ConsentInfo(context.Context) (consent.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, nil
}

func (f *fakeConsent) Reset(context.Context) error { return nil }

func (f *fakeConsent) set(canRequestAds bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info.CanRequestAds = canRequestAds
	if canRequestAds {
		f.info.Status = consent.StatusObtained
	}
}

type fakeAd struct {
	mu        sync.Mutex
	listeners map[int]func(ads.Event)
	next      int
}

func (a *fakeAd) Load(context.Context) error { return nil }
func (a *fakeAd) Show(context.Context) error { return nil }

func (a *fakeAd) AddListener(fn func(ads.Event)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *fakeAd) emit(t ads.EventType) {
	a.mu.Lock()
	fns := make([]func(ads.Event), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(ads.Event{Type: t})
	}
}

func (a *fakeAd) listenerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

type fakeAds struct {
	mu    sync.Mutex
	ads   map[ads.Kind]*fakeAd
	inits atomic.Int32
}

func newFakeAds() *fakeAds {
	return &fakeAds{ads: make(map[ads.Kind]*fakeAd)}
}

func (s *fakeAds) Initialize(context.Context) error {
	s.inits.Add(1)
	return nil
}

func (s *fakeAds) CreateForAdRequest(kind ads.Kind, _ string) (ads.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := &fakeAd{listeners: make(map[int]func(ads.Event))}
	s.ads[kind] = ad
	return ad, nil
}

func (s *fakeAds) ad(kind ads.Kind) *fakeAd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ads[kind]
}

// silentStore accepts writes but never delivers a tier.
type silentStore struct {
	mu      sync.Mutex
	watches int
	writes  []tier.Record
}

func (s *silentStore) Watch(context.Context, string, func(tier.Record)) (tier.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches++
	return func() {}, nil
}

func (s *silentStore) Update(_ context.Context, _ string, rec tier.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, rec)
	return nil
}

type fakeLifecycle struct {
	mu       sync.Mutex
	fn       func()
	onRemove func()
}

func (l *fakeLifecycle) OnForeground(fn func()) func() {
	l.mu.Lock()
	l.fn = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.fn = nil
		hook := l.onRemove
		l.mu.Unlock()
		if hook != nil {
			hook()
		}
	}
}

func (l *fakeLifecycle) beforeRemove(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRemove = fn
}

func (l *fakeLifecycle) foreground() {
	l.mu.Lock()
	fn := l.fn
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *fakeLifecycle) registered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fn != nil
}
