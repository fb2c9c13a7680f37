package ads_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/gatekit/pkg/ads"
)

type fakeAd struct {
	mu        sync.Mutex
	listeners map[int]func(ads.Event)
	next      int
	loadErr   error
	showErr   error

	loads atomic.Int32
	shows atomic.Int32
}

func newFakeAd() *fakeAd {
	return &fakeAd{listeners: make(map[int]func(ads.Event))}
}

func (a *fakeAd) Load(context.Context) error {
	a.loads.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadErr
}

func (a *fakeAd) Show(context.Context) error {
	a.shows.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.showErr
}

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

type fakeSDK struct {
	mu      sync.Mutex
	ads     map[ads.Kind]*fakeAd
	inits   atomic.Int32
	initErr error
}

func newFakeSDK() *fakeSDK {
	return &fakeSDK{ads: make(map[ads.Kind]*fakeAd)}
}

func (s *fakeSDK) Initialize(context.Context) error {
	s.inits.Add(1)
	return s.initErr
}

func (s *fakeSDK) CreateForAdRequest(kind ads.Kind, _ string) (ads.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := newFakeAd()
	s.ads[kind] = ad
	return ad, nil
}

func (s *fakeSDK) ad(kind ads.Kind) *fakeAd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ads[kind]
}
