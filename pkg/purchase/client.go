package purchase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/gatekit/pkg/broadcast"
	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// Client wraps the purchase SDK. It owns the CustomerInfo snapshot, the cached
// fallback tier and the bounded wait that follows a successful purchase.
type Client struct {
	sdk          SDK
	snapshots    SnapshotStore
	log          *slog.Logger
	clock        clockwork.Clock
	syncTimeout  time.Duration
	onPurchasing func(bool)

	flight singleflight.Group
	// opMu keeps login and logout from interleaving.
	opMu sync.Mutex

	mu             sync.Mutex
	configured     bool
	degraded       bool
	closed         bool
	userID         string
	info           CustomerInfo
	hasInfo        bool
	offerings      Offerings
	cached         tier.Tier
	purchasing     bool
	purchaseTimer  clockwork.Timer
	purchaseGen    uint64
	removeListener func()

	updates *broadcast.MemoryBroadcaster[CustomerInfo]
}

// NewClient creates a purchase client around sdk. Panics if sdk is nil.
func NewClient(sdk SDK, opts ...Option) *Client {
	if sdk == nil {
		panic("purchase: SDK is required")
	}
	c := &Client{
		sdk:         sdk,
		log:         slog.Default(),
		clock:       clockwork.NewRealClock(),
		syncTimeout: DefaultSyncTimeout,
		cached:      tier.Free,
		updates:     broadcast.NewMemoryBroadcaster[CustomerInfo](4, broadcast.WithReplay(), broadcast.WithLatestWins()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.snapshots == nil {
		c.snapshots = NewMemorySnapshotStore(0, 0)
	}
	c.log = c.log.With(logger.Component("purchase"))
	return c
}

// Configure initializes the SDK once. A missing key or an SDK failure switches the
// client to degraded mode: no purchase features, cached tier as fallback. The
// returned ErrConfiguration is for logging only.
func (c *Client) Configure(ctx context.Context, apiKey string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.configured {
		c.mu.Unlock()
		return nil
	}
	c.configured = true
	c.mu.Unlock()

	if apiKey == "" {
		c.degrade(ctx, ErrMissingAPIKey)
		return errors.Join(ErrConfiguration, ErrMissingAPIKey)
	}
	if err := c.sdk.Configure(ctx, apiKey); err != nil {
		c.degrade(ctx, err)
		return errors.Join(ErrConfiguration, err)
	}

	remove := c.sdk.AddCustomerInfoListener(c.receive)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		remove()
		return ErrClientClosed
	}
	c.removeListener = remove
	c.mu.Unlock()

	c.log.InfoContext(ctx, "purchase sdk configured")
	return nil
}

func (c *Client) degrade(ctx context.Context, cause error) {
	c.mu.Lock()
	c.degraded = true
	c.cached = tier.Free
	uid := c.userID
	c.mu.Unlock()

	c.log.WarnContext(ctx, "purchase sdk unavailable, running degraded", logger.Error(cause))
	if uid != "" {
		c.loadFallback(ctx, uid)
	}
}

// Degraded reports whether configuration failed.
func (c *Client) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *Client) usable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured && !c.degraded && !c.closed
}

// Login identifies uid with the SDK. Concurrent logins for the same uid share one
// SDK call, and logins never overlap a logout. The cached tier snapshot for uid is
// loaded first so a failed login still has a fallback.
func (c *Client) Login(ctx context.Context, uid string) error {
	if uid == "" {
		return ErrEmptyUserID
	}
	_, err, _ := c.flight.Do("login:"+uid, func() (any, error) {
		c.opMu.Lock()
		defer c.opMu.Unlock()
		return nil, c.login(ctx, uid)
	})
	return err
}

func (c *Client) login(ctx context.Context, uid string) error {
	c.mu.Lock()
	if c.userID != uid {
		c.info = CustomerInfo{}
		c.hasInfo = false
	}
	c.userID = uid
	c.mu.Unlock()

	c.loadFallback(ctx, uid)

	if !c.usable() {
		c.log.DebugContext(ctx, "login skipped, purchase sdk unavailable", logger.UserID(uid))
		return nil
	}

	info, err := c.sdk.LogIn(ctx, uid)
	if err != nil {
		c.log.WarnContext(ctx, "purchase login failed, using cached tier", logger.UserID(uid), logger.Error(err))
		return errors.Join(ErrLogin, err)
	}
	c.setInfo(info)
	c.log.DebugContext(ctx, "purchase login complete", logger.UserID(uid))
	return nil
}

func (c *Client) loadFallback(ctx context.Context, uid string) {
	snap, err := c.snapshots.Load(ctx, uid)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			c.log.WarnContext(ctx, "failed to load cached tier", logger.UserID(uid), logger.Error(err))
		}
		snap.Tier = tier.Free
	}

	c.mu.Lock()
	if c.userID == uid {
		c.cached = snap.Tier
	}
	c.mu.Unlock()
}

// Logout resets the customer info, fallback tier and purchase wait, then logs
// out of the SDK.
func (c *Client) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	uid := c.userID
	c.userID = ""
	c.info = CustomerInfo{}
	c.hasInfo = false
	c.offerings = Offerings{}
	c.cached = tier.Free
	wasPurchasing := c.stopPurchaseWaitLocked()
	c.mu.Unlock()

	c.updates.Forget()
	if wasPurchasing {
		c.notifyPurchasing(false)
	}

	if uid == "" || !c.usable() {
		return nil
	}
	if _, err := c.sdk.LogOut(ctx); err != nil {
		c.log.WarnContext(ctx, "purchase logout failed", logger.UserID(uid), logger.Error(err))
		return errors.Join(ErrLogout, err)
	}
	c.log.DebugContext(ctx, "purchase logout complete", logger.UserID(uid))
	return nil
}

// UserID returns the logged in purchase identity.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// RefreshCustomerInfo fetches a fresh snapshot from the SDK.
func (c *Client) RefreshCustomerInfo(ctx context.Context) (CustomerInfo, error) {
	if !c.usable() {
		return CustomerInfo{}, ErrConfiguration
	}
	uid := c.UserID()
	info, err := c.sdk.GetCustomerInfo(ctx)
	if err != nil {
		return CustomerInfo{}, errors.Join(ErrCustomerInfo, err)
	}
	if c.UserID() != uid {
		// Identity changed while the call was in flight.
		return info.Clone(), nil
	}
	c.setInfo(info)
	return info.Clone(), nil
}

// Offerings fetches the current offerings and keeps them for CachedOfferings.
func (c *Client) Offerings(ctx context.Context) (Offerings, error) {
	if !c.usable() {
		return Offerings{}, ErrConfiguration
	}
	off, err := c.sdk.GetOfferings(ctx)
	if err != nil {
		return Offerings{}, errors.Join(ErrOfferings, err)
	}
	c.mu.Lock()
	c.offerings = off
	c.mu.Unlock()
	return off, nil
}

// CachedOfferings returns the last fetched offerings.
func (c *Client) CachedOfferings() Offerings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offerings
}

// CustomerInfo returns a copy of the current snapshot.
func (c *Client) CustomerInfo() (CustomerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info.Clone(), c.hasInfo
}

// Subscribe streams customer info snapshots. The last value is replayed to new
// subscribers. Received values are shared and must be treated as read-only.
func (c *Client) Subscribe(ctx context.Context) broadcast.Subscriber[CustomerInfo] {
	return c.updates.Subscribe(ctx)
}

// receive handles SDK pushes. Pushes for another identity are dropped.
func (c *Client) receive(info CustomerInfo) {
	c.mu.Lock()
	uid := c.userID
	closed := c.closed
	c.mu.Unlock()

	if closed || uid == "" || (info.AppUserID != "" && info.AppUserID != uid) {
		return
	}
	c.setInfo(info)
}

func (c *Client) setInfo(info CustomerInfo) {
	info = info.Clone()

	c.mu.Lock()
	c.info = info
	c.hasInfo = true
	c.mu.Unlock()

	_ = c.updates.Broadcast(context.Background(), broadcast.Message[CustomerInfo]{Data: info.Clone()})
}

// PresentPaywall shows the SDK paywall. A purchased or restored result starts the
// bounded tier sync wait. SDK failures return ErrPurchase.
func (c *Client) PresentPaywall(ctx context.Context) (PaywallResult, error) {
	if !c.usable() {
		return PaywallNotPresented, ErrConfiguration
	}

	res, err := c.sdk.PresentPaywall(ctx)
	if err != nil {
		c.log.WarnContext(ctx, "paywall failed", logger.Error(err))
		return PaywallError, errors.Join(ErrPurchase, err)
	}
	if res == PaywallError {
		return res, ErrPurchase
	}
	if res.Succeeded() {
		c.beginPurchaseWait(ctx)
	}
	return res, nil
}

// RestorePurchases restores previous purchases. Concurrent calls share one SDK call.
// The tier sync wait starts only when an active entitlement comes back.
func (c *Client) RestorePurchases(ctx context.Context) (CustomerInfo, error) {
	v, err, _ := c.flight.Do("restore", func() (any, error) {
		if !c.usable() {
			return CustomerInfo{}, ErrConfiguration
		}
		info, err := c.sdk.RestorePurchases(ctx)
		if err != nil {
			c.log.WarnContext(ctx, "restore purchases failed", logger.Error(err))
			return CustomerInfo{}, errors.Join(ErrPurchase, err)
		}
		c.setInfo(info)
		if info.HasActive() {
			c.beginPurchaseWait(ctx)
		}
		return info.Clone(), nil
	})
	info, _ := v.(CustomerInfo)
	return info, err
}

// IsPurchasing reports whether a purchase is waiting for the authoritative tier.
func (c *Client) IsPurchasing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purchasing
}

func (c *Client) beginPurchaseWait(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.purchaseTimer != nil {
		c.purchaseTimer.Stop()
	}
	c.purchaseGen++
	gen := c.purchaseGen
	was := c.purchasing
	c.purchasing = true
	c.purchaseTimer = c.clock.AfterFunc(c.syncTimeout, func() { c.expirePurchaseWait(gen) })
	c.mu.Unlock()

	c.log.DebugContext(ctx, "waiting for tier sync", logger.Delay(c.syncTimeout))
	if !was {
		c.notifyPurchasing(true)
	}
}

func (c *Client) expirePurchaseWait(gen uint64) {
	c.mu.Lock()
	if gen != c.purchaseGen || !c.purchasing {
		c.mu.Unlock()
		return
	}
	c.purchasing = false
	c.purchaseTimer = nil
	c.mu.Unlock()

	c.log.Debug("tier sync wait elapsed")
	c.notifyPurchasing(false)
}

// TierUpdated is called when the authoritative tier listener fires. It ends a
// pending purchase wait and cancels its timer.
func (c *Client) TierUpdated() {
	c.mu.Lock()
	was := c.stopPurchaseWaitLocked()
	c.mu.Unlock()

	if was {
		c.notifyPurchasing(false)
	}
}

// Must be called with lock held.
func (c *Client) stopPurchaseWaitLocked() bool {
	if c.purchaseTimer != nil {
		c.purchaseTimer.Stop()
		c.purchaseTimer = nil
	}
	c.purchaseGen++
	was := c.purchasing
	c.purchasing = false
	return was
}

func (c *Client) notifyPurchasing(v bool) {
	if c.onPurchasing != nil {
		c.onPurchasing(v)
	}
}

// RememberTier persists t as the cached tier snapshot for the logged in user.
func (c *Client) RememberTier(ctx context.Context, t tier.Tier) error {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()

	if uid == "" {
		return ErrNotLoggedIn
	}
	snap := CachedTierSnapshot{Tier: t, Timestamp: c.clock.Now()}
	if err := c.snapshots.Save(ctx, uid, snap); err != nil {
		return err
	}

	c.mu.Lock()
	if c.userID == uid {
		c.cached = t
	}
	c.mu.Unlock()
	return nil
}

// CachedTier returns the fallback display tier.
func (c *Client) CachedTier() tier.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// Close removes the SDK listener, stops the purchase timer and closes the
// customer info stream.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	remove := c.removeListener
	c.removeListener = nil
	c.stopPurchaseWaitLocked()
	c.mu.Unlock()

	if remove != nil {
		remove()
	}
	return c.updates.Close()
}
