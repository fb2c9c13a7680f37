package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/purchase"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

// DefaultWriteTimeout bounds a single reconciliation write.
const DefaultWriteTimeout = 10 * time.Second

// Writer is the partial-update side of the realtime tier store.
type Writer interface {
	Update(ctx context.Context, groupID string, rec tier.Record) error
}

// GroupIdentity is a two-slot memory of the group id, one step back.
type GroupIdentity struct {
	Previous string
	Current  string
}

// Joined reports the no group to group transition that authorizes a write.
func (g GroupIdentity) Joined() bool {
	return g.Previous == "" && g.Current != ""
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the clock used for tierUpdatedAt.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Reconciler) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to unregistered counters.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// Reconciler performs the single client-side tier write: when a user with an
// active entitlement moves from no group into a group, the entitlement's product
// is mapped to a tier and written to that group once.
//
// Decisions are made synchronously in call order. Writes run in the background
// and never block the caller.
type Reconciler struct {
	w             Writer
	entitlementID string
	products      tier.ProductMap
	log           *slog.Logger
	clock         clockwork.Clock
	metrics       *Metrics
	writeTimeout  time.Duration

	mu       sync.Mutex
	identity GroupIdentity
	info     purchase.CustomerInfo
	hasInfo  bool
	pending  string

	wg sync.WaitGroup
}

// New creates a Reconciler. Panics if w is nil or entitlementID is empty.
func New(w Writer, entitlementID string, products tier.ProductMap, opts ...Option) *Reconciler {
	if w == nil {
		panic("reconcile: Writer is required")
	}
	if entitlementID == "" {
		panic("reconcile: entitlement id is required")
	}
	r := &Reconciler{
		w:             w,
		entitlementID: entitlementID,
		products:      products,
		log:           slog.Default(),
		clock:         clockwork.NewRealClock(),
		writeTimeout:  DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	r.log = r.log.With(logger.Component("reconciler"))
	return r
}

// ObserveGroup records the current group id. It schedules a write only on the
// no group to group transition while the latest customer info has an active
// entitlement. When no customer info has arrived yet the write is held until
// ObserveCustomerInfo delivers one, unless the group changes again first.
// It reports whether a write was scheduled.
func (r *Reconciler) ObserveGroup(ctx context.Context, groupID string) bool {
	r.mu.Lock()
	r.identity = GroupIdentity{Previous: r.identity.Current, Current: groupID}
	identity := r.identity
	r.pending = ""

	if !identity.Joined() {
		r.mu.Unlock()
		return false
	}
	if !r.hasInfo {
		r.pending = groupID
		r.mu.Unlock()
		r.log.DebugContext(ctx, "reconciliation waiting for customer info", logger.GroupID(groupID))
		return false
	}
	info := r.info
	r.mu.Unlock()

	return r.maybeWrite(ctx, groupID, info)
}

// ObserveCustomerInfo records the latest customer info and performs a held write.
// It reports whether a write was scheduled.
func (r *Reconciler) ObserveCustomerInfo(ctx context.Context, info purchase.CustomerInfo) bool {
	r.mu.Lock()
	r.info = info.Clone()
	r.hasInfo = true
	groupID := r.pending
	r.pending = ""
	r.mu.Unlock()

	if groupID == "" {
		return false
	}
	return r.maybeWrite(ctx, groupID, info)
}

// Identity returns the current two-slot group memory.
func (r *Reconciler) Identity() GroupIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// Reset forgets customer info and any held write. The group memory is kept so
// that a logout is observed as a group transition like any other.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = purchase.CustomerInfo{}
	r.hasInfo = false
	r.pending = ""
}

// Wait blocks until scheduled writes have finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) maybeWrite(ctx context.Context, groupID string, info purchase.CustomerInfo) bool {
	ent, ok := info.ActiveEntitlement(r.entitlementID)
	if !ok {
		return false
	}
	rec := tier.Record{
		Tier:      r.products.Resolve(ent.ProductIdentifier),
		UpdatedAt: r.clock.Now(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.write(context.WithoutCancel(ctx), groupID, rec)
	}()
	return true
}

func (r *Reconciler) write(ctx context.Context, groupID string, rec tier.Record) {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.w.Update(ctx, groupID, rec); err != nil {
		r.metrics.writeFailed()
		r.log.WarnContext(ctx, "tier reconciliation write failed",
			logger.GroupID(groupID),
			logger.Tier(rec.Tier),
			logger.Error(errors.Join(ErrWrite, err)),
		)
		return
	}
	r.metrics.writeSucceeded()
	r.log.InfoContext(ctx, "tier reconciled from entitlement", logger.GroupID(groupID), logger.Tier(rec.Tier))
}
