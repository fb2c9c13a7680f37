package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

const (
	fieldTier      = "subscriptionTier"
	fieldUpdatedAt = "tierUpdatedAt"
)

// Option configures the Redis backed stores.
type Option func(*options)

type options struct {
	prefix string
	log    *slog.Logger
	ttl    time.Duration
}

// WithKeyPrefix namespaces keys and channels. Defaults to "gatekit".
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTTL sets the expiration of snapshot keys. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

func newOptions(opts []Option) options {
	o := options{prefix: "gatekit", log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TierStore keeps group tier records in Redis hashes and announces every write on
// a per-group channel. It implements tier.RealtimeStore.
//
//	key:     {prefix}:groups:{id}:tier      hash {subscriptionTier, tierUpdatedAt}
//	channel: {prefix}:groups:{id}:tier:changes
type TierStore struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// NewTierStore creates a TierStore. Panics if client is nil.
func NewTierStore(client redis.UniversalClient, opts ...Option) *TierStore {
	if client == nil {
		panic("redis: client is required")
	}
	o := newOptions(opts)
	return &TierStore{
		client: client,
		prefix: o.prefix,
		log:    o.log.With(logger.Component("redis_tier_store")),
	}
}

func (s *TierStore) key(groupID string) string {
	return s.prefix + ":groups:" + groupID + ":tier"
}

func (s *TierStore) channel(groupID string) string {
	return s.key(groupID) + ":changes"
}

// Watchers returns the number of live subscriptions on the group channel.
func (s *TierStore) Watchers(ctx context.Context, groupID string) (int64, error) {
	if groupID == "" {
		return 0, tier.ErrEmptyGroupID
	}
	ch := s.channel(groupID)
	counts, err := s.client.PubSubNumSub(ctx, ch).Result()
	if err != nil {
		return 0, err
	}
	return counts[ch], nil
}

// changeMessage is published on the group channel after every write.
type changeMessage struct {
	Tier      string `json:"subscriptionTier"`
	UpdatedAt int64  `json:"tierUpdatedAt"`
}

// Get reads the group record. Groups without a stored tier report tier.Default.
func (s *TierStore) Get(ctx context.Context, groupID string) (tier.Record, error) {
	if groupID == "" {
		return tier.Record{}, tier.ErrEmptyGroupID
	}
	fields, err := s.client.HGetAll(ctx, s.key(groupID)).Result()
	if err != nil {
		return tier.Record{}, err
	}
	return parseRecord(fields)
}

// Update implements tier.RealtimeStore. The hash fields and the change message are
// written in one MULTI block, leaving other hash fields untouched.
func (s *TierStore) Update(ctx context.Context, groupID string, rec tier.Record) error {
	if groupID == "" {
		return tier.ErrEmptyGroupID
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	payload, err := json.Marshal(changeMessage{Tier: string(rec.Tier), UpdatedAt: rec.UpdatedAt.UnixMilli()})
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(groupID),
			fieldTier, string(rec.Tier),
			fieldUpdatedAt, rec.UpdatedAt.UnixMilli(),
		)
		pipe.Publish(ctx, s.channel(groupID), payload)
		return nil
	})
	return err
}

// Watch implements tier.RealtimeStore. The channel subscription is confirmed before
// the stored value is read, so no write between the two is lost. Values older than
// the last delivered one are dropped.
func (s *TierStore) Watch(ctx context.Context, groupID string, fn func(tier.Record)) (tier.Unsubscribe, error) {
	if groupID == "" {
		return nil, tier.ErrEmptyGroupID
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ps := s.client.Subscribe(watchCtx, s.channel(groupID))
	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		_ = ps.Close()
		return nil, errors.Join(ErrWatchFailed, err)
	}

	initial, err := s.Get(ctx, groupID)
	if err != nil {
		cancel()
		_ = ps.Close()
		return nil, errors.Join(ErrWatchFailed, err)
	}

	log := s.log.With(logger.GroupID(groupID))
	messages := ps.Channel()
	go func() {
		last := initial.UpdatedAt
		fn(initial)
		for {
			select {
			case <-watchCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				rec, err := decodeChange(msg.Payload)
				if err != nil {
					log.WarnContext(watchCtx, "dropping tier change", logger.Error(err))
					continue
				}
				if rec.UpdatedAt.Before(last) {
					continue
				}
				last = rec.UpdatedAt
				if watchCtx.Err() != nil {
					return
				}
				fn(rec)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := ps.Close(); err != nil {
				log.Debug("tier watch close failed", logger.Error(err))
			}
		})
	}, nil
}

func decodeChange(payload string) (tier.Record, error) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return tier.Record{}, errors.Join(ErrMalformedRecord, err)
	}
	return tier.Record{Tier: tier.OrFree(msg.Tier), UpdatedAt: fromMillis(msg.UpdatedAt)}, nil
}

func parseRecord(fields map[string]string) (tier.Record, error) {
	rec := tier.Default()
	if len(fields) == 0 {
		return rec, nil
	}
	rec.Tier = tier.OrFree(fields[fieldTier])
	if raw, ok := fields[fieldUpdatedAt]; ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tier.Record{}, errors.Join(ErrMalformedRecord, fmt.Errorf("%s: %w", fieldUpdatedAt, err))
		}
		rec.UpdatedAt = fromMillis(ms)
	}
	return rec, nil
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
