// Package redis connects to Redis and backs the tier and snapshot stores with it.
//
// TierStore implements tier.RealtimeStore. Each group record is a hash holding
// subscriptionTier and tierUpdatedAt (unix milliseconds), and every write is
// announced on a per-group channel inside the same MULTI block:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	tiers := redis.NewTierStore(client, redis.WithKeyPrefix(cfg.KeyPrefix))
//	snapshots := redis.NewSnapshotStore(client, redis.WithTTL(cfg.SnapshotTTL))
//
// SnapshotStore implements purchase.SnapshotStore and keeps the cached display
// tier per user as JSON.
//
// Healthcheck wraps PING and reports its latency.
package redis
