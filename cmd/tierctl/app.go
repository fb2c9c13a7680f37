package main

import (
	"context"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gatekit/pkg/config"
	"github.com/dmitrymomot/gatekit/pkg/redis"
)

type app struct {
	log     *slog.Logger
	out     io.Writer
	connect func(ctx context.Context) (goredis.UniversalClient, redis.Config, error)
}

func newApp(log *slog.Logger, out io.Writer) *app {
	return &app{
		log: log,
		out: out,
		connect: func(ctx context.Context) (goredis.UniversalClient, redis.Config, error) {
			var cfg redis.Config
			if err := config.Load(&cfg); err != nil {
				return nil, cfg, err
			}
			client, err := redis.Connect(ctx, cfg)
			return client, cfg, err
		},
	}
}

// stores connects and builds both stores. The returned func closes the client.
func (a *app) stores(ctx context.Context) (*redis.TierStore, *redis.SnapshotStore, func(), error) {
	client, cfg, err := a.connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := []redis.Option{
		redis.WithKeyPrefix(cfg.KeyPrefix),
		redis.WithLogger(a.log),
		redis.WithTTL(cfg.SnapshotTTL),
	}
	return redis.NewTierStore(client, opts...), redis.NewSnapshotStore(client, opts...), func() { _ = client.Close() }, nil
}
