package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Health is the outcome of one check.
type Health struct {
	Latency time.Duration
}

// Healthcheck returns a check that pings the server and reports the round trip.
// Tier watches and snapshot writes fall back to the cached tier when Redis is
// down, so tooling uses it to tell the two apart.
func Healthcheck(client redis.UniversalClient) func(context.Context) (Health, error) {
	return func(ctx context.Context) (Health, error) {
		start := time.Now()
		if err := client.Ping(ctx).Err(); err != nil {
			return Health{}, errors.Join(ErrHealthcheckFailed, err)
		}
		return Health{Latency: time.Since(start)}, nil
	}
}
