// Copyright 2025 James Ross
package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher returns a publish func suitable for New, backed by rdb.
// It is a pure latency optimization: Add still succeeds if the publish
// fails, since ClaimNextQueued's polling ticker is the correctness
// fallback. Add logs and ignores a publish error from any publish func,
// this one included.
func RedisPublisher(rdb *redis.Client) func(ctx context.Context, channel, payload string) error {
	return func(ctx context.Context, channel, payload string) error {
		return rdb.Publish(ctx, channel, payload).Err()
	}
}
