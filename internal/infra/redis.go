package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects the client that backs the realtime event broadcaster and
// the low-stock alert queues. The server cannot run degraded without it, so
// connectivity is checked before startup continues.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
