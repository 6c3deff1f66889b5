package redis

import (
	"context"
	"fmt"
	"time"

	"pawplan/internal/infra/metrics"
)

// RateLimiter is a fixed-window counter.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.IncrWindow(ctx, key, window)
	if err != nil {
		return false, err
	}

	if count > int64(limit) {
		metrics.IncCacheRequest("rate_limit", "blocked")
		return false, nil
	}
	metrics.IncCacheRequest("rate_limit", "allowed")
	return true, nil
}

func ClientKey(scope, client string) string {
	return fmt.Sprintf("rate_limit:%s:%s", scope, client)
}
