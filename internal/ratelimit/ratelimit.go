// Package ratelimit bounds repeated attempts per identifier using a Redis
// sliding window of timestamps.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlidingWindow counts attempts in Redis sorted sets keyed per identifier.
type SlidingWindow struct {
	client      *redis.Client
	keyPrefix   string
	maxAttempts int
	window      time.Duration
}

// NewSlidingWindow creates a limiter allowing maxAttempts per window.
func NewSlidingWindow(client *redis.Client, keyPrefix string, maxAttempts int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		client:      client,
		keyPrefix:   keyPrefix,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow records an attempt for identifier and reports whether it is within
// the limit. The trim, count and insert run in one pipeline so concurrent
// callers see a consistent window.
func (l *SlidingWindow) Allow(ctx context.Context, identifier string) (bool, error) {
	key := l.keyPrefix + ":" + identifier
	now := time.Now()
	threshold := strconv.FormatInt(now.Add(-l.window).UnixNano(), 10)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", threshold)
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}

	return count.Val() < int64(l.maxAttempts), nil
}
