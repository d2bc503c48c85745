package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner periodically removes empty sliding-window keys from Redis and idle
// buckets from the in-memory fallback.
type Cleaner struct {
	client   redis.UniversalClient
	memory   *MemoryLimiter
	log      *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewCleaner constructs a Cleaner. Either backend may be nil.
func NewCleaner(client redis.UniversalClient, memory *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		memory:   memory,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass and returns the number of Redis keys removed.
func (c *Cleaner) Sweep(ctx context.Context) int {
	if c.memory != nil {
		c.memory.Cleanup(c.maxAge)
	}
	if c.client == nil || ctx.Err() != nil {
		return 0
	}

	const scanCount = 100

	var (
		cursor  uint64
		cleaned int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", scanCount).Result()
		if err != nil {
			c.log.Error("rate limit scan failed", slog.Any("error", err))
			return cleaned
		}

		for _, key := range keys {
			count, err := c.client.ZCard(ctx, key).Result()
			if err != nil {
				c.log.Warn("failed to read zset cardinality", slog.String("key", key), slog.Any("error", err))
				continue
			}
			if count > 0 {
				continue
			}
			if err := c.client.Del(ctx, key).Err(); err != nil {
				c.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
				continue
			}
			cleaned++
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	if cleaned > 0 {
		c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", cleaned))
	}
	return cleaned
}
