// Package usercache keeps derived copies of user preferences in Redis.
// Entries are never authoritative: a miss or an error means "ask the database".
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/pkg/metrics"
	"github.com/Proton-105/profile-service/pkg/redis"
)

const (
	difficultyKeyPrefix = "user:difficulty:"
	categoriesKeyPrefix = "user:categories:"

	kindDifficulty = "difficulty"
	kindCategories = "categories"

	// DefaultTTL applies when the configured TTL is not positive.
	DefaultTTL = 24 * time.Hour
)

// Cache provides Redis-backed caching for user preferences.
// Calls go through a circuit breaker so a failing Redis is skipped quickly.
type Cache struct {
	kv      redis.KV
	ttl     time.Duration
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// Status tells which preference entries are currently cached for a user.
type Status struct {
	DifficultyCached bool
	CategoriesCached bool
}

// NewCache constructs a preference cache backed by the provided Redis client.
func NewCache(kv redis.KV, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Cache{
		kv:      kv,
		ttl:     ttl,
		breaker: apperrors.NewCircuitBreaker(),
		log:     log.With(slog.String("component", "usercache")),
	}
}

// GetDifficulty returns the cached level. ok is false on a miss.
func (c *Cache) GetDifficulty(ctx context.Context, userID string) (level int, ok bool, err error) {
	raw, ok, err := c.get(ctx, kindDifficulty, DifficultyKey(userID))
	if err != nil || !ok {
		return 0, false, err
	}

	level, convErr := strconv.Atoi(raw)
	if convErr != nil || !domain.ValidDifficulty(level) {
		c.dropCorrupt(ctx, DifficultyKey(userID), raw)
		return 0, false, nil
	}

	return level, true, nil
}

// SetDifficulty stores the level with the cache TTL.
func (c *Cache) SetDifficulty(ctx context.Context, userID string, level int) error {
	return c.set(ctx, DifficultyKey(userID), strconv.Itoa(level))
}

// GetCategories returns the cached category map. An empty map is a valid hit.
func (c *Cache) GetCategories(ctx context.Context, userID string) (domain.CategoryMap, bool, error) {
	raw, ok, err := c.get(ctx, kindCategories, CategoriesKey(userID))
	if err != nil || !ok {
		return nil, false, err
	}

	categories := domain.CategoryMap{}
	if decodeErr := json.Unmarshal([]byte(raw), &categories); decodeErr != nil {
		c.dropCorrupt(ctx, CategoriesKey(userID), raw)
		return nil, false, nil
	}

	return categories, true, nil
}

// SetCategories stores the category map with the cache TTL.
func (c *Cache) SetCategories(ctx context.Context, userID string, categories domain.CategoryMap) error {
	if categories == nil {
		categories = domain.CategoryMap{}
	}

	payload, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode categories for cache: %w", err)
	}

	return c.set(ctx, CategoriesKey(userID), payload)
}

// Invalidate removes every cached preference of the user.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.kv == nil {
		return nil
	}

	err := c.breaker.Call(func() error {
		return c.kv.Delete(ctx, DifficultyKey(userID), CategoriesKey(userID))
	})
	if err != nil {
		return fmt.Errorf("delete cached preferences: %w", err)
	}

	return nil
}

// Status inspects the cache without counting towards lookup metrics.
func (c *Cache) Status(ctx context.Context, userID string) (Status, error) {
	var status Status
	if c == nil || c.kv == nil {
		return status, nil
	}

	for key, dst := range map[string]*bool{
		DifficultyKey(userID): &status.DifficultyCached,
		CategoriesKey(userID): &status.CategoriesCached,
	} {
		_, err := c.kv.Get(ctx, key)
		switch {
		case err == nil:
			*dst = true
		case errors.Is(err, redis.Nil):
		default:
			return Status{}, fmt.Errorf("inspect cache key: %w", err)
		}
	}

	return status, nil
}

func (c *Cache) get(ctx context.Context, kind, key string) (string, bool, error) {
	if c == nil || c.kv == nil {
		return "", false, nil
	}

	var (
		raw   string
		found bool
	)
	err := c.breaker.Call(func() error {
		value, getErr := c.kv.Get(ctx, key)
		if errors.Is(getErr, redis.Nil) {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		raw, found = value, true
		return nil
	})

	switch {
	case err != nil:
		metrics.RecordCacheLookup(kind, "error")
		if apperrors.IsCircuitOpen(err) {
			c.log.Debug("cache skipped, circuit open", slog.String("key", key))
		} else {
			c.log.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return "", false, fmt.Errorf("get cached %s: %w", kind, err)
	case !found:
		metrics.RecordCacheLookup(kind, "miss")
		return "", false, nil
	default:
		metrics.RecordCacheLookup(kind, "hit")
		return raw, true, nil
	}
}

func (c *Cache) set(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.kv == nil {
		return nil
	}

	err := c.breaker.Call(func() error {
		return c.kv.Set(ctx, key, value, c.ttl)
	})
	if err != nil {
		return fmt.Errorf("set cache key %s: %w", key, err)
	}

	return nil
}

func (c *Cache) dropCorrupt(ctx context.Context, key, raw string) {
	c.log.Warn("dropping unreadable cache entry", slog.String("key", key), slog.Int("size", len(raw)))
	if err := c.kv.Delete(ctx, key); err != nil {
		c.log.Warn("failed to drop cache entry", slog.String("key", key), slog.Any("error", err))
	}
}

func DifficultyKey(userID string) string {
	return difficultyKeyPrefix + userID
}

func CategoriesKey(userID string) string {
	return categoriesKeyPrefix + userID
}
