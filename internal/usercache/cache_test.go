package usercache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/profile-service/internal/domain"
	"github.com/Proton-105/profile-service/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewCache(redis.NewMetricsClient(client), 24*time.Hour, testLogger())
}

func TestCache_DifficultyRoundTrip(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	_, ok, err := cache.GetDifficulty(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetDifficulty(ctx, "u1", 3))

	level, ok, err := cache.GetDifficulty(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, level)
	assert.Equal(t, 24*time.Hour, mr.TTL("user:difficulty:u1"))
}

func TestCache_CategoriesRoundTrip(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	categories := domain.CategoryMap{"STUDY": {"CLASS_LISTENING", "ASSIGNMENT_EXAM"}}
	require.NoError(t, cache.SetCategories(ctx, "u1", categories))

	got, ok, err := cache.GetCategories(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, categories, got)
	assert.True(t, mr.Exists("user:categories:u1"))
}

func TestCache_EmptyCategoriesAreAHit(t *testing.T) {
	_, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetCategories(ctx, "u1", nil))

	got, ok, err := cache.GetCategories(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCache_CorruptEntryIsDropped(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("user:difficulty:u1", "nine"))
	require.NoError(t, mr.Set("user:categories:u1", "{broken"))

	_, ok, err := cache.GetDifficulty(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("user:difficulty:u1"))

	_, ok, err = cache.GetCategories(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("user:categories:u1"))
}

func TestCache_InvalidateAndStatus(t *testing.T) {
	_, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetDifficulty(ctx, "u1", 2))

	status, err := cache.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Status{DifficultyCached: true}, status)

	require.NoError(t, cache.Invalidate(ctx, "u1"))

	status, err = cache.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Status{}, status)
}

func TestCache_UnavailableRedisReportsError(t *testing.T) {
	mr, cache := setupTestCache(t)
	mr.Close()

	_, ok, err := cache.GetDifficulty(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, cache.SetDifficulty(context.Background(), "u1", 1))
}

func TestCache_NilCacheIsAlwaysMiss(t *testing.T) {
	var cache *Cache

	_, ok, err := cache.GetCategories(context.Background(), "u1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.SetDifficulty(context.Background(), "u1", 1))
}
