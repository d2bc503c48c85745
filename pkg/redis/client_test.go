package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *MetricsClient) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewMetricsClient(client)
}

func TestMetricsClient_SetGetDelete(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, client.Delete(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.True(t, errors.Is(err, Nil))
}

func TestMetricsClient_SetNXAndGetDel(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "state", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "state", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.GetDel(ctx, "state")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	_, err = client.GetDel(ctx, "state")
	assert.ErrorIs(t, err, Nil)
}

func TestClient_DeleteWithoutKeys(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, client.Delete(context.Background()))
}

func TestNew_FailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := New(ctx, Config{Addr: "127.0.0.1:1", MaxRetries: -1})
	require.Error(t, err)
}
