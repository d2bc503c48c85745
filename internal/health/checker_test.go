package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/profile-service/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChecker_ReportsEachComponent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	checker := NewChecker(testLogger())
	checker.AddCheck("postgres", NewDBChecker(db))
	checker.AddCheck("redis", client)
	checker.AddCheck("kafka", CheckFunc(func(context.Context) error { return errors.New("no brokers reachable") }))

	results := checker.Check(context.Background())
	assert.Equal(t, StatusOK, results["postgres"])
	assert.Equal(t, StatusOK, results["redis"])
	assert.Equal(t, "no brokers reachable", results["kafka"])

	err = checker.Healthy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
}

func TestChecker_HealthyWhenAllPass(t *testing.T) {
	checker := NewChecker(testLogger())
	checker.AddCheck("noop", CheckFunc(func(context.Context) error { return nil }))
	checker.AddCheck("", CheckFunc(func(context.Context) error { return errors.New("ignored") }))

	assert.NoError(t, checker.Healthy(context.Background()))
}

func TestDBChecker_NilDB(t *testing.T) {
	assert.Error(t, NewDBChecker(nil).HealthCheck(context.Background()))
}
