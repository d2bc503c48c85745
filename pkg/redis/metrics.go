package redis

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
)

var (
	redisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors by method. Missing keys are not errors.",
		},
		[]string{"method"},
	)
	redisRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// MetricsClient wraps Client to collect Prometheus metrics.
type MetricsClient struct {
	next *Client
}

var _ KV = (*MetricsClient)(nil)

// NewMetricsClient creates an instrumented Redis client.
func NewMetricsClient(next *Client) *MetricsClient {
	return &MetricsClient{next: next}
}

func observe(method string, fn func() error) {
	timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues(method))
	err := fn()
	timer.ObserveDuration()
	redisRequestsTotal.WithLabelValues(method).Inc()
	if err != nil && !errors.Is(err, goredis.Nil) {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}
}

// Get instruments Client.Get.
func (m *MetricsClient) Get(ctx context.Context, key string) (result string, err error) {
	observe("get", func() error {
		result, err = m.next.Get(ctx, key)
		return err
	})
	return result, err
}

// Set instruments Client.Set.
func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	observe("set", func() error {
		err = m.next.Set(ctx, key, value, ttl)
		return err
	})
	return err
}

// SetNX instruments Client.SetNX.
func (m *MetricsClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (ok bool, err error) {
	observe("setnx", func() error {
		ok, err = m.next.SetNX(ctx, key, value, ttl)
		return err
	})
	return ok, err
}

// GetDel instruments Client.GetDel.
func (m *MetricsClient) GetDel(ctx context.Context, key string) (result string, err error) {
	observe("getdel", func() error {
		result, err = m.next.GetDel(ctx, key)
		return err
	})
	return result, err
}

// Delete instruments Client.Delete.
func (m *MetricsClient) Delete(ctx context.Context, keys ...string) (err error) {
	observe("delete", func() error {
		err = m.next.Delete(ctx, keys...)
		return err
	})
	return err
}

// HealthCheck forwards to the underlying client.
func (m *MetricsClient) HealthCheck(ctx context.Context) error {
	return m.next.HealthCheck(ctx)
}

// Close closes underlying client.
func (m *MetricsClient) Close() error {
	return m.next.Close()
}
