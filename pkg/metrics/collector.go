package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_cache_lookups_total",
			Help: "Preference cache lookups by kind and result (hit, miss, error)",
		},
		[]string{"kind", "result"},
	)
	preferenceUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_updates_total",
			Help: "Successful preference writes by event type",
		},
		[]string{"event_type"},
	)
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_events_published_total",
			Help: "Preference events handed to the broker by event type and status",
		},
		[]string{"event_type", "status"},
	)
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_logins_total",
			Help: "OAuth2 login callbacks by provider and status",
		},
		[]string{"provider", "status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
)

// RecordHTTPRequest increments request counters and records duration.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCacheLookup tracks preference cache effectiveness.
func RecordCacheLookup(kind, result string) {
	cacheLookupsTotal.WithLabelValues(orUnknown(kind), orUnknown(result)).Inc()
}

func RecordPreferenceUpdate(eventType string) {
	preferenceUpdatesTotal.WithLabelValues(orUnknown(eventType)).Inc()
}

// RecordEventPublished tracks broker outcomes of preference events.
func RecordEventPublished(eventType, status string) {
	eventsPublishedTotal.WithLabelValues(orUnknown(eventType), orUnknown(status)).Inc()
}

func RecordLogin(provider, status string) {
	loginsTotal.WithLabelValues(orUnknown(provider), orUnknown(status)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
