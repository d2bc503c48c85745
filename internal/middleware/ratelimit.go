package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/ratelimit"
)

// RateLimit enforces the configured request budgets. Limiter failures let the request through.
type RateLimit struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimit constructs a rate-limit middleware component.
func NewRateLimit(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimit {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimit{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// PerIP limits the login endpoints by client address.
func (m *RateLimit) PerIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		m.enforce(c, ip, "auth:"+ip, m.rules.GetAuthLimit)
	}
}

// PerUser limits authenticated routes by user id, falling back to the client address.
func (m *RateLimit) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := UserID(c)
		if !ok {
			subject = c.ClientIP()
		}
		m.enforce(c, subject, "user:"+subject, m.rules.GetPerUserLimit)
	}
}

func (m *RateLimit) enforce(c *gin.Context, subject, key string, rule func() (int, time.Duration, error)) {
	if m.limiter == nil || !m.rules.Enabled() || m.rules.IsWhitelisted(subject) {
		c.Next()
		return
	}

	limit, window, err := rule()
	if err != nil {
		m.log.Error("failed to load rate limit rule", slog.String("key", key), slog.Any("error", err))
		c.Next()
		return
	}

	result, err := m.limiter.Check(c.Request.Context(), key, limit, window)
	if ratelimit.Exceeded(result, err) {
		retryAfter := window
		if result != nil && !result.ResetAt.IsZero() {
			retryAfter = time.Until(result.ResetAt)
		}
		c.Header("Retry-After", strconv.Itoa(max(1, int(retryAfter.Seconds()))))

		m.log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", c.Request.URL.Path))
		abort(c, apperrors.NewRateLimitedError())
		return
	}
	if err != nil {
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Next()
}
