package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/idempotency"
	"github.com/Proton-105/profile-service/internal/ratelimit"
	"github.com/Proton-105/profile-service/internal/token"
	"github.com/Proton-105/profile-service/pkg/config"
	"github.com/Proton-105/profile-service/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedis(t *testing.T) goredis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.Response {
	t.Helper()
	var body apperrors.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func identityRouter(auth *Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/me", auth.RequireIdentity(), func(c *gin.Context) {
		userID, _ := UserID(c)
		name := ""
		if claims := Claims(c); claims != nil {
			name = claims.Name
		}
		c.JSON(http.StatusOK, gin.H{"userId": userID, "name": name})
	})
	r.GET("/status", auth.OptionalIdentity(), func(c *gin.Context) {
		_, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	return r
}

func TestAuthenticator_BearerToken(t *testing.T) {
	signer := token.NewSigner(testSecret, time.Hour, "profile-service")
	issued, err := signer.Issue(&domain.User{ExternalID: "u-1", Name: "Minji"}, "kakao")
	require.NoError(t, err)

	r := identityRouter(NewAuthenticator(signer, false, ""))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Value)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u-1","name":"Minji"}`, w.Body.String())
}

func TestAuthenticator_Rejects(t *testing.T) {
	signer := token.NewSigner(testSecret, time.Hour, "")
	r := identityRouter(NewAuthenticator(signer, false, ""))

	cases := map[string]map[string]string{
		"no identity":          {},
		"not bearer":           {"Authorization": "Basic abc"},
		"garbage token":        {"Authorization": "Bearer not-a-jwt"},
		"untrusted gateway id": {"X-User-Id": "u-1"},
	}

	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, apperrors.CodeUnauthenticated, decodeError(t, w).Error)
		})
	}
}

func TestAuthenticator_TrustedGatewayHeader(t *testing.T) {
	r := identityRouter(NewAuthenticator(token.NewSigner(testSecret, time.Hour, ""), true, ""))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-Id", "u-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u-9","name":""}`, w.Body.String())
}

func TestAuthenticator_OptionalIdentity(t *testing.T) {
	r := identityRouter(NewAuthenticator(token.NewSigner(testSecret, time.Hour, ""), false, ""))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer broken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
}

func rateLimitRouter(t *testing.T, cfg config.RateLimitConfig) *gin.Engine {
	limiter := ratelimit.NewRedisLimiter(newRedis(t), testLogger())
	rl := NewRateLimit(limiter, ratelimit.NewRules(cfg), testLogger())

	r := gin.New()
	r.GET("/login", rl.PerIP(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRateLimit_PerIPRejectsOverLimit(t *testing.T) {
	r := rateLimitRouter(t, config.RateLimitConfig{
		Enabled: true,
		Auth:    config.RateLimitRule{Limit: 2, Window: "1m"},
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.CodeRateLimited, decodeError(t, last).Error)
}

func TestRateLimit_DisabledAndWhitelisted(t *testing.T) {
	for name, cfg := range map[string]config.RateLimitConfig{
		"disabled":    {Enabled: false, Auth: config.RateLimitRule{Limit: 1, Window: "1m"}},
		"whitelisted": {Enabled: true, Auth: config.RateLimitRule{Limit: 1, Window: "1m"}, Whitelist: []string{"10.0.0.1"}},
	} {
		t.Run(name, func(t *testing.T) {
			r := rateLimitRouter(t, cfg)
			for i := 0; i < 3; i++ {
				req := httptest.NewRequest(http.MethodGet, "/login", nil)
				req.RemoteAddr = "10.0.0.1:1234"
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				assert.Equal(t, http.StatusNoContent, w.Code)
			}
		})
	}
}

func idempotencyRouter(t *testing.T, calls *int32, status int) *gin.Engine {
	store := idempotency.NewRedisStore(newRedis(t), testLogger())
	manager := idempotency.NewManager(store, time.Hour, time.Minute, testLogger())

	r := gin.New()
	r.POST("/user/settings/difficulty", Idempotency(manager, testLogger()), func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		body, _ := c.GetRawData()
		c.JSON(status, gin.H{"call": n, "body": string(body)})
	})
	return r
}

func postWithKey(r http.Handler, key string) *httptest.ResponseRecorder {
	return postBodyWithKey(r, key, `{"difficultyLevel":3}`)
}

func postBodyWithKey(r http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/user/settings/difficulty", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	var calls int32
	r := idempotencyRouter(t, &calls, http.StatusOK)

	first := postWithKey(r, "key-1")
	second := postWithKey(r, "key-1")

	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayHeader))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	postWithKey(r, "key-2")
	postWithKey(r, "")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestIdempotency_RejectsKeyReuseWithDifferentBody(t *testing.T) {
	var calls int32
	r := idempotencyRouter(t, &calls, http.StatusOK)

	first := postBodyWithKey(r, "key-1", `{"difficultyLevel":1}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `difficultyLevel`)

	w := postBodyWithKey(r, "key-1", `{"difficultyLevel":3}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeConflict, decodeError(t, w).Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotency_DoesNotReplayFailures(t *testing.T) {
	var calls int32
	r := idempotencyRouter(t, &calls, http.StatusBadRequest)

	postWithKey(r, "key-1")
	w := postWithKey(r, "key-1")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get(IdempotentReplayHeader))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_RejectsOversizedKey(t *testing.T) {
	var calls int32
	r := idempotencyRouter(t, &calls, http.StatusOK)

	w := postWithKey(r, strings.Repeat("k", maxIdempotencyKeyLength+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestLoggingAndMetrics_PassThrough(t *testing.T) {
	r := gin.New()
	r.Use(logger.Middleware(), Logging(testLogger()), Metrics())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(logger.CorrelationIDHeader, "corr-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "corr-1", w.Header().Get(logger.CorrelationIDHeader))
}
