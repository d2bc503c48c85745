// Package api exposes the profile service over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/profile-service/internal/auth"
	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/i18n"
	"github.com/Proton-105/profile-service/internal/idempotency"
	"github.com/Proton-105/profile-service/internal/lifecycle"
	"github.com/Proton-105/profile-service/internal/middleware"
	"github.com/Proton-105/profile-service/internal/preference"
	"github.com/Proton-105/profile-service/internal/usercache"
	"github.com/Proton-105/profile-service/pkg/logger"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error)
}

type PreferenceService interface {
	GetCategories(ctx context.Context, userID string) (domain.CategoryMap, error)
	GetSettings(ctx context.Context, userID string) (*preference.Settings, error)
	GetSetupStatus(ctx context.Context, userID string) (*preference.SetupStatus, error)
	SetDifficulty(ctx context.Context, userID string, level *int) (*domain.User, error)
	ResetDifficulty(ctx context.Context, userID string) (*domain.User, error)
	SetCategories(ctx context.Context, userID string, input map[string][]string) (domain.CategoryMap, error)
	UpdateSettings(ctx context.Context, userID string, level *int, input map[string][]string) (*preference.Settings, error)
}

type AuthService interface {
	LoginURL(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, code, state, providerErr string) (*auth.Login, error)
}

type CacheInspector interface {
	Status(ctx context.Context, userID string) (usercache.Status, error)
}

// Dependencies wires the HTTP layer. Nil RateLimit, Idempotency and Probes disable those features;
// nil Translations fall back to the embedded locales.
type Dependencies struct {
	Users              UserService
	Preferences        PreferenceService
	Auth               AuthService
	Cache              CacheInspector
	Authenticator      *middleware.Authenticator
	RateLimit          *middleware.RateLimit
	Idempotency        idempotency.Manager
	Probes             lifecycle.HealthChecker
	Errors             *apperrors.Handler
	Translations       *i18n.Manager
	AllowedOrigins     []string
	SuccessRedirectURL string
	// TrustedProxies lists the proxies whose forwarding headers set the client address.
	// Empty means the peer address is always used.
	TrustedProxies []string
}

type Server struct {
	log    *slog.Logger
	deps   Dependencies
	router *gin.Engine
}

func NewServer(log *slog.Logger, deps Dependencies) *Server {
	if log == nil {
		log = slog.Default()
	}
	if deps.Errors == nil {
		deps.Errors = apperrors.NewHandler(log, false)
	}
	if deps.Translations == nil {
		deps.Translations = i18n.Default()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		log.Error("invalid trusted proxies, ignoring forwarding headers", slog.Any("error", err))
		_ = router.SetTrustedProxies(nil)
	}

	s := &Server{
		log:    log,
		deps:   deps,
		router: router,
	}
	s.routes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery())
	r.Use(logger.Middleware())
	r.Use(middleware.Logging(s.log))
	r.Use(middleware.Metrics())
	r.Use(s.corsMiddleware())

	r.GET("/healthz", s.liveness)
	r.GET("/readyz", s.readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/categories", s.listCategories)

	login := r.Group("")
	if s.deps.RateLimit != nil {
		login.Use(s.deps.RateLimit.PerIP())
	}
	login.GET("/oauth2/authorization/kakao", s.startLogin)
	login.GET("/login/oauth2/code/kakao", s.loginCallback)

	r.GET("/auth/status", s.deps.Authenticator.OptionalIdentity(), s.authStatus)

	user := r.Group("/user")
	user.Use(s.deps.Authenticator.RequireIdentity())
	if s.deps.RateLimit != nil {
		user.Use(s.deps.RateLimit.PerUser())
	}
	user.Use(middleware.Idempotency(s.deps.Idempotency, s.log))
	{
		user.GET("/profile", s.getProfile)
		user.PUT("/profile", s.updateProfile)
		user.GET("/categories", s.getCategories)
		user.GET("/settings", s.getSettings)
		user.PUT("/settings", s.updateSettings)
		user.POST("/settings/difficulty", s.setDifficulty)
		user.POST("/settings/difficulty/reset", s.resetDifficulty)
		user.PUT("/settings/categories", s.setCategories)
		user.POST("/settings/categories", s.setCategories)
		user.GET("/settings/status", s.getSetupStatus)
		user.GET("/token/info", s.tokenInfo)
		user.GET("/cache/status", s.cacheStatus)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept-Language", "Authorization", middleware.DefaultGatewayHeader, middleware.IdempotencyKeyHeader, logger.CorrelationIDHeader},
		ExposeHeaders:    []string{logger.CorrelationIDHeader, middleware.IdempotentReplayHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.deps.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = s.deps.AllowedOrigins
	}

	return cors.New(cfg)
}

// t returns the translator negotiated from the request's Accept-Language.
func (s *Server) t(c *gin.Context) i18n.Translator {
	return s.deps.Translations.Negotiate(c.GetHeader("Accept-Language"))
}

// fail writes err as the standard error body.
func (s *Server) fail(c *gin.Context, err error) {
	status, body := s.deps.Errors.Handle(c.Request.Context(), err)
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) liveness(c *gin.Context) {
	if s.deps.Probes != nil {
		if err := s.deps.Probes.Liveness(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readiness(c *gin.Context) {
	if s.deps.Probes != nil {
		if err := s.deps.Probes.Readiness(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
