package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/Proton-105/profile-service/internal/api"
	"github.com/Proton-105/profile-service/internal/auth"
	"github.com/Proton-105/profile-service/internal/database"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/events"
	"github.com/Proton-105/profile-service/internal/health"
	"github.com/Proton-105/profile-service/internal/i18n"
	"github.com/Proton-105/profile-service/internal/idempotency"
	"github.com/Proton-105/profile-service/internal/lifecycle"
	"github.com/Proton-105/profile-service/internal/middleware"
	"github.com/Proton-105/profile-service/internal/oauth"
	"github.com/Proton-105/profile-service/internal/preference"
	"github.com/Proton-105/profile-service/internal/ratelimit"
	"github.com/Proton-105/profile-service/internal/repository"
	"github.com/Proton-105/profile-service/internal/token"
	"github.com/Proton-105/profile-service/internal/user"
	"github.com/Proton-105/profile-service/internal/usercache"
	"github.com/Proton-105/profile-service/migrations"
	"github.com/Proton-105/profile-service/pkg/config"
	"github.com/Proton-105/profile-service/pkg/graceful"
	"github.com/Proton-105/profile-service/pkg/logger"
	"github.com/Proton-105/profile-service/pkg/redis"
)

const (
	rateLimitSweepInterval = time.Minute
	rateLimitMaxAge        = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "profile-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	appLog := logger.New(*cfg)
	defer func() { _ = appLog.Close() }()
	log := appLog.Logger

	log.Info("starting profile service",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.HTTP.Port),
		slog.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	db, err := openDatabase(ctx, *cfg)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := database.NewMigrator(db, log).Apply(ctx, migrations.FS, "."); err != nil {
			_ = db.Close()
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return err
	}
	kv := redis.NewMetricsClient(rdb)

	var publisher events.Publisher = events.NewNoopPublisher(log)
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka, log)
	}

	userRepo := repository.NewUserRepository(db, log)
	categoryRepo := repository.NewCategoryRepository(db, log)
	cache := usercache.NewCache(kv, cfg.Cache.TTL, log)

	users := user.NewService(userRepo, log)
	preferences := preference.NewService(userRepo, categoryRepo, cache, publisher, cfg.Preferences.DefaultDifficulty, log)

	signer := token.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	authService := auth.NewService(
		oauth.NewKakaoProvider(cfg.Kakao),
		oauth.NewStateStore(kv, cfg.Auth.StateTTL),
		users,
		signer,
		log,
	)

	memoryLimiter := ratelimit.NewMemoryLimiter()
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memoryLimiter, log)
	go ratelimit.NewCleaner(rdb.Client, memoryLimiter, log, rateLimitSweepInterval, rateLimitMaxAge).Run(ctx)

	var idempotencyManager idempotency.Manager
	if cfg.Idempotency.Enabled {
		idempotencyManager = idempotency.NewManager(
			idempotency.NewRedisStore(rdb.Client, log),
			cfg.Idempotency.TTL,
			cfg.Idempotency.LockTTL,
			log,
		)
	}

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", kv)
	if cfg.Kafka.Enabled {
		checker.AddCheck("kafka", events.NewBrokerChecker(cfg.Kafka.Brokers))
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(log, api.Dependencies{
		Users:              users,
		Preferences:        preferences,
		Auth:               authService,
		Cache:              cache,
		Authenticator:      middleware.NewAuthenticator(signer, cfg.Auth.TrustGatewayHeader, cfg.Auth.GatewayHeader),
		RateLimit:          middleware.NewRateLimit(limiter, ratelimit.NewRules(cfg.RateLimit), log),
		Idempotency:        idempotencyManager,
		Probes:             lifecycle.NewProbes(log, checker),
		Errors:             apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Translations:       i18n.Default(),
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		TrustedProxies:     cfg.HTTP.TrustedProxies,
		SuccessRedirectURL: cfg.Auth.SuccessRedirectURL,
	})

	config.Watch(v, log, func(next *config.Config) {
		appLog.SetLevel(next.Logger.Level)
		preferences.SetDefaultDifficulty(next.Preferences.DefaultDifficulty)
	})

	shutdown := lifecycle.NewShutdown(log)
	shutdown.RegisterCloser("kafka", publisher)
	shutdown.RegisterCloser("redis", rdb)
	shutdown.RegisterCloser("postgres", db)
	if cfg.Sentry.Enabled {
		shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		})
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           server.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	serveErr := graceful.NewServer(log, httpServer, cfg.HTTP.ShutdownTimeout).ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("profile service stopped")
	return serveErr
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
