package config

import (
	"fmt"
	"time"

	"github.com/Proton-105/profile-service/pkg/redis"
)

// Config holds runtime configuration for the profile service.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	HTTP        HTTPConfig        `mapstructure:"http"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       redis.Config      `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Kakao       KakaoConfig       `mapstructure:"kakao"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

// HTTPConfig configures the public HTTP listener.
type HTTPConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies" validate:"dive,ip|cidr"`
}

// LoggerConfig controls log level, format and optional file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	DSN        string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            string        `mapstructure:"port" validate:"required"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// CacheConfig configures preference caching.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// KafkaConfig configures the preference event stream.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic        string        `mapstructure:"topic" validate:"required"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AuthConfig configures session tokens and identity resolution.
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenTTL           time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	Issuer             string        `mapstructure:"issuer"`
	TrustGatewayHeader bool          `mapstructure:"trust_gateway_header"`
	GatewayHeader      string        `mapstructure:"gateway_header"`
	SuccessRedirectURL string        `mapstructure:"success_redirect_url"`
	StateTTL           time.Duration `mapstructure:"state_ttl" validate:"gt=0"`
}

// KakaoConfig configures the Kakao OAuth2 client.
type KakaoConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	AuthURL      string   `mapstructure:"auth_url" validate:"required,url"`
	TokenURL     string   `mapstructure:"token_url" validate:"required,url"`
	UserInfoURL  string   `mapstructure:"user_info_url" validate:"required,url"`
	Scopes       []string `mapstructure:"scopes"`
}

// PreferencesConfig holds business defaults for preferences.
type PreferencesConfig struct {
	DefaultDifficulty int `mapstructure:"default_difficulty" validate:"min=1,max=3"`
}

// RateLimitRule describes a limit per window, e.g. 20 per "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig groups the HTTP rate limiting rules.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Auth      RateLimitRule `mapstructure:"auth"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Whitelist []string      `mapstructure:"whitelist"`
}

// IdempotencyConfig configures replay protection on mutating endpoints.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`
	LockTTL time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

// GetDBConnectionString returns PostgreSQL DSN based on config values.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development"
}
