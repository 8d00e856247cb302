package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort            int           `env:"HTTP_PORT" envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	PprofAllowedCIDRs   []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CatalogCacheMaxAge  int           `env:"CATALOG_CACHE_MAX_AGE" envDefault:"30"`
	CORSAllowCredential bool          `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThreshold int           `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis
	RedisHost        string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	WishlistCacheTTL time.Duration `env:"WISHLIST_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"storefront-notifier"`
	NotifierEnabled    bool     `env:"NOTIFIER_ENABLED" envDefault:"true"`
	// NotifierWebhookURL, when set, relays mail over HTTP instead of logging it.
	NotifierWebhookURL string `env:"NOTIFIER_WEBHOOK_URL"`

	// JWT and password reset
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry   time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry  time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	PasswordResetTTL  time.Duration `env:"PASSWORD_RESET_EXPIRY" envDefault:"1h"`
	PasswordResetURL  string        `env:"PASSWORD_RESET_URL" envDefault:"http://localhost:8080/api/v1/auth/password-reset/confirm"`
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"12"`
	MinPasswordLength int           `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`

	// Public wishlist lookup
	WishlistPublicLookup bool    `env:"WISHLIST_PUBLIC_LOOKUP" envDefault:"true"`
	PublicRateLimitRPS   float64 `env:"PUBLIC_RATE_LIMIT_RPS" envDefault:"5"`
	PublicRateLimitBurst int     `env:"PUBLIC_RATE_LIMIT_BURST" envDefault:"10"`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules after parsing.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.MinPasswordLength < 8 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 8, got %d", c.MinPasswordLength)
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %g", c.OTelSampleRate)
	}
	if c.WishlistCacheTTL < time.Millisecond {
		return fmt.Errorf("WISHLIST_CACHE_TTL must be at least 1ms, got %s", c.WishlistCacheTTL)
	}
	if c.PublicRateLimitRPS <= 0 || c.PublicRateLimitBurst < 1 {
		return fmt.Errorf("public rate limit must be positive, got rps=%g burst=%d", c.PublicRateLimitRPS, c.PublicRateLimitBurst)
	}

	// Outside development an explicitly set, strong JWT secret is required.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

func (c *Config) Redis() database.RedisConfig {
	r := database.DefaultRedisConfig()
	r.Host = c.RedisHost
	r.Port = c.RedisPort
	r.Password = c.RedisPassword
	r.DB = c.RedisDB
	return r
}

func (c *Config) Tracing(serviceName string) tracing.Config {
	return tracing.Config{
		Enabled:        c.OTelEnabled,
		ServiceName:    serviceName,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTelEndpoint,
		SampleRate:     c.OTelSampleRate,
	}
}

func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig(c.CORSAllowedOrigins...)
	cors.AllowCredentials = c.CORSAllowCredential
	return cors
}

// SlowQuery returns the slow-query warning threshold; zero disables it.
func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryThreshold) * time.Millisecond
}
