package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/WholesaleGo/pkg/config"
)

// Config holds all configuration for the purchasing service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeoutSecs int `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"wholesale"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"wholesale_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"wholesale"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	DBLockTimeoutMs       int   `env:"DB_LOCK_TIMEOUT_MS" envDefault:"5000"`

	// Redis is optional. When set it backs the purchase order lock and the
	// consumer idempotency store.
	RedisURL   string `env:"REDIS_URL"`
	LockTTLSec int    `env:"LOCK_TTL_SECONDS" envDefault:"30"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"purchasing-service"`

	// Publish circuit breaker
	PublishBreakerTimeoutSec   int     `env:"PUBLISH_BREAKER_TIMEOUT_SECONDS" envDefault:"30"`
	PublishBreakerFailureRatio float64 `env:"PUBLISH_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	PublishBreakerMinRequests  uint32  `env:"PUBLISH_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Per-company budget for stock posting, reversal and adjustment.
	// Zero disables the limit.
	StockRateLimitRPS   float64 `env:"STOCK_RATE_LIMIT_RPS" envDefault:"5"`
	StockRateLimitBurst int     `env:"STOCK_RATE_LIMIT_BURST" envDefault:"10"`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load purchasing config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DBLockTimeoutMs < 0 {
		return fmt.Errorf("DB_LOCK_TIMEOUT_MS must be >= 0, got %d", c.DBLockTimeoutMs)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.KafkaConsumerGroup == "" {
		return fmt.Errorf("KAFKA_CONSUMER_GROUP is required")
	}
	if c.StockRateLimitRPS < 0 || c.StockRateLimitBurst < 0 {
		return fmt.Errorf("STOCK_RATE_LIMIT_RPS and STOCK_RATE_LIMIT_BURST must be >= 0")
	}
	if c.LockTTLSec <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be > 0, got %d", c.LockTTLSec)
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be > 0, got %d", c.RequestTimeoutSecs)
	}
	if c.PublishBreakerFailureRatio <= 0 || c.PublishBreakerFailureRatio > 1.0 {
		return fmt.Errorf("PUBLISH_BREAKER_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.PublishBreakerFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LockTTL returns the purchase order lock TTL.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}
