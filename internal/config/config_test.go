package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "wholesale", cfg.PostgresDB)
	assert.Equal(t, "purchasing-service", cfg.KafkaConsumerGroup)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.LockTTL())
	assert.InDelta(t, 5.0, cfg.StockRateLimitRPS, 0)
	assert.Equal(t, 10, cfg.StockRateLimitBurst)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EmptyPostgresHost(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")

	cfg, err := Load()

	// caarlos0/env/v10 treats an empty value as unset and falls back to
	// envDefault, so the guard only fires for programmatic configs.
	if err != nil {
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "POSTGRES_HOST is required")
	} else {
		require.NotNil(t, cfg)
		assert.Equal(t, "localhost", cfg.PostgresHost)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("LOCK_TTL_SECONDS", "10")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.LockTTL())
	assert.Len(t, cfg.CORSAllowedOrigins, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "http port zero", env: map[string]string{"HTTP_PORT": "0"}, wantErr: "invalid HTTP port"},
		{name: "http port too large", env: map[string]string{"HTTP_PORT": "70000"}, wantErr: "invalid HTTP port"},
		{name: "sample rate", env: map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, wantErr: "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{name: "lock ttl", env: map[string]string{"LOCK_TTL_SECONDS": "0"}, wantErr: "LOCK_TTL_SECONDS must be > 0"},
		{name: "request timeout", env: map[string]string{"HTTP_REQUEST_TIMEOUT_SECONDS": "-1"}, wantErr: "HTTP_REQUEST_TIMEOUT_SECONDS must be > 0"},
		{name: "pool bounds", env: map[string]string{"DB_MIN_CONNS": "30", "DB_MAX_CONNS": "10"}, wantErr: "DB_MIN_CONNS (30) must not exceed DB_MAX_CONNS (10)"},
		{name: "lock timeout", env: map[string]string{"DB_LOCK_TIMEOUT_MS": "-5"}, wantErr: "DB_LOCK_TIMEOUT_MS must be >= 0"},
		{name: "rate limit", env: map[string]string{"STOCK_RATE_LIMIT_RPS": "-1"}, wantErr: "STOCK_RATE_LIMIT_RPS"},
		{name: "breaker ratio", env: map[string]string{"PUBLISH_BREAKER_FAILURE_RATIO": "1.5"}, wantErr: "PUBLISH_BREAKER_FAILURE_RATIO"},
		{name: "jwt outside development", env: map[string]string{"ENVIRONMENT": "production"}, wantErr: "JWT_SECRET is required outside development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ProductionWithSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "s3cr3t")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "s3cr3t", cfg.JWTSecret)
}
