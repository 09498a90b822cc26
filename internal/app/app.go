package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/WholesaleGo/internal/config"
	"github.com/utafrali/WholesaleGo/internal/event"
	handler "github.com/utafrali/WholesaleGo/internal/handler/http"
	"github.com/utafrali/WholesaleGo/internal/repository/postgres"
	"github.com/utafrali/WholesaleGo/internal/service"
	"github.com/utafrali/WholesaleGo/migrations"
	"github.com/utafrali/WholesaleGo/pkg/database"
	"github.com/utafrali/WholesaleGo/pkg/health"
	pkgkafka "github.com/utafrali/WholesaleGo/pkg/kafka"
	"github.com/utafrali/WholesaleGo/pkg/lock"
	"github.com/utafrali/WholesaleGo/pkg/middleware"
	"github.com/utafrali/WholesaleGo/pkg/tracing"
)

const (
	serviceName       = "purchasing-service"
	orderLockPrefix   = "lock:po:"
	idempotencyTTL    = 24 * time.Hour
	consumerMaxBytes  = 10e6
	kafkaPingAttempts = 3
)

// openPostgres connects the pool and applies pending migrations.
func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		LockTimeout:     time.Duration(cfg.DBLockTimeoutMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")
	return pool, nil
}

// Migrate applies pending migrations and returns. It backs the "migrate"
// command used by deploy jobs that run before the service starts.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}

// App wires together all dependencies and runs the purchasing service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	health         *health.Handler
	httpServer     *http.Server
	consumers      []*pkgkafka.Consumer
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	traceCfg := tracing.DefaultConfig(serviceName)
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTELEndpoint
	traceCfg.SampleRate = cfg.OTELSampleRate
	traceCfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	database.RegisterPoolMetrics(pool, "purchasing")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the order lock and the consumer idempotency store. Without it
	// the service falls back to row locks and an in-process store.
	var (
		rdb              *goredis.Client
		locker           service.Locker
		idempotencyStore pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	)
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		lockCfg := lock.DefaultConfig()
		lockCfg.TTL = cfg.LockTTL()
		locker = lock.NewRedisLocker(rdb, orderLockPrefix, lockCfg, logger)
		idempotencyStore = pkgkafka.NewRedisIdempotencyStore(rdb, idempotencyTTL)
		logger.Info("redis connected, distributed order lock enabled")
	} else {
		logger.Warn("REDIS_URL not set, using in-process idempotency store and row locks only")
	}

	// Initialize Kafka producer with connection validation and retry.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	breakerCfg := pkgkafka.DefaultBreakerConfig("purchasing-events")
	breakerCfg.Timeout = time.Duration(cfg.PublishBreakerTimeoutSec) * time.Second
	breakerCfg.FailureRatio = cfg.PublishBreakerFailureRatio
	breakerCfg.MinRequests = cfg.PublishBreakerMinRequests
	eventProducer := event.NewProducer(pkgkafka.NewBreakerPublisher(producer, breakerCfg, logger), logger)

	// Build the dependency graph.
	store := postgres.NewStore(pool)
	txManager := postgres.NewTxManager(pool)
	purchasingService := service.NewPurchasingService(store, txManager, locker, eventProducer, logger)
	inventoryService := service.NewInventoryService(store, txManager, eventProducer, logger)

	// Consume sales events into the stock ledger.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	eventConsumer := event.NewConsumer(inventoryService, logger)
	consumers := []*pkgkafka.Consumer{
		pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaConsumerGroup + "-sales-order-confirmed",
			Topic:    event.TopicSalesOrderConfirmed,
			MinBytes: 1,
			MaxBytes: consumerMaxBytes,
			DLQ:      dlq,
		}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleSalesOrderConfirmed, logger), logger),
		pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaConsumerGroup + "-sales-order-cancelled",
			Topic:    event.TopicSalesOrderCancelled,
			MinBytes: 1,
			MaxBytes: consumerMaxBytes,
			DLQ:      dlq,
		}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleSalesOrderCancelled, logger), logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if rdb != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, every API token will be rejected")
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	// HTTP router.
	router := handler.NewRouter(purchasingService, inventoryService, healthHandler, handler.RouterConfig{
		TokenValidator: middleware.NewHMACValidator(cfg.JWTSecret),
		CORS:           corsCfg,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		StockRateLimit: middleware.RateLimitConfig{
			RPS:   cfg.StockRateLimitRPS,
			Burst: cfg.StockRateLimitBurst,
		},
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.RequestTimeoutSecs)*time.Second + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          rdb,
		producer:       producer,
		dlq:            dlq,
		health:         healthHandler,
		httpServer:     httpServer,
		consumers:      consumers,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and Kafka consumers, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	for _, c := range a.consumers {
		go func(c *pkgkafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}(c)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (fail readiness, then drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers and DLQ
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")
	a.health.SetDraining()

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (1s/2s with ±25% jitter between attempts).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < kafkaPingAttempts; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == kafkaPingAttempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", kafkaPingAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", kafkaPingAttempts, lastErr)
}
