package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/WholesaleGo/pkg/database"

// Query outcomes reported on spans, logs and the duration histogram.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var queryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_traced_query_duration_seconds",
		Help:    "Duration of traced queries, mostly row-lock acquisitions.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"operation", "outcome"},
)

var slowQueryCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowQueryLogging configures slow query detection. A zero threshold
// disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueryCfg.mu.Lock()
	defer slowQueryCfg.mu.Unlock()
	slowQueryCfg.threshold = threshold
	slowQueryCfg.logger = logger
}

func getSlowQueryConfig() (time.Duration, *slog.Logger) {
	slowQueryCfg.mu.RLock()
	defer slowQueryCfg.mu.RUnlock()
	return slowQueryCfg.threshold, slowQueryCfg.logger
}

// QueryOutcome classifies a query error. Lock timeouts, deadlocks and
// serialization failures count as conflicts since callers surface them as
// retryable.
func QueryOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsConflict(err):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

// TraceQuery starts a client span for a database operation and returns a
// func that must be called with the operation's error when it completes:
//
//	ctx, end := database.TraceQuery(ctx, "LockProducts", query)
//	defer func() { end(err) }()
//
// Queries slower than the SetSlowQueryLogging threshold are logged as
// warnings, with the conflict outcome when a row lock could not be taken.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := QueryOutcome(err)

		span.SetAttributes(attribute.String("db.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		queryDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())

		threshold, logger := getSlowQueryConfig()
		if threshold <= 0 || logger == nil || elapsed < threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
			slog.String("outcome", outcome),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}
