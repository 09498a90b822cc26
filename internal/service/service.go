package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/WholesaleGo/internal/domain"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
	"github.com/utafrali/WholesaleGo/pkg/lock"
	"github.com/utafrali/WholesaleGo/pkg/tracing"
)

// Locker serializes work on one key across replicas. Implemented by
// *lock.RedisLocker.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher emits domain events once a unit of work has committed.
// Implemented by *event.Producer.
type EventPublisher interface {
	PublishStockPosted(ctx context.Context, companyID uuid.UUID, result *domain.PostingResult) error
	PublishStockReversed(ctx context.Context, companyID uuid.UUID, result *domain.ReversalResult) error
	PublishStockAdjusted(ctx context.Context, movement *domain.StockMovement, newStock int64) error
}

var (
	stockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_stock_operations_total",
			Help: "Total number of purchase order stock postings and reversals by outcome",
		},
		[]string{"operation", "outcome"},
	)

	stockOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchasing_stock_operation_duration_seconds",
			Help:    "Duration of purchase order stock postings and reversals in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	movementsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_stock_movements_total",
			Help: "Total number of stock ledger entries written",
		},
		[]string{"type", "reason"},
	)
)

// outcome classifies err for the operations counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperrors.ErrTransactionConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

var tracer = tracing.Tracer("github.com/utafrali/WholesaleGo/internal/service")

// startStockOperation opens a span for a posting or reversal. The returned
// func ends the span and records the outcome metrics.
func startStockOperation(ctx context.Context, operation string, companyID, orderID uuid.UUID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "purchasing."+operation,
		trace.WithAttributes(
			attribute.String("purchase_order.id", orderID.String()),
			attribute.String("company.id", companyID.String()),
		),
	)
	return ctx, func(err error) {
		result := outcome(err)
		span.SetAttributes(attribute.String("outcome", result))
		tracing.End(span, err)
		stockOperations.WithLabelValues(operation, result).Inc()
		stockOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// acquireOrderLock takes the distributed lock for a purchase order when a
// locker is configured. A held lock means another replica is already working
// on the order, which callers see as a retryable conflict.
func acquireOrderLock(ctx context.Context, locker Locker, orderID uuid.UUID) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	release, err := locker.Acquire(ctx, orderID.String())
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, apperrors.TransactionConflict(err)
		}
		return nil, apperrors.Wrap(err, "acquire purchase order lock")
	}
	return release, nil
}

func logPublishFailure(ctx context.Context, logger *slog.Logger, eventName string, aggregateID uuid.UUID, err error) {
	logger.ErrorContext(ctx, "failed to publish "+eventName+" event",
		slog.String("aggregate_id", aggregateID.String()),
		slog.String("error", err.Error()),
	)
}
