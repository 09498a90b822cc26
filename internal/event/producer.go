package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/WholesaleGo/internal/domain"
	pkgkafka "github.com/utafrali/WholesaleGo/pkg/kafka"
	"github.com/utafrali/WholesaleGo/pkg/logger"
)

// Kafka topics for stock domain events.
var (
	TopicStockPosted   = pkgkafka.Topic("purchasing", "stock_posted")
	TopicStockReversed = pkgkafka.Topic("purchasing", "stock_reversed")
	TopicStockAdjusted = pkgkafka.Topic("purchasing", "stock_adjusted")
)

// Aggregate type constants.
const (
	AggregateTypePurchaseOrder = "purchase_order"
	AggregateTypeProduct       = "product"
)

// SourcePurchasingService identifies events originating from this service.
const SourcePurchasingService = "purchasing-service"

// StockPostedData is the payload for a purchasing.stock_posted event.
type StockPostedData struct {
	PurchaseOrderID string                  `json:"purchase_order_id"`
	CompanyID       string                  `json:"company_id"`
	PostedAt        time.Time               `json:"posted_at"`
	UpdatedProducts []domain.ChangeManifest `json:"updated_products"`
}

// StockReversedData is the payload for a purchasing.stock_reversed event.
type StockReversedData struct {
	PurchaseOrderID string                  `json:"purchase_order_id"`
	CompanyID       string                  `json:"company_id"`
	ReversedAt      time.Time               `json:"reversed_at"`
	UpdatedProducts []domain.ChangeManifest `json:"updated_products"`
}

// StockAdjustedData is the payload for a purchasing.stock_adjusted event.
type StockAdjustedData struct {
	MovementID string          `json:"movement_id"`
	CompanyID  string          `json:"company_id"`
	ProductID  string          `json:"product_id"`
	Type       string          `json:"type"`
	Reason     string          `json:"reason"`
	Qty        decimal.Decimal `json:"qty"`
	NewStock   int64           `json:"new_stock"`
	Note       string          `json:"note,omitempty"`
}

// Producer publishes stock domain events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka is usually a
// *pkgkafka.BreakerPublisher wrapping the shared writer.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishStockPosted publishes a purchasing.stock_posted event.
func (p *Producer) PublishStockPosted(ctx context.Context, companyID uuid.UUID, result *domain.PostingResult) error {
	data := StockPostedData{
		PurchaseOrderID: result.PurchaseOrderID.String(),
		CompanyID:       companyID.String(),
		PostedAt:        result.PostedAt,
		UpdatedProducts: result.UpdatedProducts,
	}
	return p.publish(ctx, TopicStockPosted, result.PurchaseOrderID.String(), AggregateTypePurchaseOrder, data)
}

// PublishStockReversed publishes a purchasing.stock_reversed event.
func (p *Producer) PublishStockReversed(ctx context.Context, companyID uuid.UUID, result *domain.ReversalResult) error {
	data := StockReversedData{
		PurchaseOrderID: result.PurchaseOrderID.String(),
		CompanyID:       companyID.String(),
		ReversedAt:      result.ReversedAt,
		UpdatedProducts: result.UpdatedProducts,
	}
	return p.publish(ctx, TopicStockReversed, result.PurchaseOrderID.String(), AggregateTypePurchaseOrder, data)
}

// PublishStockAdjusted publishes a purchasing.stock_adjusted event.
func (p *Producer) PublishStockAdjusted(ctx context.Context, movement *domain.StockMovement, newStock int64) error {
	data := StockAdjustedData{
		MovementID: movement.ID.String(),
		CompanyID:  movement.CompanyID.String(),
		ProductID:  movement.ProductID.String(),
		Type:       movement.Type,
		Reason:     movement.Reason,
		Qty:        movement.Qty,
		NewStock:   newStock,
		Note:       movement.Note,
	}
	return p.publish(ctx, TopicStockAdjusted, movement.ProductID.String(), AggregateTypeProduct, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourcePurchasingService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published "+topic+" event",
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)

	return nil
}
