package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/WholesaleGo/internal/service"
	pkgkafka "github.com/utafrali/WholesaleGo/pkg/kafka"
)

// Kafka topics consumed from the sales service.
var (
	TopicSalesOrderConfirmed = pkgkafka.Topic("sales", "order_confirmed")
	TopicSalesOrderCancelled = pkgkafka.Topic("sales", "order_cancelled")
)

// InventoryService defines the interface required by the event consumer.
type InventoryService interface {
	ApplySale(ctx context.Context, companyID, salesOrderID uuid.UUID, lines []service.SaleLine) error
	ApplySaleCancellation(ctx context.Context, companyID, salesOrderID uuid.UUID, lines []service.SaleLine) error
}

// SalesOrderLine is one line of a sales order event.
type SalesOrderLine struct {
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
}

// SalesOrderData is the expected payload of sales.order_confirmed and
// sales.order_cancelled events.
type SalesOrderData struct {
	SalesOrderID string           `json:"sales_order_id"`
	CompanyID    string           `json:"company_id"`
	Lines        []SalesOrderLine `json:"lines"`
}

// Consumer processes incoming Kafka events for the purchasing service.
type Consumer struct {
	logger  *slog.Logger
	service InventoryService
}

// NewConsumer creates a new event consumer.
func NewConsumer(service InventoryService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleSalesOrderConfirmed takes the goods of a confirmed sales order out
// of stock.
func (c *Consumer) HandleSalesOrderConfirmed(ctx context.Context, event *pkgkafka.Event) error {
	companyID, orderID, lines, err := decodeSalesOrder(event)
	if err != nil {
		return fmt.Errorf("decode sales.order_confirmed data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing sales.order_confirmed event",
		slog.String("sales_order_id", orderID.String()),
		slog.Int("lines", len(lines)),
	)

	if err := c.service.ApplySale(ctx, companyID, orderID, lines); err != nil {
		return fmt.Errorf("apply sale for sales order %s: %w", orderID, err)
	}
	return nil
}

// HandleSalesOrderCancelled returns the goods of a cancelled sales order to
// stock.
func (c *Consumer) HandleSalesOrderCancelled(ctx context.Context, event *pkgkafka.Event) error {
	companyID, orderID, lines, err := decodeSalesOrder(event)
	if err != nil {
		return fmt.Errorf("decode sales.order_cancelled data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing sales.order_cancelled event",
		slog.String("sales_order_id", orderID.String()),
		slog.Int("lines", len(lines)),
	)

	if err := c.service.ApplySaleCancellation(ctx, companyID, orderID, lines); err != nil {
		return fmt.Errorf("apply sale cancellation for sales order %s: %w", orderID, err)
	}
	return nil
}

// decodeSalesOrder errors wrap pkgkafka.ErrInvalidEnvelope: a malformed
// payload stays malformed on retry.
func decodeSalesOrder(event *pkgkafka.Event) (companyID, orderID uuid.UUID, lines []service.SaleLine, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w: %w", pkgkafka.ErrInvalidEnvelope, err)
		}
	}()

	var data SalesOrderData
	if err = event.UnmarshalData(&data); err != nil {
		return
	}
	if companyID, err = uuid.Parse(data.CompanyID); err != nil {
		err = fmt.Errorf("company_id: %w", err)
		return
	}
	if orderID, err = uuid.Parse(data.SalesOrderID); err != nil {
		err = fmt.Errorf("sales_order_id: %w", err)
		return
	}

	lines = make([]service.SaleLine, 0, len(data.Lines))
	for _, l := range data.Lines {
		productID, perr := uuid.Parse(l.ProductID)
		if perr != nil {
			err = fmt.Errorf("line product_id: %w", perr)
			return
		}
		lines = append(lines, service.SaleLine{ProductID: productID, Qty: l.Qty})
	}
	return
}
