package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

// InventoryService implements the product side of the stock ledger: product
// and supplier registration, manual adjustments, sales movements and audits.
type InventoryService struct {
	store  repository.Store
	tx     repository.TxManager
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewInventoryService creates a new inventory service. events may be nil.
func NewInventoryService(store repository.Store, tx repository.TxManager, events EventPublisher, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		store:  store,
		tx:     tx,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateProductInput holds the fields of a new product.
type CreateProductInput struct {
	SKU          string
	Name         string
	Cost         decimal.Decimal
	Price        decimal.Decimal
	OpeningStock int64
}

// AdjustStockInput describes a manual stock correction.
type AdjustStockInput struct {
	Type string
	Qty  int64
	Note string
}

// SaleLine is one product line of a sales order.
type SaleLine struct {
	ProductID uuid.UUID
	Qty       int64
}

// CreateProduct registers a product. A positive opening stock is recorded as
// an opening-balance movement so the ledger replays to the stored stock.
func (s *InventoryService) CreateProduct(ctx context.Context, companyID uuid.UUID, actor string, in CreateProductInput) (*domain.Product, error) {
	if strings.TrimSpace(in.SKU) == "" {
		return nil, apperrors.InvalidInput("sku is required")
	}
	if in.OpeningStock < 0 {
		return nil, apperrors.InvalidInput("opening_stock must not be negative")
	}
	if in.Cost.IsNegative() || in.Price.IsNegative() {
		return nil, apperrors.InvalidInput("cost and price must not be negative")
	}

	now := s.now()
	product := &domain.Product{
		ID:        uuid.New(),
		CompanyID: companyID,
		SKU:       strings.TrimSpace(in.SKU),
		Name:      in.Name,
		Stock:     in.OpeningStock,
		Cost:      domain.RoundMoney(in.Cost),
		Price:     domain.RoundMoney(in.Price),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.tx.WithinTx(ctx, func(store repository.Store) error {
		if err := store.Products().Create(ctx, product); err != nil {
			return err
		}
		if product.Stock == 0 {
			return nil
		}
		opening := domain.NewStockMovement(companyID, product.ID,
			domain.MovementTypeIn, domain.MovementReasonOpeningBalance,
			domain.RefTypeProduct, product.ID,
			decimal.NewFromInt(product.Stock), product.Cost, actor, now)
		return store.Movements().Append(ctx, opening)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID.String()),
		slog.String("sku", product.SKU),
		slog.Int64("opening_stock", product.Stock),
	)

	return product, nil
}

// GetProduct retrieves a product.
func (s *InventoryService) GetProduct(ctx context.Context, companyID, productID uuid.UUID) (*domain.Product, error) {
	return s.store.Products().GetByID(ctx, companyID, productID)
}

// ListMovements returns one page of a product's ledger, newest first.
func (s *InventoryService) ListMovements(ctx context.Context, companyID, productID uuid.UUID, page, perPage int) ([]domain.StockMovement, int, error) {
	if _, err := s.store.Products().GetByID(ctx, companyID, productID); err != nil {
		return nil, 0, err
	}

	movements, total, err := s.store.Movements().ListByProduct(ctx, companyID, productID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return movements, total, nil
}

// AdjustStock applies a manual correction. OUT adjustments cannot take stock
// below zero. Cost and price are left as they are.
func (s *InventoryService) AdjustStock(ctx context.Context, companyID, productID uuid.UUID, actor string, in AdjustStockInput) (*domain.Product, *domain.StockMovement, error) {
	if in.Type != domain.MovementTypeIn && in.Type != domain.MovementTypeOut {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("invalid movement type %q", in.Type))
	}
	if in.Qty <= 0 {
		return nil, nil, apperrors.InvalidInput("qty must be positive")
	}

	var (
		product  *domain.Product
		movement *domain.StockMovement
	)
	err := s.tx.WithinTx(ctx, func(store repository.Store) error {
		locked, err := store.Products().LockByIDs(ctx, companyID, []uuid.UUID{productID})
		if err != nil {
			return err
		}
		p, ok := locked[productID]
		if !ok {
			return apperrors.NotFound("product", productID.String())
		}

		if in.Type == domain.MovementTypeOut {
			if p.Stock-in.Qty < 0 {
				return apperrors.InsufficientStock(p.SKU, strconv.FormatInt(p.Stock, 10), strconv.FormatInt(in.Qty, 10))
			}
			p.Stock -= in.Qty
		} else {
			p.Stock += in.Qty
		}

		now := s.now()
		p.UpdatedAt = now
		m := domain.NewStockMovement(companyID, p.ID, in.Type, domain.MovementReasonManualAdjustment,
			domain.RefTypeAdjustment, uuid.New(), decimal.NewFromInt(in.Qty), p.Cost, actor, now)
		m.Note = in.Note

		if err := store.Movements().Append(ctx, m); err != nil {
			return err
		}
		if err := store.Products().UpdateInventory(ctx, p); err != nil {
			return err
		}

		product, movement = p, m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	movementsWritten.WithLabelValues(movement.Type, movement.Reason).Inc()
	s.logger.InfoContext(ctx, "stock adjusted",
		slog.String("product_id", productID.String()),
		slog.String("type", in.Type),
		slog.Int64("qty", in.Qty),
		slog.Int64("new_stock", product.Stock),
	)

	if s.events != nil {
		if err := s.events.PublishStockAdjusted(ctx, movement, product.Stock); err != nil {
			logPublishFailure(ctx, s.logger, "stock_adjusted", productID, err)
		}
	}

	return product, movement, nil
}

// AuditStock replays a product's ledger and compares it with stored stock.
func (s *InventoryService) AuditStock(ctx context.Context, companyID, productID uuid.UUID) (*domain.StockAudit, error) {
	product, err := s.store.Products().GetByID(ctx, companyID, productID)
	if err != nil {
		return nil, err
	}

	movements, err := s.store.Movements().ListAllByProduct(ctx, companyID, productID)
	if err != nil {
		return nil, fmt.Errorf("audit stock: %w", err)
	}

	audit := domain.AuditStock(product, movements)
	if !audit.InSync {
		s.logger.WarnContext(ctx, "stock drift detected",
			slog.String("product_id", productID.String()),
			slog.Int64("stored_stock", audit.StoredStock),
			slog.String("ledger_balance", audit.LedgerBalance.String()),
		)
	}
	return &audit, nil
}

// ApplySale writes sale OUT movements for a confirmed sales order.
func (s *InventoryService) ApplySale(ctx context.Context, companyID, salesOrderID uuid.UUID, lines []SaleLine) error {
	return s.applySalesOrder(ctx, companyID, salesOrderID, lines, domain.MovementTypeOut, domain.MovementReasonSale)
}

// ApplySaleCancellation returns the goods of a cancelled sales order to stock.
// The quantities restocked are the ones the applied sale took out; cancelling
// an order whose sale was never applied is a no-op.
func (s *InventoryService) ApplySaleCancellation(ctx context.Context, companyID, salesOrderID uuid.UUID, lines []SaleLine) error {
	return s.applySalesOrder(ctx, companyID, salesOrderID, lines, domain.MovementTypeIn, domain.MovementReasonSaleCancel)
}

// applySalesOrder is idempotent per sales order and reason. The product rows
// are locked before the ledger is read, so a duplicate delivery running
// concurrently waits for the first one and then sees its movements.
// Cancellations return what the ledger says was sold, not what the event
// claims.
func (s *InventoryService) applySalesOrder(ctx context.Context, companyID, salesOrderID uuid.UUID, lines []SaleLine, movementType, reason string) error {
	requested, err := saleQuantities(lines)
	if err != nil {
		return err
	}
	cancel := reason == domain.MovementReasonSaleCancel

	written := 0
	err = s.tx.WithinTx(ctx, func(store repository.Store) error {
		ids := sortedProductIDs(requested)
		if cancel {
			// The sale rows name the products to lock. They are never
			// rewritten, so reading them before the lock is safe.
			existing, err := store.Movements().ListByReference(ctx, companyID, domain.RefTypeSalesOrder, salesOrderID)
			if err != nil {
				return err
			}
			ids = sortedProductIDs(soldQuantities(existing))
			if len(ids) == 0 {
				return nil
			}
		}

		products, err := store.Products().LockByIDs(ctx, companyID, ids)
		if err != nil {
			return err
		}

		existing, err := store.Movements().ListByReference(ctx, companyID, domain.RefTypeSalesOrder, salesOrderID)
		if err != nil {
			return err
		}
		applied := map[string]bool{}
		for _, m := range existing {
			applied[m.Reason] = true
		}
		if applied[reason] {
			return nil
		}

		quantities := requested
		if cancel {
			if !applied[domain.MovementReasonSale] {
				return nil
			}
			quantities = soldQuantities(existing)
			if !maps.Equal(quantities, requested) {
				s.logger.WarnContext(ctx, "sales order cancellation differs from applied sale",
					slog.String("sales_order_id", salesOrderID.String()),
					slog.Int("event_products", len(requested)),
					slog.Int("sold_products", len(quantities)),
				)
			}
		}

		now := s.now()
		for _, id := range sortedProductIDs(quantities) {
			qty := quantities[id]
			p, ok := products[id]
			if !ok {
				return apperrors.NotFound("product", id.String())
			}
			if movementType == domain.MovementTypeOut {
				if p.Stock-qty < 0 {
					return apperrors.InsufficientStock(p.SKU, strconv.FormatInt(p.Stock, 10), strconv.FormatInt(qty, 10))
				}
				p.Stock -= qty
			} else {
				p.Stock += qty
			}
			p.UpdatedAt = now

			m := domain.NewStockMovement(companyID, p.ID, movementType, reason,
				domain.RefTypeSalesOrder, salesOrderID, decimal.NewFromInt(qty), p.Cost, "", now)
			if err := store.Movements().Append(ctx, m); err != nil {
				return err
			}
			if err := store.Products().UpdateInventory(ctx, p); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if written == 0 {
		s.logger.DebugContext(ctx, "sales order already applied",
			slog.String("sales_order_id", salesOrderID.String()),
			slog.String("reason", reason),
		)
		return nil
	}

	movementsWritten.WithLabelValues(movementType, reason).Add(float64(written))
	s.logger.InfoContext(ctx, "sales order stock applied",
		slog.String("sales_order_id", salesOrderID.String()),
		slog.String("company_id", companyID.String()),
		slog.String("reason", reason),
		slog.Int("products", written),
	)
	return nil
}

// saleQuantities merges the lines of a sales order event per product.
func saleQuantities(lines []SaleLine) (map[uuid.UUID]int64, error) {
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("sales order has no lines")
	}
	qty := make(map[uuid.UUID]int64, len(lines))
	for _, l := range lines {
		if l.Qty <= 0 {
			return nil, apperrors.InvalidInput("sale qty must be positive")
		}
		qty[l.ProductID] += l.Qty
	}
	return qty, nil
}

// soldQuantities sums the sale movements of a sales order per product.
func soldQuantities(movements []domain.StockMovement) map[uuid.UUID]int64 {
	qty := make(map[uuid.UUID]int64)
	for _, m := range movements {
		if m.Reason == domain.MovementReasonSale {
			qty[m.ProductID] += m.Qty.IntPart()
		}
	}
	return qty
}

func sortedProductIDs(qty map[uuid.UUID]int64) []uuid.UUID {
	ids := slices.Collect(maps.Keys(qty))
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids
}

// CreateSupplier registers a supplier.
func (s *InventoryService) CreateSupplier(ctx context.Context, companyID uuid.UUID, name, document string) (*domain.Supplier, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	supplier := &domain.Supplier{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      strings.TrimSpace(name),
		Document:  document,
		CreatedAt: s.now(),
	}
	if err := s.store.Suppliers().Create(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// GetSupplier retrieves a supplier.
func (s *InventoryService) GetSupplier(ctx context.Context, companyID, supplierID uuid.UUID) (*domain.Supplier, error) {
	return s.store.Suppliers().GetByID(ctx, companyID, supplierID)
}
