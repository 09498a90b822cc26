package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

// PurchasingService implements purchase order authoring, stock posting and
// stock reversal.
type PurchasingService struct {
	store  repository.Store
	tx     repository.TxManager
	locker Locker
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewPurchasingService creates a new purchasing service. locker and events
// may be nil: without a locker only database row locks serialize postings,
// without events nothing is published.
func NewPurchasingService(
	store repository.Store,
	tx repository.TxManager,
	locker Locker,
	events EventPublisher,
	logger *slog.Logger,
) *PurchasingService {
	return &PurchasingService{
		store:  store,
		tx:     tx,
		locker: locker,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreatePurchaseOrderInput holds the fields of a new purchase order.
type CreatePurchaseOrderInput struct {
	SupplierID *uuid.UUID
	Number     string
	Notes      string
}

// AddItemInput holds the fields of a new purchase order line.
type AddItemInput struct {
	ProductID uuid.UUID
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
	SellPrice *decimal.Decimal
}

// PurchaseOrderDetail is a purchase order together with every stock movement
// it produced, postings and reversals alike.
type PurchaseOrderDetail struct {
	*domain.PurchaseOrder
	Movements []domain.StockMovement `json:"movements"`
}

// CreatePurchaseOrder creates an empty DRAFT order.
func (s *PurchasingService) CreatePurchaseOrder(ctx context.Context, companyID uuid.UUID, actor string, in CreatePurchaseOrderInput) (*domain.PurchaseOrder, error) {
	var supplier *domain.Supplier
	if in.SupplierID != nil {
		var err error
		supplier, err = s.store.Suppliers().GetByID(ctx, companyID, *in.SupplierID)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	order := &domain.PurchaseOrder{
		ID:         uuid.New(),
		CompanyID:  companyID,
		SupplierID: in.SupplierID,
		Supplier:   supplier,
		Number:     in.Number,
		Notes:      in.Notes,
		Status:     domain.PurchaseOrderStatusDraft,
		TotalValue: decimal.Zero,
		Items:      []domain.PurchaseOrderItem{},
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.PurchaseOrders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}

	s.logger.InfoContext(ctx, "purchase order created",
		slog.String("purchase_order_id", order.ID.String()),
		slog.String("company_id", companyID.String()),
	)

	return order, nil
}

// GetPurchaseOrder returns the order, its supplier, items and ledger entries.
func (s *PurchasingService) GetPurchaseOrder(ctx context.Context, companyID, orderID uuid.UUID) (*PurchaseOrderDetail, error) {
	order, err := s.store.PurchaseOrders().GetByID(ctx, companyID, orderID)
	if err != nil {
		return nil, err
	}

	movements, err := s.store.Movements().ListByReference(ctx, companyID, domain.RefTypePurchaseOrder, orderID)
	if err != nil {
		return nil, fmt.Errorf("get purchase order movements: %w", err)
	}

	return &PurchaseOrderDetail{PurchaseOrder: order, Movements: movements}, nil
}

// ListPurchaseOrders returns a page of order headers.
func (s *PurchasingService) ListPurchaseOrders(ctx context.Context, companyID uuid.UUID, filter repository.PurchaseOrderFilter) ([]domain.PurchaseOrder, int, error) {
	if filter.Status != "" && !domain.IsValidPurchaseOrderStatus(filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", filter.Status))
	}

	orders, total, err := s.store.PurchaseOrders().List(ctx, companyID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchase orders: %w", err)
	}
	return orders, total, nil
}

// AddItem appends a line to a DRAFT order. Description and SKU are copied
// from the product as it is now.
func (s *PurchasingService) AddItem(ctx context.Context, companyID, orderID uuid.UUID, in AddItemInput) (*domain.PurchaseOrder, error) {
	if in.UnitCost.IsNegative() {
		return nil, apperrors.InvalidInput("unit_cost must not be negative")
	}
	if in.SellPrice != nil && in.SellPrice.IsNegative() {
		return nil, apperrors.InvalidInput("sell_price must not be negative")
	}

	var order *domain.PurchaseOrder
	err := s.tx.WithinTx(ctx, func(store repository.Store) error {
		var err error
		order, err = store.PurchaseOrders().GetForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureEditable(); err != nil {
			return err
		}

		product, err := store.Products().GetByID(ctx, companyID, in.ProductID)
		if err != nil {
			return err
		}

		now := s.now()
		item, err := domain.NewPurchaseOrderItem(order.ID, product, in.Qty, in.UnitCost, in.SellPrice, now)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
		if err := store.PurchaseOrders().AddItem(ctx, item); err != nil {
			return err
		}

		order.Items = append(order.Items, *item)
		order.RecalculateTotal()
		order.UpdatedAt = now
		return store.PurchaseOrders().UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase order item added",
		slog.String("purchase_order_id", orderID.String()),
		slog.String("product_id", in.ProductID.String()),
		slog.String("qty", in.Qty.String()),
	)

	return order, nil
}

// RemoveItem deletes a line of a DRAFT order.
func (s *PurchasingService) RemoveItem(ctx context.Context, companyID, orderID, itemID uuid.UUID) (*domain.PurchaseOrder, error) {
	var order *domain.PurchaseOrder
	err := s.tx.WithinTx(ctx, func(store repository.Store) error {
		var err error
		order, err = store.PurchaseOrders().GetForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureEditable(); err != nil {
			return err
		}
		if err := store.PurchaseOrders().DeleteItem(ctx, order.ID, itemID); err != nil {
			return err
		}

		kept := order.Items[:0]
		for _, item := range order.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		order.Items = kept
		order.RecalculateTotal()
		order.UpdatedAt = s.now()
		return store.PurchaseOrders().UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase order item removed",
		slog.String("purchase_order_id", orderID.String()),
		slog.String("item_id", itemID.String()),
	)

	return order, nil
}

// Finalize freezes the lines of a DRAFT order.
func (s *PurchasingService) Finalize(ctx context.Context, companyID, orderID uuid.UUID) (*domain.PurchaseOrder, error) {
	return s.transition(ctx, companyID, orderID, "finalized", func(o *domain.PurchaseOrder, now time.Time) error {
		return o.Finalize(now)
	})
}

// Reopen returns a FINALIZED order to DRAFT.
func (s *PurchasingService) Reopen(ctx context.Context, companyID, orderID uuid.UUID) (*domain.PurchaseOrder, error) {
	return s.transition(ctx, companyID, orderID, "reopened", func(o *domain.PurchaseOrder, now time.Time) error {
		return o.Reopen(now)
	})
}

func (s *PurchasingService) transition(ctx context.Context, companyID, orderID uuid.UUID, verb string, apply func(*domain.PurchaseOrder, time.Time) error) (*domain.PurchaseOrder, error) {
	var order *domain.PurchaseOrder
	err := s.tx.WithinTx(ctx, func(store repository.Store) error {
		var err error
		order, err = store.PurchaseOrders().GetForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := apply(order, s.now()); err != nil {
			return err
		}
		return store.PurchaseOrders().UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase order "+verb,
		slog.String("purchase_order_id", orderID.String()),
		slog.String("status", order.Status),
	)

	return order, nil
}
