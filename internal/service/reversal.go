package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

// ReverseStock undoes the stock effect of a posted purchase order. It writes
// one OUT movement per line and lowers stock by the line quantity; cost and
// price keep their current values. The order returns to DRAFT with
// ReversedAt set and PostedAt kept.
//
// If any product would go negative (the goods were already sold) the whole
// reversal fails with InsufficientStock.
func (s *PurchasingService) ReverseStock(ctx context.Context, companyID, orderID uuid.UUID, actor string) (_ *domain.ReversalResult, err error) {
	ctx, finish := startStockOperation(ctx, "reverse", companyID, orderID)
	defer func() { finish(err) }()

	release, err := acquireOrderLock(ctx, s.locker, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		result *domain.ReversalResult
		lines  int
	)
	err = s.tx.WithinTx(ctx, func(store repository.Store) error {
		order, err := store.PurchaseOrders().GetForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := order.CanReverse(); err != nil {
			return err
		}

		productIDs := order.ProductIDs()
		products, err := store.Products().LockByIDs(ctx, companyID, productIDs)
		if err != nil {
			return err
		}

		now := s.now()
		manifest := domain.NewManifestBuilder()
		for i := range order.Items {
			item := &order.Items[i]
			product, ok := products[item.ProductID]
			if !ok {
				return apperrors.NotFound("product", item.ProductID.String())
			}

			units, err := domain.WholeUnits(item.Qty)
			if err != nil {
				return apperrors.InvalidInput(err.Error())
			}
			if product.Stock-units < 0 {
				return apperrors.InsufficientStock(product.SKU,
					strconv.FormatInt(product.Stock, 10), strconv.FormatInt(units, 10))
			}

			product.Stock -= units
			product.UpdatedAt = now

			movement := domain.NewStockMovement(companyID, product.ID,
				domain.MovementTypeOut, domain.MovementReasonPurchaseReverse,
				domain.RefTypePurchaseOrder, order.ID,
				item.Qty, item.UnitCost, actor, now)
			if err := store.Movements().Append(ctx, movement); err != nil {
				return err
			}

			manifest.Record(product, false, false)
		}

		for _, id := range productIDs {
			if err := store.Products().UpdateInventory(ctx, products[id]); err != nil {
				return err
			}
		}

		order.MarkReversed(now)
		if err := store.PurchaseOrders().UpdateHeader(ctx, order); err != nil {
			return err
		}

		lines = len(order.Items)
		result = &domain.ReversalResult{
			PurchaseOrderID: order.ID,
			Status:          order.Status,
			ReversedAt:      now,
			UpdatedProducts: manifest.Build(),
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "stock reversal failed",
			slog.String("purchase_order_id", orderID.String()),
			slog.String("company_id", companyID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	movementsWritten.WithLabelValues(domain.MovementTypeOut, domain.MovementReasonPurchaseReverse).Add(float64(lines))

	s.logger.InfoContext(ctx, "stock reversed",
		slog.String("purchase_order_id", orderID.String()),
		slog.String("company_id", companyID.String()),
		slog.Int("products", len(result.UpdatedProducts)),
	)

	if s.events != nil {
		if err := s.events.PublishStockReversed(ctx, companyID, result); err != nil {
			logPublishFailure(ctx, s.logger, "stock_reversed", orderID, err)
		}
	}

	return result, nil
}
