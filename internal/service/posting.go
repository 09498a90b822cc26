package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

// PostStock receives the goods of a purchase order into inventory. In one
// transaction it locks the order and its products, blends each line into the
// product's weighted-average cost, applies the line's selling price, raises
// stock, writes one IN movement per line and marks the order STOCK_POSTED.
//
// Lines for the same product are applied in order against the running
// product state. Any failure leaves every row untouched.
func (s *PurchasingService) PostStock(ctx context.Context, companyID, orderID uuid.UUID, actor string) (_ *domain.PostingResult, err error) {
	ctx, finish := startStockOperation(ctx, "post", companyID, orderID)
	defer func() { finish(err) }()

	release, err := acquireOrderLock(ctx, s.locker, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		result *domain.PostingResult
		lines  int
	)
	err = s.tx.WithinTx(ctx, func(store repository.Store) error {
		order, err := store.PurchaseOrders().GetForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := order.CanPost(); err != nil {
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

			newCost := domain.WeightedAverageCost(product.Stock, product.Cost, item.Qty, item.UnitCost)
			costChanged := !newCost.Equal(product.Cost)
			newPrice, priceChanged := domain.PriceAfterPosting(product.Price, item.SellPrice)

			product.Stock += units
			product.Cost = newCost
			product.Price = newPrice
			product.UpdatedAt = now

			movement := domain.NewStockMovement(companyID, product.ID,
				domain.MovementTypeIn, domain.MovementReasonPurchasePost,
				domain.RefTypePurchaseOrder, order.ID,
				item.Qty, item.UnitCost, actor, now)
			if err := store.Movements().Append(ctx, movement); err != nil {
				return err
			}

			manifest.Record(product, costChanged, priceChanged)
		}

		for _, id := range productIDs {
			if err := store.Products().UpdateInventory(ctx, products[id]); err != nil {
				return err
			}
		}

		order.MarkPosted(now)
		if err := store.PurchaseOrders().UpdateHeader(ctx, order); err != nil {
			return err
		}

		lines = len(order.Items)
		result = &domain.PostingResult{
			PurchaseOrderID: order.ID,
			Status:          order.Status,
			PostedAt:        now,
			UpdatedProducts: manifest.Build(),
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "stock posting failed",
			slog.String("purchase_order_id", orderID.String()),
			slog.String("company_id", companyID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	movementsWritten.WithLabelValues(domain.MovementTypeIn, domain.MovementReasonPurchasePost).Add(float64(lines))

	s.logger.InfoContext(ctx, "stock posted",
		slog.String("purchase_order_id", orderID.String()),
		slog.String("company_id", companyID.String()),
		slog.Int("products", len(result.UpdatedProducts)),
		slog.Int("cost_updates", result.CostUpdates()),
		slog.Int("price_updates", result.PriceUpdates()),
	)

	if s.events != nil {
		if err := s.events.PublishStockPosted(ctx, companyID, result); err != nil {
			logPublishFailure(ctx, s.logger, "stock_posted", orderID, err)
		}
	}

	return result, nil
}
