package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderItem is one line of a purchase order. Description and SKU are
// copied from the product when the line is added so later renames do not
// rewrite history.
type PurchaseOrderItem struct {
	ID                  uuid.UUID        `json:"id"`
	PurchaseOrderID     uuid.UUID        `json:"purchase_order_id"`
	ProductID           uuid.UUID        `json:"product_id"`
	Qty                 decimal.Decimal  `json:"qty"`
	UnitCost            decimal.Decimal  `json:"unit_cost"`
	SellPrice           *decimal.Decimal `json:"sell_price,omitempty"`
	LineTotal           decimal.Decimal  `json:"line_total"`
	DescriptionSnapshot string           `json:"description_snapshot"`
	SKUSnapshot         string           `json:"sku_snapshot"`
	CreatedAt           time.Time        `json:"created_at"`
}

// NewPurchaseOrderItem builds a line for product, snapshotting its name and SKU.
func NewPurchaseOrderItem(orderID uuid.UUID, product *Product, qty, unitCost decimal.Decimal, sellPrice *decimal.Decimal, now time.Time) (*PurchaseOrderItem, error) {
	if _, err := WholeUnits(qty); err != nil {
		return nil, err
	}

	item := &PurchaseOrderItem{
		ID:                  uuid.New(),
		PurchaseOrderID:     orderID,
		ProductID:           product.ID,
		Qty:                 qty,
		UnitCost:            RoundMoney(unitCost),
		DescriptionSnapshot: product.Name,
		SKUSnapshot:         product.SKU,
		CreatedAt:           now,
	}
	if sellPrice != nil {
		p := RoundMoney(*sellPrice)
		item.SellPrice = &p
	}
	item.LineTotal = item.ComputeLineTotal()
	return item, nil
}

// ComputeLineTotal returns qty × unit cost rounded to MoneyScale.
func (i *PurchaseOrderItem) ComputeLineTotal() decimal.Decimal {
	return RoundMoney(i.Qty.Mul(i.UnitCost))
}
