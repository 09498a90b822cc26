package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Movement directions.
const (
	MovementTypeIn  = "IN"
	MovementTypeOut = "OUT"
)

// Movement reasons.
const (
	MovementReasonPurchasePost     = "purchase-post"
	MovementReasonPurchaseReverse  = "purchase-reverse"
	MovementReasonManualAdjustment = "manual-adjustment"
	MovementReasonSale             = "sale"
	MovementReasonSaleCancel       = "sale-cancel"
	MovementReasonOpeningBalance   = "opening-balance"
)

// Movement reference types.
const (
	RefTypePurchaseOrder = "purchase_order"
	RefTypeSalesOrder    = "sales_order"
	RefTypeAdjustment    = "adjustment"
	RefTypeProduct       = "product"
)

// StockMovement is one entry of the append-only stock ledger. Qty is always
// positive; Type carries the direction.
type StockMovement struct {
	ID        uuid.UUID       `json:"id"`
	CompanyID uuid.UUID       `json:"company_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Type      string          `json:"type"`
	Reason    string          `json:"reason"`
	RefType   string          `json:"ref_type"`
	RefID     uuid.UUID       `json:"ref_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Note      string          `json:"note,omitempty"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewStockMovement builds a ledger entry stamped with a fresh id and now.
func NewStockMovement(companyID, productID uuid.UUID, movementType, reason, refType string, refID uuid.UUID, qty, unitCost decimal.Decimal, createdBy string, now time.Time) *StockMovement {
	return &StockMovement{
		ID:        uuid.New(),
		CompanyID: companyID,
		ProductID: productID,
		Type:      movementType,
		Reason:    reason,
		RefType:   refType,
		RefID:     refID,
		Qty:       qty,
		UnitCost:  unitCost,
		CreatedBy: createdBy,
		CreatedAt: now,
	}
}

// SignedQty returns Qty for IN movements and -Qty for OUT movements.
func (m *StockMovement) SignedQty() decimal.Decimal {
	if m.Type == MovementTypeOut {
		return m.Qty.Neg()
	}
	return m.Qty
}

// ReplayStock sums the signed quantities of movements. For a product whose
// every change went through the ledger this equals its stored stock.
func ReplayStock(movements []StockMovement) decimal.Decimal {
	total := decimal.Zero
	for i := range movements {
		total = total.Add(movements[i].SignedQty())
	}
	return total
}

// StockAudit compares a product's stored stock with its ledger balance.
type StockAudit struct {
	ProductID     uuid.UUID       `json:"product_id"`
	SKU           string          `json:"sku"`
	StoredStock   int64           `json:"stored_stock"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Drift         decimal.Decimal `json:"drift"`
	Movements     int             `json:"movements"`
	InSync        bool            `json:"in_sync"`
}

// AuditStock replays movements and reports drift against product.Stock.
func AuditStock(product *Product, movements []StockMovement) StockAudit {
	balance := ReplayStock(movements)
	drift := decimal.NewFromInt(product.Stock).Sub(balance)
	return StockAudit{
		ProductID:     product.ID,
		SKU:           product.SKU,
		StoredStock:   product.Stock,
		LedgerBalance: balance,
		Drift:         drift,
		Movements:     len(movements),
		InSync:        drift.IsZero(),
	}
}
