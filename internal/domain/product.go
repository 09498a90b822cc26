package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog item as seen by the inventory engine. Stock is a whole
// unit count that never goes negative; Cost is the weighted-average unit cost.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	CompanyID     uuid.UUID       `json:"company_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Stock         int64           `json:"stock"`
	ReservedStock int64           `json:"reserved_stock"`
	Cost          decimal.Decimal `json:"cost"`
	Price         decimal.Decimal `json:"price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AvailableStock returns stock not committed to open sales orders.
func (p *Product) AvailableStock() int64 {
	if p.ReservedStock >= p.Stock {
		return 0
	}
	return p.Stock - p.ReservedStock
}

// Supplier is the vendor a purchase order is placed with.
type Supplier struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Document  string    `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
