package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeManifest describes what a posting or reversal did to one product.
type ChangeManifest struct {
	ProductID    uuid.UUID       `json:"product_id"`
	NameSnapshot string          `json:"name"`
	SKU          string          `json:"sku"`
	CostChanged  bool            `json:"cost_changed"`
	PriceChanged bool            `json:"price_changed"`
	NewStock     int64           `json:"new_stock"`
	NewCost      decimal.Decimal `json:"new_cost"`
	NewPrice     decimal.Decimal `json:"new_price"`
}

// ManifestBuilder accumulates one manifest entry per product in the order the
// products were first touched. Lines that hit the same product twice merge
// into a single entry carrying the final values.
type ManifestBuilder struct {
	order   []uuid.UUID
	entries map[uuid.UUID]*ChangeManifest
}

// NewManifestBuilder returns an empty builder.
func NewManifestBuilder() *ManifestBuilder {
	return &ManifestBuilder{entries: make(map[uuid.UUID]*ChangeManifest)}
}

// Record merges the product's current state into the manifest.
func (b *ManifestBuilder) Record(p *Product, costChanged, priceChanged bool) {
	e, ok := b.entries[p.ID]
	if !ok {
		e = &ChangeManifest{ProductID: p.ID}
		b.entries[p.ID] = e
		b.order = append(b.order, p.ID)
	}
	e.NameSnapshot = p.Name
	e.SKU = p.SKU
	e.CostChanged = e.CostChanged || costChanged
	e.PriceChanged = e.PriceChanged || priceChanged
	e.NewStock = p.Stock
	e.NewCost = p.Cost
	e.NewPrice = p.Price
}

// Build returns the entries in first-touched order.
func (b *ManifestBuilder) Build() []ChangeManifest {
	out := make([]ChangeManifest, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.entries[id])
	}
	return out
}

// PostingResult is returned by a successful posting.
type PostingResult struct {
	PurchaseOrderID uuid.UUID        `json:"purchase_order_id"`
	Status          string           `json:"status"`
	PostedAt        time.Time        `json:"posted_at"`
	UpdatedProducts []ChangeManifest `json:"updated_products"`
}

// CostUpdates counts products whose cost changed.
func (r *PostingResult) CostUpdates() int {
	n := 0
	for _, m := range r.UpdatedProducts {
		if m.CostChanged {
			n++
		}
	}
	return n
}

// PriceUpdates counts products whose price changed.
func (r *PostingResult) PriceUpdates() int {
	n := 0
	for _, m := range r.UpdatedProducts {
		if m.PriceChanged {
			n++
		}
	}
	return n
}

// ReversalResult is returned by a successful reversal. Cost and price are
// never altered by a reversal, so only NewStock moves in UpdatedProducts.
type ReversalResult struct {
	PurchaseOrderID uuid.UUID        `json:"purchase_order_id"`
	Status          string           `json:"status"`
	ReversedAt      time.Time        `json:"reversed_at"`
	UpdatedProducts []ChangeManifest `json:"updated_products"`
}
