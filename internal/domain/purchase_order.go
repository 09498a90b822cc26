package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

// Purchase order status constants.
const (
	PurchaseOrderStatusDraft       = "DRAFT"
	PurchaseOrderStatusFinalized   = "FINALIZED"
	PurchaseOrderStatusStockPosted = "STOCK_POSTED"
	// PurchaseOrderStatusStockReversed exists in older rows. Reversal now
	// returns orders to DRAFT, but a stored STOCK_REVERSED order behaves like
	// a draft.
	PurchaseOrderStatusStockReversed = "STOCK_REVERSED"
)

// ValidPurchaseOrderStatuses returns all purchase order statuses.
func ValidPurchaseOrderStatuses() []string {
	return []string{
		PurchaseOrderStatusDraft,
		PurchaseOrderStatusFinalized,
		PurchaseOrderStatusStockPosted,
		PurchaseOrderStatusStockReversed,
	}
}

// IsValidPurchaseOrderStatus checks if a status string is valid.
func IsValidPurchaseOrderStatus(status string) bool {
	return slices.Contains(ValidPurchaseOrderStatuses(), status)
}

// AllowedPurchaseOrderTransitions defines the state machine. It is cyclic:
// a posted order can always be reversed back to DRAFT and posted again.
func AllowedPurchaseOrderTransitions() map[string][]string {
	return map[string][]string{
		PurchaseOrderStatusDraft:         {PurchaseOrderStatusFinalized, PurchaseOrderStatusStockPosted},
		PurchaseOrderStatusFinalized:     {PurchaseOrderStatusDraft, PurchaseOrderStatusStockPosted},
		PurchaseOrderStatusStockPosted:   {PurchaseOrderStatusDraft},
		PurchaseOrderStatusStockReversed: {PurchaseOrderStatusDraft, PurchaseOrderStatusFinalized, PurchaseOrderStatusStockPosted},
	}
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to string) bool {
	return slices.Contains(AllowedPurchaseOrderTransitions()[from], to)
}

// PurchaseOrder is a supplier purchase document. Line items are editable only
// while the order is a draft.
type PurchaseOrder struct {
	ID          uuid.UUID           `json:"id"`
	CompanyID   uuid.UUID           `json:"company_id"`
	SupplierID  *uuid.UUID          `json:"supplier_id,omitempty"`
	Supplier    *Supplier           `json:"supplier,omitempty"`
	Number      string              `json:"number,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Status      string              `json:"status"`
	TotalValue  decimal.Decimal     `json:"total_value"`
	Items       []PurchaseOrderItem `json:"items"`
	CreatedBy   string              `json:"created_by,omitempty"`
	FinalizedAt *time.Time          `json:"finalized_at,omitempty"`
	PostedAt    *time.Time          `json:"posted_at,omitempty"`
	ReversedAt  *time.Time          `json:"reversed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// IsEditable reports whether lines may be added or removed.
func (o *PurchaseOrder) IsEditable() bool {
	return o.Status == PurchaseOrderStatusDraft || o.Status == PurchaseOrderStatusStockReversed
}

// EnsureEditable returns an InvalidState error unless lines may be changed.
func (o *PurchaseOrder) EnsureEditable() error {
	if !o.IsEditable() {
		return apperrors.InvalidState(fmt.Sprintf("purchase order is %s, lines can only change while DRAFT", o.Status))
	}
	return nil
}

// CanPost validates the posting precondition.
func (o *PurchaseOrder) CanPost() error {
	if o.Status == PurchaseOrderStatusStockPosted {
		return apperrors.InvalidState("purchase order already posted")
	}
	if !CanTransition(o.Status, PurchaseOrderStatusStockPosted) {
		return apperrors.InvalidState(fmt.Sprintf("purchase order in status %s cannot be posted", o.Status))
	}
	if len(o.Items) == 0 {
		return apperrors.InvalidState("purchase order has no items to post")
	}
	return nil
}

// CanReverse validates the reversal precondition.
func (o *PurchaseOrder) CanReverse() error {
	if o.Status != PurchaseOrderStatusStockPosted {
		return apperrors.InvalidState("purchase order is not posted, nothing to reverse")
	}
	return nil
}

// Finalize freezes the lines of a draft. At least one line is required.
func (o *PurchaseOrder) Finalize(now time.Time) error {
	if !CanTransition(o.Status, PurchaseOrderStatusFinalized) {
		return apperrors.InvalidState(fmt.Sprintf("purchase order in status %s cannot be finalized", o.Status))
	}
	if len(o.Items) == 0 {
		return apperrors.InvalidState("purchase order needs at least one item to be finalized")
	}
	o.Status = PurchaseOrderStatusFinalized
	o.FinalizedAt = &now
	o.UpdatedAt = now
	return nil
}

// Reopen returns a finalized order to DRAFT so its lines can be edited.
func (o *PurchaseOrder) Reopen(now time.Time) error {
	if o.Status != PurchaseOrderStatusFinalized {
		return apperrors.InvalidState(fmt.Sprintf("purchase order in status %s cannot be reopened", o.Status))
	}
	o.Status = PurchaseOrderStatusDraft
	o.FinalizedAt = nil
	o.UpdatedAt = now
	return nil
}

// MarkPosted records a successful posting.
func (o *PurchaseOrder) MarkPosted(now time.Time) {
	o.Status = PurchaseOrderStatusStockPosted
	o.PostedAt = &now
	o.UpdatedAt = now
}

// MarkReversed records a successful reversal. PostedAt is kept for audit.
func (o *PurchaseOrder) MarkReversed(now time.Time) {
	o.Status = PurchaseOrderStatusDraft
	o.ReversedAt = &now
	o.FinalizedAt = nil
	o.UpdatedAt = now
}

// RecalculateTotal sets TotalValue to the sum of the line totals.
func (o *PurchaseOrder) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal)
	}
	o.TotalValue = RoundMoney(total)
}

// ProductIDs returns the distinct products referenced by the lines in
// ascending order. Locking rows in this order keeps concurrent postings from
// deadlocking on each other.
func (o *PurchaseOrder) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return slices.Compact(ids)
}
