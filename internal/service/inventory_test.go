package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/WholesaleGo/internal/domain"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

func TestCreateProduct_OpeningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product("SKU-1", 12, "3.333", "5")
	assertDecimal(t, "3.33", p.Cost)

	movements, total, err := f.inventory.ListMovements(ctx, f.companyID, p.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementReasonOpeningBalance, movements[0].Reason)
	assertDecimal(t, "12", movements[0].Qty)

	audit, err := f.inventory.AuditStock(ctx, f.companyID, p.ID)
	require.NoError(t, err)
	assert.True(t, audit.InSync)
}

func TestCreateProduct_NoOpeningMovementForZeroStock(t *testing.T) {
	f := newFixture(t)
	p := f.product("SKU-1", 0, "1", "2")

	movements, total, err := f.inventory.ListMovements(context.Background(), f.companyID, p.ID, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, movements)
}

func TestCreateProduct_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product("SKU-1", 0, "1", "2")

	tests := []struct {
		name    string
		in      CreateProductInput
		wantErr error
	}{
		{name: "missing sku", in: CreateProductInput{Name: "x"}, wantErr: apperrors.ErrInvalidInput},
		{name: "negative stock", in: CreateProductInput{SKU: "SKU-2", OpeningStock: -1}, wantErr: apperrors.ErrInvalidInput},
		{name: "negative cost", in: CreateProductInput{SKU: "SKU-2", Cost: dec("-0.01")}, wantErr: apperrors.ErrInvalidInput},
		{name: "duplicate sku", in: CreateProductInput{SKU: "SKU-1"}, wantErr: apperrors.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.inventory.CreateProduct(ctx, f.companyID, "tester", tt.in)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Len(t, f.db.state.products, 1)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("SKU-1", 10, "4.00", "6.00")

	product, movement, err := f.inventory.AdjustStock(ctx, f.companyID, p.ID, "clerk", AdjustStockInput{
		Type: domain.MovementTypeIn,
		Qty:  5,
		Note: "found in back room",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), product.Stock)
	assertDecimal(t, "4.00", product.Cost)
	assert.Equal(t, domain.MovementReasonManualAdjustment, movement.Reason)
	assert.Equal(t, domain.RefTypeAdjustment, movement.RefType)
	assert.Equal(t, "found in back room", movement.Note)
	assertDecimal(t, "4.00", movement.UnitCost)
	require.Len(t, f.events.adjusted, 1)

	product, _, err = f.inventory.AdjustStock(ctx, f.companyID, p.ID, "clerk", AdjustStockInput{Type: domain.MovementTypeOut, Qty: 15})
	require.NoError(t, err)
	assert.Equal(t, int64(0), product.Stock)

	audit, err := f.inventory.AuditStock(ctx, f.companyID, p.ID)
	require.NoError(t, err)
	assert.True(t, audit.InSync)
	assert.Equal(t, 3, audit.Movements)
}

func TestAdjustStock_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("SKU-1", 2, "4.00", "6.00")

	_, _, err := f.inventory.AdjustStock(ctx, f.companyID, p.ID, "clerk", AdjustStockInput{Type: domain.MovementTypeOut, Qty: 3})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock))
	assert.Equal(t, int64(2), f.stored(p.ID).Stock)

	_, _, err = f.inventory.AdjustStock(ctx, f.companyID, p.ID, "clerk", AdjustStockInput{Type: "SIDEWAYS", Qty: 1})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, _, err = f.inventory.AdjustStock(ctx, f.companyID, p.ID, "clerk", AdjustStockInput{Type: domain.MovementTypeIn, Qty: 0})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, _, err = f.inventory.AdjustStock(ctx, f.companyID, uuid.New(), "clerk", AdjustStockInput{Type: domain.MovementTypeIn, Qty: 1})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.Empty(t, f.events.adjusted)
}

func TestAuditStock_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	p := f.product("SKU-1", 10, "1", "2")

	stored := f.stored(p.ID)
	stored.Stock = 7
	f.db.state.products[p.ID] = stored

	audit, err := f.inventory.AuditStock(context.Background(), f.companyID, p.ID)
	require.NoError(t, err)
	assert.False(t, audit.InSync)
	assertDecimal(t, "10", audit.LedgerBalance)
	assertDecimal(t, "-3", audit.Drift)
}

func TestApplySale_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product("SKU-A", 10, "1", "2")
	b := f.product("SKU-B", 4, "1", "2")
	salesOrderID := uuid.New()
	lines := []SaleLine{{ProductID: a.ID, Qty: 3}, {ProductID: b.ID, Qty: 4}}

	require.NoError(t, f.inventory.ApplySale(ctx, f.companyID, salesOrderID, lines))
	require.NoError(t, f.inventory.ApplySale(ctx, f.companyID, salesOrderID, lines))

	assert.Equal(t, int64(7), f.stored(a.ID).Stock)
	assert.Equal(t, int64(0), f.stored(b.ID).Stock)

	require.NoError(t, f.inventory.ApplySaleCancellation(ctx, f.companyID, salesOrderID, lines))
	require.NoError(t, f.inventory.ApplySaleCancellation(ctx, f.companyID, salesOrderID, lines))

	assert.Equal(t, int64(10), f.stored(a.ID).Stock)
	assert.Equal(t, int64(4), f.stored(b.ID).Stock)

	audit, err := f.inventory.AuditStock(ctx, f.companyID, a.ID)
	require.NoError(t, err)
	assert.True(t, audit.InSync)
	assert.Equal(t, 3, audit.Movements)
}

func TestApplySale_InsufficientStockAppliesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product("SKU-A", 10, "1", "2")
	b := f.product("SKU-B", 1, "1", "2")

	err := f.inventory.ApplySale(ctx, f.companyID, uuid.New(), []SaleLine{
		{ProductID: a.ID, Qty: 3},
		{ProductID: b.ID, Qty: 2},
	})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock))
	assert.Equal(t, int64(10), f.stored(a.ID).Stock)
	assert.Equal(t, int64(1), f.stored(b.ID).Stock)
}

func TestApplySaleCancellation_WithoutSaleIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.product("SKU-A", 10, "1", "2")

	err := f.inventory.ApplySaleCancellation(context.Background(), f.companyID, uuid.New(), []SaleLine{{ProductID: a.ID, Qty: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.stored(a.ID).Stock)
}

func TestApplySaleCancellation_RestocksWhatWasSold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product("SKU-A", 10, "1", "2")
	b := f.product("SKU-B", 5, "1", "2")
	salesOrderID := uuid.New()

	require.NoError(t, f.inventory.ApplySale(ctx, f.companyID, salesOrderID, []SaleLine{{ProductID: a.ID, Qty: 3}}))
	assert.Equal(t, int64(7), f.stored(a.ID).Stock)

	err := f.inventory.ApplySaleCancellation(ctx, f.companyID, salesOrderID, []SaleLine{
		{ProductID: a.ID, Qty: 10},
		{ProductID: b.ID, Qty: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), f.stored(a.ID).Stock)
	assert.Equal(t, int64(5), f.stored(b.ID).Stock)

	var restocked []domain.StockMovement
	for _, m := range f.db.state.movements {
		if m.RefID == salesOrderID && m.Reason == domain.MovementReasonSaleCancel {
			restocked = append(restocked, m)
		}
	}
	require.Len(t, restocked, 1)
	assert.Equal(t, a.ID, restocked[0].ProductID)
	assertDecimal(t, "3", restocked[0].Qty)

	audit, err := f.inventory.AuditStock(ctx, f.companyID, a.ID)
	require.NoError(t, err)
	assert.True(t, audit.InSync)
}

func TestApplySale_MergesLinesOfTheSameProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product("SKU-A", 10, "1", "2")
	salesOrderID := uuid.New()

	err := f.inventory.ApplySale(ctx, f.companyID, salesOrderID, []SaleLine{
		{ProductID: a.ID, Qty: 2},
		{ProductID: a.ID, Qty: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stored(a.ID).Stock)

	var sold []domain.StockMovement
	for _, m := range f.db.state.movements {
		if m.RefID == salesOrderID {
			sold = append(sold, m)
		}
	}
	require.Len(t, sold, 1)
	assertDecimal(t, "5", sold[0].Qty)
}

func TestApplySale_RejectsEmptyAndNonPositiveLines(t *testing.T) {
	f := newFixture(t)
	a := f.product("SKU-A", 10, "1", "2")

	err := f.inventory.ApplySale(context.Background(), f.companyID, uuid.New(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	err = f.inventory.ApplySale(context.Background(), f.companyID, uuid.New(), []SaleLine{{ProductID: a.ID, Qty: 0}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Equal(t, int64(10), f.stored(a.ID).Stock)
}

func TestSuppliers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.inventory.CreateSupplier(ctx, f.companyID, "  ", "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	s, err := f.inventory.CreateSupplier(ctx, f.companyID, " Acme ", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme", s.Name)

	got, err := f.inventory.GetSupplier(ctx, f.companyID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = f.inventory.GetSupplier(ctx, uuid.New(), s.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
