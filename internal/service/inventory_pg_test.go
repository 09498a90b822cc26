package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository/postgres"
	"github.com/utafrali/WholesaleGo/pkg/database"
)

// These tests run the sales order path against the postgres repositories on
// a mocked pool. pgxmock matches expectations in order, so they pin the
// statement sequence inside the transaction.

const (
	lockProductsSQL    = `SELECT .+ FROM products WHERE company_id = \$1 AND id = ANY\(\$2\) ORDER BY id FOR UPDATE`
	movementsByRefSQL  = `SELECT .+ FROM stock_movements WHERE company_id = \$1 AND ref_type = \$2 AND ref_id = \$3 ORDER BY seq`
	appendMovementSQL  = `INSERT INTO stock_movements`
	updateInventorySQL = `UPDATE products`
)

var (
	pgProductCols = []string{
		"id", "company_id", "sku", "name", "stock", "reserved_stock", "cost", "price", "created_at", "updated_at",
	}
	pgMovementCols = []string{
		"id", "company_id", "product_id", "type", "reason", "ref_type", "ref_id", "qty", "unit_cost", "note", "created_by", "created_at",
	}
)

func newPgInventory(t *testing.T) (*InventoryService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewInventoryService(postgres.NewStore(mock), postgres.NewTxManager(mock), nil, newTestLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

func pgProductRows(products ...domain.Product) *pgxmock.Rows {
	rows := pgxmock.NewRows(pgProductCols)
	for _, p := range products {
		rows.AddRow(p.ID, p.CompanyID, p.SKU, p.Name, p.Stock, p.ReservedStock, p.Cost, p.Price, p.CreatedAt, p.UpdatedAt)
	}
	return rows
}

func pgMovementRows(movements ...*domain.StockMovement) *pgxmock.Rows {
	rows := pgxmock.NewRows(pgMovementCols)
	for _, m := range movements {
		rows.AddRow(m.ID, m.CompanyID, m.ProductID, m.Type, m.Reason, m.RefType, m.RefID, m.Qty, m.UnitCost, m.Note, m.CreatedBy, m.CreatedAt)
	}
	return rows
}

func pgProduct(companyID uuid.UUID, sku string, stock int64) domain.Product {
	return domain.Product{
		ID:        uuid.New(),
		CompanyID: companyID,
		SKU:       sku,
		Name:      "Product " + sku,
		Stock:     stock,
		Cost:      dec("1.00"),
		Price:     dec("2.00"),
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
}

func TestApplySale_LocksProductsBeforeReadingLedger(t *testing.T) {
	svc, mock := newPgInventory(t)
	companyID := uuid.New()
	salesOrderID := uuid.New()
	p := pgProduct(companyID, "SKU-A", 10)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(lockProductsSQL).
		WithArgs(companyID, []uuid.UUID{p.ID}).
		WillReturnRows(pgProductRows(p))
	mock.ExpectQuery(movementsByRefSQL).
		WithArgs(companyID, domain.RefTypeSalesOrder, salesOrderID).
		WillReturnRows(pgMovementRows())
	mock.ExpectExec(appendMovementSQL).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(updateInventorySQL).
		WithArgs(companyID, p.ID, int64(7), p.ReservedStock, pgxmock.AnyArg(), pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := svc.ApplySale(context.Background(), companyID, salesOrderID, []SaleLine{{ProductID: p.ID, Qty: 3}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySale_DuplicateSeenAfterLockWritesNothing(t *testing.T) {
	svc, mock := newPgInventory(t)
	companyID := uuid.New()
	salesOrderID := uuid.New()
	p := pgProduct(companyID, "SKU-A", 7)
	committed := domain.NewStockMovement(companyID, p.ID, domain.MovementTypeOut, domain.MovementReasonSale,
		domain.RefTypeSalesOrder, salesOrderID, dec("3"), p.Cost, "", fixedNow)

	// The other delivery committed while this one waited on the row lock.
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(lockProductsSQL).
		WithArgs(companyID, []uuid.UUID{p.ID}).
		WillReturnRows(pgProductRows(p))
	mock.ExpectQuery(movementsByRefSQL).
		WithArgs(companyID, domain.RefTypeSalesOrder, salesOrderID).
		WillReturnRows(pgMovementRows(committed))
	mock.ExpectCommit()

	err := svc.ApplySale(context.Background(), companyID, salesOrderID, []SaleLine{{ProductID: p.ID, Qty: 3}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySaleCancellation_LocksSoldProductsBeforeDeciding(t *testing.T) {
	svc, mock := newPgInventory(t)
	companyID := uuid.New()
	salesOrderID := uuid.New()
	p := pgProduct(companyID, "SKU-A", 7)
	sold := domain.NewStockMovement(companyID, p.ID, domain.MovementTypeOut, domain.MovementReasonSale,
		domain.RefTypeSalesOrder, salesOrderID, dec("3"), p.Cost, "", fixedNow)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(movementsByRefSQL).
		WithArgs(companyID, domain.RefTypeSalesOrder, salesOrderID).
		WillReturnRows(pgMovementRows(sold))
	mock.ExpectQuery(lockProductsSQL).
		WithArgs(companyID, []uuid.UUID{p.ID}).
		WillReturnRows(pgProductRows(p))
	mock.ExpectQuery(movementsByRefSQL).
		WithArgs(companyID, domain.RefTypeSalesOrder, salesOrderID).
		WillReturnRows(pgMovementRows(sold))
	mock.ExpectExec(appendMovementSQL).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(updateInventorySQL).
		WithArgs(companyID, p.ID, int64(10), p.ReservedStock, pgxmock.AnyArg(), pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	// The event overstates the quantity; only what was sold comes back.
	err := svc.ApplySaleCancellation(context.Background(), companyID, salesOrderID, []SaleLine{{ProductID: p.ID, Qty: 10}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
