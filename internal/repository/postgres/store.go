package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/WholesaleGo/internal/repository"
	"github.com/utafrali/WholesaleGo/pkg/database"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

// Store bundles the PostgreSQL repositories over one connection or
// transaction.
type Store struct {
	products  *ProductRepository
	suppliers *SupplierRepository
	orders    *PurchaseOrderRepository
	movements *StockMovementRepository
}

// NewStore creates a Store whose repositories run on db.
func NewStore(db database.DBTX) *Store {
	return &Store{
		products:  NewProductRepository(db),
		suppliers: NewSupplierRepository(db),
		orders:    NewPurchaseOrderRepository(db),
		movements: NewStockMovementRepository(db),
	}
}

func (s *Store) Products() repository.ProductRepository             { return s.products }
func (s *Store) Suppliers() repository.SupplierRepository           { return s.suppliers }
func (s *Store) PurchaseOrders() repository.PurchaseOrderRepository { return s.orders }
func (s *Store) Movements() repository.StockMovementRepository      { return s.movements }

// TxManager runs units of work in READ COMMITTED transactions. Correctness
// comes from explicit row locks taken by the repositories, not from the
// isolation level.
type TxManager struct {
	pool database.TxBeginner
}

// NewTxManager creates a TxManager on pool.
func NewTxManager(pool database.TxBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx implements repository.TxManager.
func (m *TxManager) WithinTx(ctx context.Context, fn func(store repository.Store) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err := database.WithTx(ctx, m.pool, opts, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if database.IsConflict(err) && !errors.As(err, &appErr) {
		return apperrors.TransactionConflict(err)
	}
	return err
}
