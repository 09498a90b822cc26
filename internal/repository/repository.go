package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/utafrali/WholesaleGo/internal/domain"
)

// Every method takes the company id explicitly. Rows of another company are
// invisible: lookups report apperrors.ErrNotFound for them.

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product. A duplicate SKU within the company is
	// reported as apperrors.ErrAlreadyExists.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product without locking it.
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Product, error)

	// LockByIDs reads and row-locks the given products in ascending id order.
	// Missing ids are simply absent from the result; the caller decides
	// whether that is an error.
	LockByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)

	// UpdateInventory persists stock, reserved stock, cost and price.
	UpdateInventory(ctx context.Context, product *domain.Product) error
}

// SupplierRepository defines the interface for supplier persistence operations.
type SupplierRepository interface {
	// Create inserts a new supplier.
	Create(ctx context.Context, supplier *domain.Supplier) error

	// GetByID retrieves a supplier.
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Supplier, error)
}

// PurchaseOrderFilter narrows a purchase order listing.
type PurchaseOrderFilter struct {
	Status     string
	SupplierID *uuid.UUID
	Page       int
	PerPage    int
}

// PurchaseOrderRepository defines the interface for purchase order persistence.
type PurchaseOrderRepository interface {
	// Create inserts the order header.
	Create(ctx context.Context, order *domain.PurchaseOrder) error

	// GetByID retrieves the header, supplier and items.
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.PurchaseOrder, error)

	// GetForUpdate row-locks the header and loads the items. It must run
	// inside a transaction.
	GetForUpdate(ctx context.Context, companyID, id uuid.UUID) (*domain.PurchaseOrder, error)

	// List returns headers (without items) and the total count.
	List(ctx context.Context, companyID uuid.UUID, filter PurchaseOrderFilter) ([]domain.PurchaseOrder, int, error)

	// AddItem inserts a line.
	AddItem(ctx context.Context, item *domain.PurchaseOrderItem) error

	// DeleteItem removes a line of the given order.
	DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) error

	// UpdateHeader persists status, total value and lifecycle timestamps.
	UpdateHeader(ctx context.Context, order *domain.PurchaseOrder) error
}

// StockMovementRepository is the append-only stock ledger. It deliberately
// has no update or delete.
type StockMovementRepository interface {
	// Append inserts a movement.
	Append(ctx context.Context, movement *domain.StockMovement) error

	// ListByReference returns the movements of a document in insertion order.
	ListByReference(ctx context.Context, companyID uuid.UUID, refType string, refID uuid.UUID) ([]domain.StockMovement, error)

	// ListByProduct returns a page of a product's movements, newest first,
	// and the total count.
	ListByProduct(ctx context.Context, companyID, productID uuid.UUID, page, perPage int) ([]domain.StockMovement, int, error)

	// ListAllByProduct returns every movement of a product, oldest first.
	ListAllByProduct(ctx context.Context, companyID, productID uuid.UUID) ([]domain.StockMovement, error)
}

// Store groups the repositories that share one connection or transaction.
type Store interface {
	Products() ProductRepository
	Suppliers() SupplierRepository
	PurchaseOrders() PurchaseOrderRepository
	Movements() StockMovementRepository
}

// TxManager runs a unit of work atomically. fn receives a Store bound to the
// transaction; returning an error rolls everything back. Serialization
// failures and deadlocks surface as apperrors.ErrTransactionConflict.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(store Store) error) error
}
