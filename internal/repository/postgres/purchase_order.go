package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	"github.com/utafrali/WholesaleGo/pkg/database"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
	"github.com/utafrali/WholesaleGo/pkg/pagination"
)

const purchaseOrderColumns = `id, company_id, supplier_id, number, notes, status, total_value, created_by,
	finalized_at, posted_at, reversed_at, created_at, updated_at`

// PurchaseOrderRepository implements repository.PurchaseOrderRepository using PostgreSQL.
type PurchaseOrderRepository struct {
	pool database.DBTX
}

// NewPurchaseOrderRepository creates a new PostgreSQL-backed purchase order repository.
func NewPurchaseOrderRepository(pool database.DBTX) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{pool: pool}
}

// Create inserts the order header. Items are added separately.
func (r *PurchaseOrderRepository) Create(ctx context.Context, o *domain.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (id, company_id, supplier_id, number, notes, status, total_value, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		o.ID,
		o.CompanyID,
		o.SupplierID,
		o.Number,
		o.Notes,
		o.Status,
		o.TotalValue,
		o.CreatedBy,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) && o.SupplierID != nil {
			return apperrors.NotFound("supplier", o.SupplierID.String())
		}
		return fmt.Errorf("create purchase order: %w", err)
	}

	return nil
}

// GetByID retrieves an order with its supplier and items.
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE company_id = $1 AND id = $2`

	o, err := scanPurchaseOrder(r.pool.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("purchase order", id.String())
		}
		return nil, fmt.Errorf("get purchase order by id: %w", err)
	}

	if o.SupplierID != nil {
		supplier, err := NewSupplierRepository(r.pool).GetByID(ctx, companyID, *o.SupplierID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		o.Supplier = supplier
	}

	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

// GetForUpdate row-locks the order header with SELECT ... FOR UPDATE and
// loads its items. A second posting or reversal of the same order blocks here
// until the first one commits, then observes the new status.
func (r *PurchaseOrderRepository) GetForUpdate(ctx context.Context, companyID, id uuid.UUID) (_ *domain.PurchaseOrder, err error) {
	query := `SELECT ` + purchaseOrderColumns + `
		FROM purchase_orders
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockPurchaseOrder", query)
	defer func() { end(err) }()

	o, err := scanPurchaseOrder(r.pool.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("purchase order", id.String())
		}
		return nil, fmt.Errorf("lock purchase order: %w", err)
	}

	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

// List returns order headers matching the filter, newest first.
func (r *PurchaseOrderRepository) List(ctx context.Context, companyID uuid.UUID, filter repository.PurchaseOrderFilter) ([]domain.PurchaseOrder, int, error) {
	var (
		conditions = []string{"company_id = $1"}
		args       = []any{companyID}
		argIndex   = 2
	)

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.SupplierID != nil {
		conditions = append(conditions, fmt.Sprintf("supplier_id = $%d", argIndex))
		args = append(args, *filter.SupplierID)
		argIndex++
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM purchase_orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		purchaseOrderColumns, strings.Join(conditions, " AND "), argIndex, argIndex+1,
	)

	page := pagination.New(filter.Page, filter.PerPage)
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.PurchaseOrder, 0)

	for rows.Next() {
		var o domain.PurchaseOrder
		if err := rows.Scan(
			&o.ID,
			&o.CompanyID,
			&o.SupplierID,
			&o.Number,
			&o.Notes,
			&o.Status,
			&o.TotalValue,
			&o.CreatedBy,
			&o.FinalizedAt,
			&o.PostedAt,
			&o.ReversedAt,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan purchase order row: %w", err)
		}
		o.Items = []domain.PurchaseOrderItem{}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate purchase order rows: %w", err)
	}

	return orders, totalCount, nil
}

// AddItem inserts a line.
func (r *PurchaseOrderRepository) AddItem(ctx context.Context, item *domain.PurchaseOrderItem) error {
	query := `
		INSERT INTO purchase_order_items (id, purchase_order_id, product_id, qty, unit_cost, sell_price, line_total,
			description_snapshot, sku_snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.PurchaseOrderID,
		item.ProductID,
		item.Qty,
		item.UnitCost,
		item.SellPrice,
		item.LineTotal,
		item.DescriptionSnapshot,
		item.SKUSnapshot,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add purchase order item: %w", err)
	}

	return nil
}

// DeleteItem removes a line of the given order.
func (r *PurchaseOrderRepository) DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	query := `DELETE FROM purchase_order_items WHERE purchase_order_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query, orderID, itemID)
	if err != nil {
		return fmt.Errorf("delete purchase order item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("purchase order item", itemID.String())
	}

	return nil
}

// UpdateHeader persists status, total and lifecycle timestamps.
func (r *PurchaseOrderRepository) UpdateHeader(ctx context.Context, o *domain.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders
		SET status = $3, total_value = $4, finalized_at = $5, posted_at = $6, reversed_at = $7, updated_at = $8
		WHERE company_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query,
		o.CompanyID,
		o.ID,
		o.Status,
		o.TotalValue,
		o.FinalizedAt,
		o.PostedAt,
		o.ReversedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("purchase order", o.ID.String())
	}

	return nil
}

func (r *PurchaseOrderRepository) loadItems(ctx context.Context, orderID uuid.UUID) ([]domain.PurchaseOrderItem, error) {
	query := `
		SELECT id, purchase_order_id, product_id, qty, unit_cost, sell_price, line_total,
			description_snapshot, sku_snapshot, created_at
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("load purchase order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.PurchaseOrderItem, 0)
	for rows.Next() {
		var (
			item      domain.PurchaseOrderItem
			sellPrice decimal.NullDecimal
		)
		if err := rows.Scan(
			&item.ID,
			&item.PurchaseOrderID,
			&item.ProductID,
			&item.Qty,
			&item.UnitCost,
			&sellPrice,
			&item.LineTotal,
			&item.DescriptionSnapshot,
			&item.SKUSnapshot,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order item: %w", err)
		}
		if sellPrice.Valid {
			item.SellPrice = &sellPrice.Decimal
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase order items: %w", err)
	}

	return items, nil
}

func scanPurchaseOrder(row pgx.Row) (*domain.PurchaseOrder, error) {
	var o domain.PurchaseOrder
	err := row.Scan(
		&o.ID,
		&o.CompanyID,
		&o.SupplierID,
		&o.Number,
		&o.Notes,
		&o.Status,
		&o.TotalValue,
		&o.CreatedBy,
		&o.FinalizedAt,
		&o.PostedAt,
		&o.ReversedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
