package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/pkg/database"
	"github.com/utafrali/WholesaleGo/pkg/pagination"
)

const movementColumns = `id, company_id, product_id, type, reason, ref_type, ref_id, qty, unit_cost, note, created_by, created_at`

// StockMovementRepository implements repository.StockMovementRepository using
// PostgreSQL. The table rejects UPDATE and DELETE through a trigger.
type StockMovementRepository struct {
	pool database.DBTX
}

// NewStockMovementRepository creates a new PostgreSQL-backed ledger repository.
func NewStockMovementRepository(pool database.DBTX) *StockMovementRepository {
	return &StockMovementRepository{pool: pool}
}

// Append inserts a movement.
func (r *StockMovementRepository) Append(ctx context.Context, m *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, company_id, product_id, type, reason, ref_type, ref_id, qty, unit_cost, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.CompanyID,
		m.ProductID,
		m.Type,
		m.Reason,
		m.RefType,
		m.RefID,
		m.Qty,
		m.UnitCost,
		m.Note,
		m.CreatedBy,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append stock movement: %w", err)
	}

	return nil
}

// ListByReference returns the movements written for one document.
func (r *StockMovementRepository) ListByReference(ctx context.Context, companyID uuid.UUID, refType string, refID uuid.UUID) ([]domain.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE company_id = $1 AND ref_type = $2 AND ref_id = $3
		ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, companyID, refType, refID)
	if err != nil {
		return nil, fmt.Errorf("list movements by reference: %w", err)
	}
	defer rows.Close()

	return collectMovements(rows)
}

// ListByProduct returns one page of a product's movements, newest first.
func (r *StockMovementRepository) ListByProduct(ctx context.Context, companyID, productID uuid.UUID, page, perPage int) ([]domain.StockMovement, int, error) {
	params := pagination.New(page, perPage)

	query := `SELECT ` + movementColumns + `, count(*) OVER() AS total_count
		FROM stock_movements
		WHERE company_id = $1 AND product_id = $2
		ORDER BY seq DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, companyID, productID, params.Limit(), params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list movements by product: %w", err)
	}
	defer rows.Close()

	var total int
	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(
			&m.ID, &m.CompanyID, &m.ProductID, &m.Type, &m.Reason, &m.RefType, &m.RefID,
			&m.Qty, &m.UnitCost, &m.Note, &m.CreatedBy, &m.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stock movements: %w", err)
	}

	return movements, total, nil
}

// ListAllByProduct returns the complete ledger of a product, oldest first.
func (r *StockMovementRepository) ListAllByProduct(ctx context.Context, companyID, productID uuid.UUID) ([]domain.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE company_id = $1 AND product_id = $2
		ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, companyID, productID)
	if err != nil {
		return nil, fmt.Errorf("list all movements by product: %w", err)
	}
	defer rows.Close()

	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]domain.StockMovement, error) {
	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(
			&m.ID, &m.CompanyID, &m.ProductID, &m.Type, &m.Reason, &m.RefType, &m.RefID,
			&m.Qty, &m.UnitCost, &m.Note, &m.CreatedBy, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}
	return movements, nil
}
