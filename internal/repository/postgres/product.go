package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/pkg/database"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
)

const productColumns = `id, company_id, sku, name, stock, reserved_stock, cost, price, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, company_id, sku, name, stock, reserved_stock, cost, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.CompanyID,
		p.SKU,
		p.Name,
		p.Stock,
		p.ReservedStock,
		p.Cost,
		p.Price,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "sku", p.SKU)
		}
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

// GetByID retrieves a product of the company.
func (r *ProductRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id = $1 AND id = $2`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id.String())
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return p, nil
}

// LockByIDs reads the products with SELECT ... FOR UPDATE. Rows are locked in
// ascending id order so two transactions touching overlapping product sets
// always queue instead of deadlocking.
func (r *ProductRepository) LockByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (_ map[uuid.UUID]*domain.Product, err error) {
	result := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}

	return result, nil
}

// UpdateInventory persists the stock counters and valuation of a product.
func (r *ProductRepository) UpdateInventory(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET stock = $3, reserved_stock = $4, cost = $5, price = $6, updated_at = $7
		WHERE company_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query,
		p.CompanyID,
		p.ID,
		p.Stock,
		p.ReservedStock,
		p.Cost,
		p.Price,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID.String())
	}

	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.SKU,
		&p.Name,
		&p.Stock,
		&p.ReservedStock,
		&p.Cost,
		&p.Price,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
