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

// SupplierRepository implements repository.SupplierRepository using PostgreSQL.
type SupplierRepository struct {
	pool database.DBTX
}

// NewSupplierRepository creates a new PostgreSQL-backed supplier repository.
func NewSupplierRepository(pool database.DBTX) *SupplierRepository {
	return &SupplierRepository{pool: pool}
}

// Create inserts a new supplier.
func (r *SupplierRepository) Create(ctx context.Context, s *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (id, company_id, name, document, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, s.ID, s.CompanyID, s.Name, s.Document, s.CreatedAt); err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}
	return nil
}

// GetByID retrieves a supplier of the company.
func (r *SupplierRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Supplier, error) {
	query := `
		SELECT id, company_id, name, document, created_at
		FROM suppliers
		WHERE company_id = $1 AND id = $2`

	var s domain.Supplier
	err := r.pool.QueryRow(ctx, query, companyID, id).Scan(
		&s.ID,
		&s.CompanyID,
		&s.Name,
		&s.Document,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("supplier", id.String())
		}
		return nil, fmt.Errorf("get supplier by id: %w", err)
	}

	return &s, nil
}
