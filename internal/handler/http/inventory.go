package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/service"
	"github.com/utafrali/WholesaleGo/pkg/httputil"
	"github.com/utafrali/WholesaleGo/pkg/middleware"
	"github.com/utafrali/WholesaleGo/pkg/pagination"
)

// InventoryService is the subset of *service.InventoryService the product
// and supplier handlers call.
type InventoryService interface {
	CreateProduct(ctx context.Context, companyID uuid.UUID, actor string, in service.CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, companyID, productID uuid.UUID) (*domain.Product, error)
	ListMovements(ctx context.Context, companyID, productID uuid.UUID, page, perPage int) ([]domain.StockMovement, int, error)
	AdjustStock(ctx context.Context, companyID, productID uuid.UUID, actor string, in service.AdjustStockInput) (*domain.Product, *domain.StockMovement, error)
	AuditStock(ctx context.Context, companyID, productID uuid.UUID) (*domain.StockAudit, error)
	CreateSupplier(ctx context.Context, companyID uuid.UUID, name, document string) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, companyID, supplierID uuid.UUID) (*domain.Supplier, error)
}

// InventoryHandler handles HTTP requests for product, ledger and supplier endpoints.
type InventoryHandler struct {
	service InventoryService
	logger  *slog.Logger
}

// NewInventoryHandler creates a new inventory HTTP handler.
func NewInventoryHandler(svc InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for registering a product.
type CreateProductRequest struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=255"`
	Cost         decimal.Decimal `json:"cost" validate:"gte=0"`
	Price        decimal.Decimal `json:"price" validate:"gte=0"`
	OpeningStock int64           `json:"opening_stock" validate:"gte=0"`
}

// AdjustStockRequest is the JSON request body for a manual stock adjustment.
type AdjustStockRequest struct {
	Type string `json:"type" validate:"required,oneof=IN OUT"`
	Qty  int64  `json:"qty" validate:"required,gte=1"`
	Note string `json:"note" validate:"max=500"`
}

// AdjustStockResponse carries the product after an adjustment and the ledger
// entry it produced.
type AdjustStockResponse struct {
	Product  *domain.Product       `json:"product"`
	Movement *domain.StockMovement `json:"movement"`
}

// CreateSupplierRequest is the JSON request body for registering a supplier.
type CreateSupplierRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Document string `json:"document" validate:"max=64"`
}

// --- Handlers ---

// CreateProduct handles POST /api/v1/products
func (h *InventoryHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.service.CreateProduct(r.Context(), companyID, middleware.UserIDFromContext(r.Context()), service.CreateProductInput{
		SKU:          req.SKU,
		Name:         req.Name,
		Cost:         req.Cost,
		Price:        req.Price,
		OpeningStock: req.OpeningStock,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// GetProduct handles GET /api/v1/products/{id}
func (h *InventoryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), companyID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// ListMovements handles GET /api/v1/products/{id}/movements
func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	movements, total, err := h.service.ListMovements(r.Context(), companyID, productID, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(movements, total, params.Page, params.PerPage))
}

// AdjustStock handles POST /api/v1/products/{id}/adjustments
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AdjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, movement, err := h.service.AdjustStock(r.Context(), companyID, productID, middleware.UserIDFromContext(r.Context()), service.AdjustStockInput{
		Type: req.Type,
		Qty:  req.Qty,
		Note: req.Note,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: AdjustStockResponse{Product: product, Movement: movement}})
}

// AuditStock handles GET /api/v1/products/{id}/stock-audit
func (h *InventoryHandler) AuditStock(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	audit, err := h.service.AuditStock(r.Context(), companyID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: audit})
}

// CreateSupplier handles POST /api/v1/suppliers
func (h *InventoryHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req CreateSupplierRequest
	if !decodeBody(w, r, &req) {
		return
	}

	supplier, err := h.service.CreateSupplier(r.Context(), companyID, req.Name, req.Document)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: supplier})
}

// GetSupplier handles GET /api/v1/suppliers/{id}
func (h *InventoryHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	supplierID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	supplier, err := h.service.GetSupplier(r.Context(), companyID, supplierID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: supplier})
}
