package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	"github.com/utafrali/WholesaleGo/internal/service"
	"github.com/utafrali/WholesaleGo/pkg/httputil"
	"github.com/utafrali/WholesaleGo/pkg/middleware"
	"github.com/utafrali/WholesaleGo/pkg/pagination"
)

// PurchasingService is the subset of *service.PurchasingService the purchase
// handlers call.
type PurchasingService interface {
	CreatePurchaseOrder(ctx context.Context, companyID uuid.UUID, actor string, in service.CreatePurchaseOrderInput) (*domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, companyID, orderID uuid.UUID) (*service.PurchaseOrderDetail, error)
	ListPurchaseOrders(ctx context.Context, companyID uuid.UUID, filter repository.PurchaseOrderFilter) ([]domain.PurchaseOrder, int, error)
	AddItem(ctx context.Context, companyID, orderID uuid.UUID, in service.AddItemInput) (*domain.PurchaseOrder, error)
	RemoveItem(ctx context.Context, companyID, orderID, itemID uuid.UUID) (*domain.PurchaseOrder, error)
	Finalize(ctx context.Context, companyID, orderID uuid.UUID) (*domain.PurchaseOrder, error)
	Reopen(ctx context.Context, companyID, orderID uuid.UUID) (*domain.PurchaseOrder, error)
	PostStock(ctx context.Context, companyID, orderID uuid.UUID, actor string) (*domain.PostingResult, error)
	ReverseStock(ctx context.Context, companyID, orderID uuid.UUID, actor string) (*domain.ReversalResult, error)
}

// PurchaseHandler handles HTTP requests for purchase order endpoints.
type PurchaseHandler struct {
	service PurchasingService
	logger  *slog.Logger
}

// NewPurchaseHandler creates a new purchase order HTTP handler.
func NewPurchaseHandler(svc PurchasingService, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreatePurchaseOrderRequest is the JSON request body for creating a purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierID string `json:"supplier_id" validate:"omitempty,uuid"`
	Number     string `json:"number" validate:"max=64"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// AddItemRequest is the JSON request body for adding a line to a purchase order.
type AddItemRequest struct {
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Qty       decimal.Decimal  `json:"qty" validate:"gt=0"`
	UnitCost  decimal.Decimal  `json:"unit_cost" validate:"gte=0"`
	SellPrice *decimal.Decimal `json:"sell_price,omitempty"`
}

// --- Handlers ---

// CreatePurchaseOrder handles POST /api/v1/purchases
func (h *PurchaseHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req CreatePurchaseOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.CreatePurchaseOrderInput{Number: req.Number, Notes: req.Notes}
	if req.SupplierID != "" {
		supplierID := uuid.MustParse(req.SupplierID)
		in.SupplierID = &supplierID
	}

	order, err := h.service.CreatePurchaseOrder(r.Context(), companyID, middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListPurchaseOrders handles GET /api/v1/purchases
func (h *PurchaseHandler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	filter := repository.PurchaseOrderFilter{
		Status:  r.URL.Query().Get("status"),
		Page:    params.Page,
		PerPage: params.PerPage,
	}
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		supplierID, ok := httputil.ParseUUID(w, raw)
		if !ok {
			return
		}
		filter.SupplierID = &supplierID
	}

	orders, total, err := h.service.ListPurchaseOrders(r.Context(), companyID, filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, params.Page, params.PerPage))
}

// GetPurchaseOrder handles GET /api/v1/purchases/{id}
func (h *PurchaseHandler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	detail, err := h.service.GetPurchaseOrder(r.Context(), companyID, orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: detail})
}

// AddItem handles POST /api/v1/purchases/{id}/items
func (h *PurchaseHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.service.AddItem(r.Context(), companyID, orderID, service.AddItemInput{
		ProductID: uuid.MustParse(req.ProductID),
		Qty:       req.Qty,
		UnitCost:  req.UnitCost,
		SellPrice: req.SellPrice,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// RemoveItem handles DELETE /api/v1/purchases/{id}/items/{itemId}
func (h *PurchaseHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	itemID, ok := httputil.ParseUUID(w, chi.URLParam(r, "itemId"))
	if !ok {
		return
	}

	order, err := h.service.RemoveItem(r.Context(), companyID, orderID, itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// Finalize handles POST /api/v1/purchases/{id}/finalize
func (h *PurchaseHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Finalize)
}

// Reopen handles POST /api/v1/purchases/{id}/reopen
func (h *PurchaseHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reopen)
}

func (h *PurchaseHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID, uuid.UUID) (*domain.PurchaseOrder, error)) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := apply(r.Context(), companyID, orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// PostStock handles POST /api/v1/purchases/{id}/post-stock
func (h *PurchaseHandler) PostStock(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.service.PostStock(r.Context(), companyID, orderID, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ReverseStock handles POST /api/v1/purchases/{id}/reverse-stock
func (h *PurchaseHandler) ReverseStock(w http.ResponseWriter, r *http.Request) {
	companyID, ok := tenant(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.service.ReverseStock(r.Context(), companyID, orderID, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
