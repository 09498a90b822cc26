package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/WholesaleGo/pkg/health"
	"github.com/utafrali/WholesaleGo/pkg/middleware"
)

// Caller roles.
const (
	RoleAdmin             = "admin"
	RolePurchasingManager = "purchasing_manager"
	RolePurchasing        = "purchasing"
)

const serviceName = "purchasing"

// RouterConfig holds the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	TokenValidator middleware.TokenValidator
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
	StockRateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all purchasing service routes registered.
func NewRouter(
	purchasing PurchasingService,
	inventory InventoryService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	purchaseHandler := NewPurchaseHandler(purchasing, logger)
	inventoryHandler := NewInventoryHandler(inventory, logger)

	writers := middleware.RequireRole(RoleAdmin, RolePurchasingManager, RolePurchasing)
	stockPosters := middleware.RequireRole(RoleAdmin, RolePurchasingManager)
	stockLimit := middleware.RateLimit(cfg.StockRateLimit, middleware.CompanyKey, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.CacheControl("no-store"))
		r.Use(middleware.Auth(cfg.TokenValidator))

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", purchaseHandler.ListPurchaseOrders)
			r.Get("/{id}", purchaseHandler.GetPurchaseOrder)

			r.With(writers).Post("/", purchaseHandler.CreatePurchaseOrder)
			r.With(writers).Post("/{id}/items", purchaseHandler.AddItem)
			r.With(writers).Delete("/{id}/items/{itemId}", purchaseHandler.RemoveItem)
			r.With(writers).Post("/{id}/finalize", purchaseHandler.Finalize)
			r.With(writers).Post("/{id}/reopen", purchaseHandler.Reopen)

			r.With(stockPosters, stockLimit).Post("/{id}/post-stock", purchaseHandler.PostStock)
			r.With(stockPosters, stockLimit).Post("/{id}/reverse-stock", purchaseHandler.ReverseStock)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/{id}", inventoryHandler.GetProduct)
			r.Get("/{id}/movements", inventoryHandler.ListMovements)
			r.Get("/{id}/stock-audit", inventoryHandler.AuditStock)

			r.With(writers).Post("/", inventoryHandler.CreateProduct)
			r.With(writers, stockLimit).Post("/{id}/adjustments", inventoryHandler.AdjustStock)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/{id}", inventoryHandler.GetSupplier)

			r.With(writers).Post("/", inventoryHandler.CreateSupplier)
		})
	})

	return r
}
