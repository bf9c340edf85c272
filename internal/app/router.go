package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/damages"
	"github.com/lumapos/lumapos/internal/entitlements"
	"github.com/lumapos/lumapos/internal/observability"
	"github.com/lumapos/lumapos/internal/productusage"
	"github.com/lumapos/lumapos/internal/purchases"
	"github.com/lumapos/lumapos/internal/reports"
	"github.com/lumapos/lumapos/internal/sales"
	"github.com/lumapos/lumapos/internal/stock"
	"github.com/lumapos/lumapos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	CatalogHandler      *catalog.Handler
	StockHandler        *stock.Handler
	EntitlementsHandler *entitlements.Handler
	PurchasesHandler    *purchases.Handler
	SalesHandler        *sales.Handler
	DamagesHandler      *damages.Handler
	ProductUsageHandler *productusage.Handler
	ReportsHandler      *reports.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Luma defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.CatalogHandler != nil {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	}
	if params.StockHandler != nil {
		r.Route("/stock", params.StockHandler.MountRoutes)
	}
	if params.EntitlementsHandler != nil {
		r.Route("/entitlements", params.EntitlementsHandler.MountRoutes)
	}
	if params.PurchasesHandler != nil {
		r.Route("/purchases", params.PurchasesHandler.MountRoutes)
	}
	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	if params.DamagesHandler != nil {
		r.Route("/damages", params.DamagesHandler.MountRoutes)
	}
	if params.ProductUsageHandler != nil {
		r.Route("/product-usages", params.ProductUsageHandler.MountRoutes)
	}
	if params.ReportsHandler != nil {
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
