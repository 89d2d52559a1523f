package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/keystone-erp/keystone-erp/internal/bankrec"
	"github.com/keystone-erp/keystone-erp/internal/budget"
	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/observability"
	"github.com/keystone-erp/keystone-erp/internal/payments"
	"github.com/keystone-erp/keystone-erp/internal/stock"
	"github.com/keystone-erp/keystone-erp/internal/vouchers"
	"github.com/keystone-erp/keystone-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	GLHandler       *gl.Handler
	StockHandler    *stock.Handler
	PaymentsHandler *payments.Handler
	BankRecHandler  *bankrec.Handler
	BudgetHandler   *budget.Handler
	VouchersHandler *vouchers.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Keystone defaults.
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

	if params.GLHandler != nil {
		r.Route("/gl", params.GLHandler.MountRoutes)
	}
	if params.StockHandler != nil {
		r.Route("/stock", params.StockHandler.MountRoutes)
	}
	if params.PaymentsHandler != nil {
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
	}
	if params.BankRecHandler != nil {
		r.Route("/bankrec", params.BankRecHandler.MountRoutes)
	}
	if params.BudgetHandler != nil {
		r.Route("/budgets", params.BudgetHandler.MountRoutes)
	}
	if params.VouchersHandler != nil {
		r.Route("/vouchers", params.VouchersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
