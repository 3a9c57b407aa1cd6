/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. zapLogger:  Structured request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the scheduling frontend

ROUTE GROUPS:
  /api/pricing, /api/shifts/*, /api/agreements/*   Pure pricing
  /api/clients/{id}/*                              Plans, budgets, ledger
  /api/entries/{id}                                Reversals
  /api/scenarios/*                                 Demo scenarios
  /api/alerts                                      Budget monitor

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/fundingd/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins list allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zapLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/pricing", h.GetPricing)

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/classify", h.ClassifyShift)
			r.Post("/quote", h.QuoteShift)
			r.Post("/series", h.PriceSeries)
		})

		r.Post("/agreements/totals", h.AgreementTotals)

		r.Route("/clients/{id}", func(r chi.Router) {
			r.Get("/plan", h.GetPlan)
			r.Put("/plan", h.PutPlan)
			r.Get("/budget", h.GetBudget)
			r.Get("/deductions", h.ListEntries)
			r.Post("/deductions", h.CommitDeduction)
			r.Post("/adjustments", h.CreateAdjustment)
		})

		r.Delete("/entries/{id}", h.ReverseEntry)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Get("/alerts", h.ListAlerts)
	})

	return r
}

// zapLogger logs one line per request.
func zapLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
