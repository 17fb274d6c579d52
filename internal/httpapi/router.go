package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/toosale/checkout-service/pkg/metrics"
)

// NewRouter assembles the checkout API.
func NewRouter(handler *CheckoutHandler, m *metrics.ServerMetrics, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	if m != nil {
		r.Use(MetricsMiddleware(m))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware)
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", handler.Start)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", handler.Get)
				r.Post("/customer", handler.SubmitCustomerInfo)
				r.Post("/payment-proof", handler.SubmitProof)
				r.Post("/cancel", handler.Cancel)
				r.Post("/retry", handler.Retry)
				r.Post("/finalize", handler.Finalize)
				r.Get("/summary", handler.Summary)
			})
		})
	})

	return r
}
