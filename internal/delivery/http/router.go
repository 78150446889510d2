package httpapi

import (
	"net/http"

	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/handlers"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the payment API. gatherer serves /metrics.
func NewRouter(h *handlers.PaymentHandler, gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Route("/payments", func(r chi.Router) {
		// the provider redirects the payer here without our user header
		r.Get("/callback", h.Callback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.WithUserID)
			r.Post("/", h.InitiatePayment)
			r.Get("/{paymentID}", h.GetPaymentStatus)
			r.Post("/{paymentID}/execute", h.ExecutePayment)
		})
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Use(middleware.WithUserID)
		r.Get("/{id}", h.GetTransaction)
		r.Post("/{id}/refund", h.Refund)
	})

	r.With(middleware.WithUserID).Post("/reconcile", h.Reconcile)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
