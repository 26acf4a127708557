/**
 * @description
 * This file sets up the HTTP router for the settlement-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/prometheus/client_golang: Prometheus metrics exposition.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the secrets the router's auth middleware needs.
type RouterConfig struct {
	BankWebhookSecret string
	InternalAPIKey    string
}

// SettlementRoutes creates and returns a new router for the settlement service.
func SettlementRoutes(h *SettlementHandlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Prometheus metrics exposition.
	r.Handle("/metrics", promhttp.Handler())

	// Bank-facing webhooks, guarded by the shared webhook secret when one is
	// configured.
	r.Group(func(r chi.Router) {
		r.Use(BankWebhookAuthMiddleware(cfg.BankWebhookSecret))

		r.Post("/webhooks/bank/deposit", h.DepositWebhookHandler)
		r.Post("/webhooks/bank/withdraw", h.WithdrawalWebhookHandler)
	})

	// Public query endpoints.
	r.Get("/rates", h.RatesHandler)
	r.Get("/transactions", h.GetTransactionsHandler)
	r.Post("/transactions/{id}/verify", h.VerifyTransactionHandler)

	// Development helper simulating the bank's side of a deposit.
	r.Post("/mock/bank-deposit", h.MockBankDepositHandler)

	// Operator-only endpoints, guarded by the internal API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))

		r.Delete("/transactions", h.ClearTransactionsHandler)
	})

	return r
}
