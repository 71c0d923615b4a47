/**
 * @description
 * This file sets up the HTTP router for the ledger service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware; the admin surface sits behind the internal API key.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns the router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, internalAPIKey string) http.Handler {
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

	// Account and ledger operations.
	r.Post("/accounts", h.EnsureAccountHandler)
	r.Get("/accounts/{id}", h.GetAccountHandler)
	r.Post("/accounts/{id}/deposit", h.DepositHandler)
	r.Post("/accounts/{id}/withdraw", h.WithdrawHandler)
	r.Post("/transfers", h.TransferHandler)
	r.Post("/pos/charge", h.POSChargeHandler)
	r.Post("/cashback", h.CashbackHandler)

	// Companies and the primary share market.
	r.Post("/companies", h.ApplyCompanyHandler)
	r.Get("/companies/{id}", h.GetCompanyHandler)
	r.Post("/companies/{id}/listings", h.ListSharesHandler)
	r.Post("/companies/{id}/buy", h.BuySharesHandler)

	// Admin surface, gated by the internal API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))
		r.Post("/companies/{id}/approve", h.ApproveCompanyHandler)
		r.Post("/central/withdraw", h.CentralWithdrawHandler)
		r.Post("/admin/snapshot", h.SnapshotHandler)
	})

	return r
}
