// Package api provides the HTTP server for the crediton daemon.
// It exposes the ledger views, the transfer pipeline, and the
// administrative operations over a small JSON REST surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/engine"
	"github.com/crediton-network/crediton/internal/domain"
	"github.com/crediton-network/crediton/internal/infra/sqlite"
)

// Server is the crediton HTTP API server.
type Server struct {
	engine         *engine.Engine
	store          *sqlite.DB // nil when running without persistence
	metricsEnabled bool
	persist        func() // called after every successful mutation (nil ok)

	// pull settles a reserve deposit by debiting the depositor's external
	// collateral. Nil means deposits are accounting-only.
	pull func(domain.AccountID, decimal.Decimal) error

	// fund credits an account's external collateral once an off-network
	// payment is confirmed. The hook performs its own authorization.
	fund      func(caller, account domain.AccountID, amount decimal.Decimal) error
	allowance func(domain.AccountID) decimal.Decimal
}

// NewServer creates a new API server over a wired engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetStore attaches the sqlite store, enabling the journal endpoints.
func (s *Server) SetStore(db *sqlite.DB) { s.store = db }

// SetPersist registers a snapshot hook invoked after successful mutations.
func (s *Server) SetPersist(fn func()) { s.persist = fn }

// SetCollateralPull registers the settlement hook for reserve deposits.
func (s *Server) SetCollateralPull(fn func(domain.AccountID, decimal.Decimal) error) { s.pull = fn }

// SetCollateralFund registers the hook crediting external collateral.
func (s *Server) SetCollateralFund(fn func(caller, account domain.AccountID, amount decimal.Decimal) error) {
	s.fund = fn
}

// SetCollateralAllowance registers the collateral balance view.
func (s *Server) SetCollateralAllowance(fn func(domain.AccountID) decimal.Decimal) {
	s.allowance = fn
}

func (s *Server) persisted() {
	if s.persist != nil {
		s.persist()
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Accounts and credit lines
		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts", s.handleOpenAccount)
		r.Get("/accounts/{id}", s.handleGetAccount)
		r.Post("/accounts/{id}/credit-line", s.handleInitializeCreditLine)
		r.Post("/accounts/{id}/credit-limit", s.handleSetCreditLimit)
		r.Post("/accounts/{id}/pause", s.handleSetPeriodPaused)
		r.Post("/accounts/{id}/sync", s.handleSyncPeriod)
		r.Post("/sync", s.handleSyncAll)

		// Transfers
		r.Post("/transfer", s.handleTransfer)

		// Assurance pool
		r.Get("/reserve", s.handleGetReserve)
		r.Post("/reserve/deposit", s.handleDepositReserve)
		r.Post("/reserve/withdraw", s.handleWithdrawReserve)
		r.Post("/reserve/reimburse", s.handleReimburse)

		// Fees
		r.Get("/fees", s.handleGetFees)
		r.Post("/fees/target-rate", s.handleSetTargetFeeRate)
		r.Post("/fees/member-rate", s.handleSetMemberFeeRate)
		r.Post("/fees/pause", s.handleSetFeesPaused)
		r.Post("/fees/distribute", s.handleDistributeFees)

		// External collateral
		r.Get("/collateral/{id}", s.handleGetCollateral)
		r.Post("/collateral/fund", s.handleFundCollateral)

		// Events and journal
		r.Get("/events", s.handleEvents)
		r.Get("/journal/{id}", s.handleJournal)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
