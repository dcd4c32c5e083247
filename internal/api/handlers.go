package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/domain"
)

// ─── Request decoding ───────────────────────────────────────────────────────

// amountField parses a decimal amount from its JSON string form.
func amountField(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.New("amount required")
	}
	return decimal.NewFromString(raw)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorStatus maps domain sentinels onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownAccount),
		errors.Is(err, domain.ErrNoPeriod):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountExists),
		errors.Is(err, domain.ErrPeriodExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientCredit),
		errors.Is(err, domain.ErrInsufficientExcess),
		errors.Is(err, domain.ErrInsufficientCollateral),
		errors.Is(err, domain.ErrCreditLimitOverflow),
		errors.Is(err, domain.ErrLimitBelowDebt),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrReservedAccount),
		errors.Is(err, domain.ErrInvalidRate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ─── Status ─────────────────────────────────────────────────────────────────

// handleStatus returns the network-wide totals.
// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	l := s.engine.Ledger()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "crediton is running",
		"total_supply":     l.TotalSupply().String(),
		"outstanding_debt": l.TotalOutstandingDebt().String(),
		"network_debt":     l.BalanceOf(domain.NetworkDebtAccountID).String(),
		"reserve_rtd":      s.engine.Pool().RTD().String(),
	})
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func (s *Server) accountView(a domain.Account) map[string]interface{} {
	view := map[string]interface{}{
		"id":               a.ID,
		"balance":          a.Balance.String(),
		"credit_limit":     a.CreditLimit.String(),
		"credit_balance":   a.CreditBalance.String(),
		"credit_available": a.CreditLimitLeft().String(),
		"compliant":        s.engine.Issuer().Compliant(a.ID),
	}
	if state, ok := s.engine.Issuer().StateOf(a.ID); ok {
		view["period_state"] = state.String()
	}
	return view
}

// handleListAccounts returns every registered account.
// GET /api/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.engine.Ledger().Accounts()
	views := make([]map[string]interface{}, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, s.accountView(a))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": views,
	})
}

// handleGetAccount returns a single account view.
// GET /api/accounts/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := domain.AccountID(chi.URLParam(r, "id"))
	a := s.engine.Ledger().Account(id)
	if a == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, s.accountView(*a))
}

// handleOpenAccount registers a member account.
// POST /api/accounts
func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		ID     string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	if err := s.engine.OpenAccount(domain.AccountID(req.Caller), domain.AccountID(req.ID)); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// handleInitializeCreditLine opens an underwriting period.
// POST /api/accounts/{id}/credit-line
func (s *Server) handleInitializeCreditLine(w http.ResponseWriter, r *http.Request) {
	id := domain.AccountID(chi.URLParam(r, "id"))
	var req struct {
		Caller         string `json:"caller"`
		Limit          string `json:"limit"`
		InitialBalance string `json:"initial_balance"`
		PeriodDays     int    `json:"period_days"`
		GraceDays      int    `json:"grace_days"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit, err := amountField(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	initial := decimal.Zero
	if req.InitialBalance != "" {
		initial, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid initial_balance")
			return
		}
	}
	if req.PeriodDays <= 0 {
		writeError(w, http.StatusBadRequest, "period_days must be positive")
		return
	}
	err = s.engine.InitializeCreditLine(
		domain.AccountID(req.Caller), id, limit, initial,
		time.Duration(req.PeriodDays)*24*time.Hour,
		time.Duration(req.GraceDays)*24*time.Hour,
	)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    id,
		"limit": limit.String(),
	})
}

// handleSetCreditLimit updates an account's credit limit.
// POST /api/accounts/{id}/credit-limit
func (s *Server) handleSetCreditLimit(w http.ResponseWriter, r *http.Request) {
	id := domain.AccountID(chi.URLParam(r, "id"))
	var req struct {
		Caller string `json:"caller"`
		Limit  string `json:"limit"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit, err := amountField(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if err := s.engine.SetCreditLimit(domain.AccountID(req.Caller), id, limit); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"limit": limit.String(),
	})
}

// handleSetPeriodPaused suspends or resumes lifecycle evaluation.
// POST /api/accounts/{id}/pause
func (s *Server) handleSetPeriodPaused(w http.ResponseWriter, r *http.Request) {
	id := domain.AccountID(chi.URLParam(r, "id"))
	var req struct {
		Caller string `json:"caller"`
		Paused bool   `json:"paused"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetPeriodPaused(domain.AccountID(req.Caller), id, req.Paused); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"paused": req.Paused,
	})
}

// handleSyncPeriod runs the keep-alive evaluation for one account.
// POST /api/accounts/{id}/sync
func (s *Server) handleSyncPeriod(w http.ResponseWriter, r *http.Request) {
	id := domain.AccountID(chi.URLParam(r, "id"))
	out := s.engine.SyncCreditPeriod(id)
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"outcome": out.String(),
	})
}

// handleSyncAll runs the keeper pass over every open period.
// POST /api/sync
func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	outcomes := s.engine.SyncAllPeriods()
	s.persisted()
	byAccount := make(map[string]string, len(outcomes))
	for id, out := range outcomes {
		byAccount[string(id)] = out.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes": byAccount,
	})
}

// ─── Transfers ──────────────────────────────────────────────────────────────

// handleTransfer runs the full transfer pipeline.
// POST /api/transfer
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := amountField(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	receipt, err := s.engine.Transfer(domain.AccountID(req.From), domain.AccountID(req.To), amount)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":   receipt.From,
		"to":     receipt.To,
		"amount": receipt.Amount.String(),
		"fee":    receipt.Fee.String(),
		"voided": receipt.Voided,
		"sender": map[string]interface{}{
			"compliant":      receipt.Sender.Compliant,
			"credit_balance": receipt.Sender.CreditBalance.String(),
		},
		"receiver": map[string]interface{}{
			"compliant":      receipt.Receiver.Compliant,
			"credit_balance": receipt.Receiver.CreditBalance.String(),
		},
	})
}

// ─── Assurance Pool ─────────────────────────────────────────────────────────

// handleGetReserve returns the segmented reserve view.
// GET /api/reserve
func (s *Server) handleGetReserve(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Pool()
	reserve := p.Reserve()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id":        reserve.AssetID,
		"primary":         reserve.Primary.String(),
		"peripheral":      reserve.Peripheral.String(),
		"excess":          reserve.Excess.String(),
		"reserve_balance": reserve.ReserveBalance().String(),
		"rtd":             p.RTD().String(),
		"needed_reserves": p.NeededReserves().String(),
	})
}

// handleDepositReserve routes collateral into the pool.
// POST /api/reserve/deposit
func (s *Server) handleDepositReserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := amountField(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.engine.DepositReserve(domain.AccountID(req.From), amount, s.pull); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]string{
		"deposited": amount.String(),
	})
}

// handleWithdrawReserve removes excess collateral. Operator-gated.
// POST /api/reserve/withdraw
func (s *Server) handleWithdrawReserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := amountField(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.engine.WithdrawReserve(domain.AccountID(req.Caller), domain.AccountID(req.To), amount); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]string{
		"withdrawn": amount.String(),
	})
}

// handleReimburse cascades a payout from the reserve.
// POST /api/reserve/reimburse
func (s *Server) handleReimburse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := amountField(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	paid, err := s.engine.Reimburse(domain.AccountID(req.Account), amount)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]string{
		"requested": amount.String(),
		"paid":      paid.String(),
	})
}

// ─── External Collateral ────────────────────────────────────────────────────

// handleGetCollateral returns an account's external collateral balance.
// GET /api/collateral/{id}
func (s *Server) handleGetCollateral(w http.ResponseWriter, r *http.Request) {
	if s.allowance == nil {
		writeError(w, http.StatusServiceUnavailable, "collateral book not available")
		return
	}
	id := domain.AccountID(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": id,
		"balance": s.allowance(id).String(),
	})
}

// handleFundCollateral credits an account's external collateral after an
// off-network payment is confirmed.
// POST /api/collateral/fund
func (s *Server) handleFundCollateral(w http.ResponseWriter, r *http.Request) {
	if s.fund == nil {
		writeError(w, http.StatusServiceUnavailable, "collateral book not available")
		return
	}
	var req struct {
		Caller  string `json:"caller"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := amountField(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.fund(domain.AccountID(req.Caller), domain.AccountID(req.Account), amount); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]string{
		"account": req.Account,
		"funded":  amount.String(),
	})
}

// ─── Fees ───────────────────────────────────────────────────────────────────

// handleGetFees returns the current fee configuration.
// GET /api/fees
func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Fees().Config()
	memberRates := make(map[string]int64, len(cfg.MemberRates))
	for id, rate := range cfg.MemberRates {
		memberRates[string(id)] = rate
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target_fee_rate_ppm": cfg.TargetFeeRate,
		"member_rates_ppm":    memberRates,
		"collected_fees":      cfg.CollectedFees.String(),
		"paused":              cfg.Paused,
	})
}

// handleSetTargetFeeRate updates the network-wide fee rate.
// POST /api/fees/target-rate
func (s *Server) handleSetTargetFeeRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		RatePPM int64  `json:"rate_ppm"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetTargetFeeRate(domain.AccountID(req.Caller), req.RatePPM); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]int64{
		"target_fee_rate_ppm": req.RatePPM,
	})
}

// handleSetMemberFeeRate sets a per-member override multiplier.
// POST /api/fees/member-rate
func (s *Server) handleSetMemberFeeRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		Member  string `json:"member"`
		RatePPM int64  `json:"rate_ppm"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Member == "" {
		writeError(w, http.StatusBadRequest, "member required")
		return
	}
	if err := s.engine.SetMemberFeeRate(domain.AccountID(req.Caller), domain.AccountID(req.Member), req.RatePPM); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"member":   req.Member,
		"rate_ppm": req.RatePPM,
	})
}

// handleSetFeesPaused halts or resumes fee collection.
// POST /api/fees/pause
func (s *Server) handleSetFeesPaused(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Paused bool   `json:"paused"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetFeesPaused(domain.AccountID(req.Caller), req.Paused); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]bool{
		"paused": req.Paused,
	})
}

// handleDistributeFees flushes the fee accumulator into the assurance pool.
// POST /api/fees/distribute
func (s *Server) handleDistributeFees(w http.ResponseWriter, r *http.Request) {
	distributed, err := s.engine.DistributeFees()
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.persisted()
	writeJSON(w, http.StatusOK, map[string]string{
		"distributed": distributed.String(),
	})
}

// ─── Events & Journal ───────────────────────────────────────────────────────

// handleEvents returns the most recent credit events, newest last.
// GET /api/events?limit=N
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	events := s.engine.Events(limit)
	views := make([]map[string]interface{}, 0, len(events))
	for _, ev := range events {
		views = append(views, map[string]interface{}{
			"id":           ev.ID,
			"type":         ev.Type,
			"account":      ev.Account,
			"counterparty": ev.Counterparty,
			"amount":       ev.Amount.String(),
			"at":           ev.At.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": views,
	})
}

// handleJournal returns the persisted entries touching one account.
// GET /api/journal/{id}?limit=N
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not available")
		return
	}
	id := domain.AccountID(chi.URLParam(r, "id"))
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.store.JournalFor(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		views = append(views, map[string]interface{}{
			"id":     e.ID,
			"kind":   e.Kind,
			"from":   e.From,
			"to":     e.To,
			"amount": e.Amount.String(),
			"at":     e.At.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": views,
	})
}
