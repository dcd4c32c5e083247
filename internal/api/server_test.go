package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/assurance"
	"github.com/crediton-network/crediton/internal/app/engine"
	"github.com/crediton-network/crediton/internal/app/fees"
	"github.com/crediton-network/crediton/internal/app/issuer"
	"github.com/crediton-network/crediton/internal/app/ledger"
	"github.com/crediton-network/crediton/internal/domain"
)

// ─── Test Fixture ───────────────────────────────────────────────────────────

type stubAccess struct {
	members map[domain.AccountID]bool
}

func (s *stubAccess) IsAdmin(id domain.AccountID) bool    { return id == "admin" }
func (s *stubAccess) IsOperator(id domain.AccountID) bool { return id == "operator" || id == "admin" }
func (s *stubAccess) IsIssuer(id domain.AccountID) bool   { return id == "underwriter" || id == "admin" }
func (s *stubAccess) IsMember(id domain.AccountID) bool   { return s.members[id] }
func (s *stubAccess) GrantMember(id domain.AccountID) error {
	s.members[id] = true
	return nil
}
func (s *stubAccess) RevokeMember(id domain.AccountID) error {
	delete(s.members, id)
	return nil
}

type stubOracle struct{}

func (stubOracle) TargetRTD() decimal.Decimal      { return decimal.NewFromFloat(0.20) }
func (stubOracle) ConversionRate() decimal.Decimal { return decimal.NewFromInt(1) }
func (stubOracle) Quote(_, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	return amount, nil
}

type stubAsset struct{}

func (stubAsset) PullFrom(domain.AccountID, decimal.Decimal) error { return nil }
func (stubAsset) PushTo(domain.AccountID, decimal.Decimal) error   { return nil }
func (stubAsset) Allowance(domain.AccountID) decimal.Decimal       { return decimal.Zero }

func newTestServer(t *testing.T, feePPM int64) (*Server, *engine.Engine) {
	t.Helper()
	l := ledger.New()
	access := &stubAccess{members: make(map[domain.AccountID]bool)}
	iss := issuer.New(l, access, nil)
	denom := domain.Denomination{LedgerDecimals: 6, ReserveDecimals: 6}
	pool := assurance.New("usd", denom, l, stubOracle{}, stubAsset{})
	fm := fees.New(feePPM, denom, stubOracle{}, stubAsset{}, pool)
	e := engine.New(l, iss, fm, pool, access)

	for _, id := range []domain.AccountID{"alice", "bob"} {
		if err := e.OpenAccount("admin", id); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(e), e
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return w, resp
}

// ─── Health & Status ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}

func TestStatus_Totals(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["total_supply"] != "0" {
		t.Errorf("total_supply = %v, want 0", resp["total_supply"])
	}
	if resp["outstanding_debt"] != "0" {
		t.Errorf("outstanding_debt = %v, want 0", resp["outstanding_debt"])
	}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestOpenAccount(t *testing.T) {
	s, e := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/accounts",
		`{"caller":"admin","id":"carol"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if e.Ledger().Account("carol") == nil {
		t.Error("account carol not created")
	}
}

func TestOpenAccount_Unauthorized(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/accounts",
		`{"caller":"alice","id":"carol"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestGetAccount(t *testing.T) {
	s, e := newTestServer(t, 0)
	if err := e.InitializeCreditLine("underwriter", "alice", decimal.NewFromInt(100), decimal.Zero, 90*24*time.Hour, 30*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/accounts/alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["credit_limit"] != "100" {
		t.Errorf("credit_limit = %v, want 100", resp["credit_limit"])
	}
	if resp["period_state"] != "ACTIVE" {
		t.Errorf("period_state = %v, want ACTIVE", resp["period_state"])
	}
	if resp["compliant"] != true {
		t.Errorf("compliant = %v, want true", resp["compliant"])
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/accounts/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestInitializeCreditLine(t *testing.T) {
	s, e := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/accounts/alice/credit-line",
		`{"caller":"underwriter","limit":"100","period_days":90,"grace_days":30}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := e.Ledger().CreditLimitOf("alice"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("CreditLimitOf(alice) = %s, want 100", got)
	}
}

func TestInitializeCreditLine_Duplicate(t *testing.T) {
	s, _ := newTestServer(t, 0)
	h := s.Handler()
	body := `{"caller":"underwriter","limit":"100","period_days":90,"grace_days":30}`
	doJSON(t, h, http.MethodPost, "/api/accounts/alice/credit-line", body)
	w, _ := doJSON(t, h, http.MethodPost, "/api/accounts/alice/credit-line", body)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

// ─── Transfers ──────────────────────────────────────────────────────────────

func TestTransfer(t *testing.T) {
	s, e := newTestServer(t, 50_000) // 5%
	if err := e.InitializeCreditLine("underwriter", "alice", decimal.NewFromInt(100), decimal.Zero, 90*24*time.Hour, 30*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/transfer",
		`{"from":"alice","to":"bob","amount":"40"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["voided"] != false {
		t.Errorf("voided = %v, want false", resp["voided"])
	}
	if resp["fee"] != "2" {
		t.Errorf("fee = %v, want 2", resp["fee"])
	}
	if got := e.Ledger().BalanceOf("bob"); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("BalanceOf(bob) = %s, want 40", got)
	}
}

func TestTransfer_InsufficientCredit(t *testing.T) {
	s, e := newTestServer(t, 0)
	if err := e.InitializeCreditLine("underwriter", "alice", decimal.NewFromInt(10), decimal.Zero, 90*24*time.Hour, 30*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/transfer",
		`{"from":"alice","to":"bob","amount":"40"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestTransfer_NonMember(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/transfer",
		`{"from":"ghost","to":"bob","amount":"10"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestTransfer_BadAmount(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/transfer",
		`{"from":"alice","to":"bob","amount":"not-a-number"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ─── Reserve ────────────────────────────────────────────────────────────────

func TestReserve_DepositAndView(t *testing.T) {
	s, e := newTestServer(t, 0)
	// Outstanding debt 40 at target 0.20 needs 8 in primary.
	if err := e.InitializeCreditLine("underwriter", "alice", decimal.NewFromInt(100), decimal.Zero, 90*24*time.Hour, 30*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Transfer("alice", "bob", decimal.NewFromInt(40)); err != nil {
		t.Fatal(err)
	}
	h := s.Handler()

	w, _ := doJSON(t, h, http.MethodPost, "/api/reserve/deposit",
		`{"from":"operator","amount":"50"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w, resp := doJSON(t, h, http.MethodGet, "/api/reserve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["primary"] != "8" {
		t.Errorf("primary = %v, want 8", resp["primary"])
	}
	if resp["excess"] != "42" {
		t.Errorf("excess = %v, want 42", resp["excess"])
	}
	if resp["rtd"] != "0.2" {
		t.Errorf("rtd = %v, want 0.2", resp["rtd"])
	}
}

func TestReserve_Reimburse(t *testing.T) {
	s, e := newTestServer(t, 0)
	if err := e.Pool().DepositIntoPeripheralReserve(decimal.NewFromInt(30)); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/reserve/reimburse",
		`{"account":"alice","amount":"50"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["paid"] != "30" {
		t.Errorf("paid = %v, want 30", resp["paid"])
	}
}

func TestReserve_WithdrawUnauthorized(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/reserve/withdraw",
		`{"caller":"alice","to":"alice","amount":"10"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

// ─── Fees ───────────────────────────────────────────────────────────────────

func TestFees_SetTargetRate(t *testing.T) {
	s, e := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/fees/target-rate",
		`{"caller":"operator","rate_ppm":50000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := e.Fees().TargetFeeRate(); got != 50_000 {
		t.Errorf("TargetFeeRate = %d, want 50000", got)
	}
}

func TestFees_SetTargetRate_OutOfBounds(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/fees/target-rate",
		`{"caller":"operator","rate_ppm":1000001}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestFees_View(t *testing.T) {
	s, e := newTestServer(t, 50_000)
	if err := e.SetMemberFeeRate("operator", "alice", 200_000); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/fees", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["target_fee_rate_ppm"] != float64(50_000) {
		t.Errorf("target_fee_rate_ppm = %v, want 50000", resp["target_fee_rate_ppm"])
	}
	rates, ok := resp["member_rates_ppm"].(map[string]interface{})
	if !ok || rates["alice"] != float64(200_000) {
		t.Errorf("member_rates_ppm = %v, want alice=200000", resp["member_rates_ppm"])
	}
}

// ─── Events & Sync ──────────────────────────────────────────────────────────

func TestEvents_AfterTransfer(t *testing.T) {
	s, e := newTestServer(t, 0)
	if err := e.InitializeCreditLine("underwriter", "alice", decimal.NewFromInt(100), decimal.Zero, 90*24*time.Hour, 30*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Transfer("alice", "bob", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/events?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	events, ok := resp["events"].([]interface{})
	if !ok || len(events) == 0 {
		t.Fatalf("events = %v, want non-empty list", resp["events"])
	}
	last := events[len(events)-1].(map[string]interface{})
	if last["type"] != "TRANSFER" {
		t.Errorf("last event type = %v, want TRANSFER", last["type"])
	}
}

func TestSyncAll(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := resp["outcomes"]; !ok {
		t.Error("response missing outcomes")
	}
}

// ─── Collateral ─────────────────────────────────────────────────────────────

func TestCollateral_Unavailable(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/collateral/alice", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestCollateral_FundAndView(t *testing.T) {
	s, _ := newTestServer(t, 0)
	balances := map[domain.AccountID]decimal.Decimal{}
	s.SetCollateralAllowance(func(id domain.AccountID) decimal.Decimal {
		return balances[id]
	})
	s.SetCollateralFund(func(caller, account domain.AccountID, amount decimal.Decimal) error {
		if caller != "operator" {
			return domain.ErrNotAuthorized
		}
		balances[account] = balances[account].Add(amount)
		return nil
	})
	h := s.Handler()

	w, _ := doJSON(t, h, http.MethodPost, "/api/collateral/fund",
		`{"caller":"operator","account":"alice","amount":"75"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w, resp := doJSON(t, h, http.MethodGet, "/api/collateral/alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["balance"] != "75" {
		t.Errorf("balance = %v, want 75", resp["balance"])
	}

	w, _ = doJSON(t, h, http.MethodPost, "/api/collateral/fund",
		`{"caller":"alice","account":"alice","amount":"10"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-operator, got %d", w.Code)
	}
}

func TestJournal_Unavailable(t *testing.T) {
	s, _ := newTestServer(t, 0)
	w, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/journal/alice", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
