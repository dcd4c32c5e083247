package issuer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/ledger"
	"github.com/crediton-network/crediton/internal/domain"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// stubAccess treats everyone as a member until revoked.
type stubAccess struct {
	revoked map[domain.AccountID]bool
}

func newStubAccess() *stubAccess {
	return &stubAccess{revoked: make(map[domain.AccountID]bool)}
}

func (s *stubAccess) IsAdmin(domain.AccountID) bool    { return true }
func (s *stubAccess) IsOperator(domain.AccountID) bool { return true }
func (s *stubAccess) IsIssuer(domain.AccountID) bool   { return true }
func (s *stubAccess) IsMember(id domain.AccountID) bool {
	return !s.revoked[id]
}
func (s *stubAccess) GrantMember(id domain.AccountID) error {
	delete(s.revoked, id)
	return nil
}
func (s *stubAccess) RevokeMember(id domain.AccountID) error {
	s.revoked[id] = true
	return nil
}

type fixture struct {
	ledger *ledger.Ledger
	issuer *Issuer
	access *stubAccess
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.New()
	for _, id := range []domain.AccountID{"alice", "bob"} {
		if err := l.CreateAccount(id); err != nil {
			t.Fatal(err)
		}
	}
	access := newStubAccess()
	iss := New(l, access, nil)
	f := &fixture{ledger: l, issuer: iss, access: access,
		now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	iss.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

const (
	periodLen = 90 * 24 * time.Hour
	graceLen  = 30 * 24 * time.Hour
)

// ─── Issuance Tests ─────────────────────────────────────────────────────────

func TestInitializeCreditLine(t *testing.T) {
	f := newFixture(t)

	err := f.issuer.InitializeCreditLine("alice", d(100), d(25), periodLen, graceLen)
	if err != nil {
		t.Fatalf("InitializeCreditLine() error: %v", err)
	}

	if got := f.ledger.CreditLimitOf("alice"); !got.Equal(d(100)) {
		t.Errorf("CreditLimitOf(alice) = %s, want 100", got)
	}
	if got := f.ledger.BalanceOf("alice"); !got.Equal(d(25)) {
		t.Errorf("BalanceOf(alice) = %s, want 25", got)
	}
	// Initial balance is recorded as network debt.
	if got := f.ledger.CreditBalanceOf(domain.NetworkDebtAccountID); !got.Equal(d(25)) {
		t.Errorf("network debt = %s, want 25", got)
	}

	p := f.issuer.PeriodOf("alice")
	if p == nil {
		t.Fatal("PeriodOf(alice) = nil, want period")
	}
	if !p.PeriodExpiration.Equal(f.now.Add(periodLen)) {
		t.Errorf("PeriodExpiration = %v, want %v", p.PeriodExpiration, f.now.Add(periodLen))
	}

	if err := f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen); !errors.Is(err, domain.ErrPeriodExists) {
		t.Errorf("second InitializeCreditLine() error = %v, want %v", err, domain.ErrPeriodExists)
	}
}

func TestInitializeCreditLine_NetworkDebtRejected(t *testing.T) {
	f := newFixture(t)
	err := f.issuer.InitializeCreditLine(domain.NetworkDebtAccountID, d(1), decimal.Zero, periodLen, graceLen)
	if !errors.Is(err, domain.ErrReservedAccount) {
		t.Errorf("error = %v, want %v", err, domain.ErrReservedAccount)
	}
}

// ─── Validation Tests ───────────────────────────────────────────────────────

func TestValidateTransaction_Uninitialized(t *testing.T) {
	f := newFixture(t)
	// No period: never gated.
	if !f.issuer.ValidateTransaction("alice", "bob", d(10)) {
		t.Error("ValidateTransaction() = false for uninitialized sender, want true")
	}
}

func TestValidateTransaction_Lifecycle(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		indebted  bool
		wantValid bool
	}{
		{name: "active compliant", elapsed: time.Hour, indebted: false, wantValid: true},
		{name: "active indebted", elapsed: time.Hour, indebted: true, wantValid: true},
		{name: "grace compliant treated as active", elapsed: periodLen + time.Hour, indebted: false, wantValid: true},
		{name: "grace indebted frozen", elapsed: periodLen + time.Hour, indebted: true, wantValid: false},
		{name: "expired compliant renews", elapsed: periodLen + graceLen + time.Hour, indebted: false, wantValid: true},
		{name: "expired indebted defaults", elapsed: periodLen + graceLen + time.Hour, indebted: true, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen); err != nil {
				t.Fatal(err)
			}
			if tt.indebted {
				if err := f.ledger.Transfer("alice", "bob", d(20)); err != nil {
					t.Fatal(err)
				}
			}
			f.advance(tt.elapsed)

			if got := f.issuer.ValidateTransaction("alice", "bob", d(1)); got != tt.wantValid {
				t.Errorf("ValidateTransaction() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestValidateTransaction_ReceiverNeverGated(t *testing.T) {
	f := newFixture(t)
	f.issuer.InitializeCreditLine("bob", d(100), decimal.Zero, periodLen, graceLen)
	f.ledger.Transfer("bob", "alice", d(20)) // bob indebted
	f.advance(periodLen + time.Hour)         // bob frozen in grace

	// alice sending TO frozen bob is still valid.
	if !f.issuer.ValidateTransaction("alice", "bob", d(5)) {
		t.Error("ValidateTransaction() = false when only the receiver is frozen, want true")
	}
}

// ─── Renewal Tests ──────────────────────────────────────────────────────────

func TestExpiredCompliant_SilentRenewal(t *testing.T) {
	f := newFixture(t)
	f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen)
	f.advance(periodLen + graceLen + time.Hour)

	if got := f.issuer.SyncCreditPeriod("alice"); got != OutcomeRenewed {
		t.Errorf("SyncCreditPeriod() = %v, want OutcomeRenewed", got)
	}
	// Period record is deleted; account re-issuable under fresh terms.
	if f.issuer.PeriodOf("alice") != nil {
		t.Error("PeriodOf(alice) != nil after renewal, want nil")
	}
	if err := f.issuer.InitializeCreditLine("alice", d(50), decimal.Zero, periodLen, graceLen); err != nil {
		t.Errorf("re-issuance after renewal error: %v", err)
	}
}

// ─── Default Tests ──────────────────────────────────────────────────────────

func TestExpiredIndebted_Default(t *testing.T) {
	f := newFixture(t)
	f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen)
	f.ledger.Transfer("alice", "bob", d(20))
	f.advance(periodLen + graceLen + time.Hour)

	if got := f.issuer.SyncCreditPeriod("alice"); got != OutcomeDefaulted {
		t.Errorf("SyncCreditPeriod() = %v, want OutcomeDefaulted", got)
	}

	if got := f.ledger.CreditBalanceOf(domain.NetworkDebtAccountID); !got.Equal(d(20)) {
		t.Errorf("network debt = %s, want 20", got)
	}
	if got := f.ledger.CreditLimitOf("alice"); !got.IsZero() {
		t.Errorf("CreditLimitOf(alice) = %s, want 0", got)
	}
	if f.access.IsMember("alice") {
		t.Error("alice still a member after default, want revoked")
	}
	if f.issuer.PeriodOf("alice") != nil {
		t.Error("PeriodOf(alice) != nil after default, want nil")
	}
}

func TestDefault_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen)
	f.ledger.Transfer("alice", "bob", d(20))
	f.advance(periodLen + graceLen + time.Hour)

	f.issuer.SyncCreditPeriod("alice")
	// Second invocation: period is gone, must be a no-op, not a double charge.
	if got := f.issuer.SyncCreditPeriod("alice"); got != OutcomeNone {
		t.Errorf("second SyncCreditPeriod() = %v, want OutcomeNone", got)
	}
	if got := f.ledger.CreditBalanceOf(domain.NetworkDebtAccountID); !got.Equal(d(20)) {
		t.Errorf("network debt = %s after repeated default, want 20", got)
	}
}

func TestDefault_Callback(t *testing.T) {
	f := newFixture(t)
	var gotID domain.AccountID
	var gotAmount decimal.Decimal
	f.issuer.OnDefault(func(id domain.AccountID, written decimal.Decimal) {
		gotID, gotAmount = id, written
	})
	f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen)
	f.ledger.Transfer("alice", "bob", d(20))
	f.advance(periodLen + graceLen + time.Hour)
	f.issuer.SyncCreditPeriod("alice")

	if gotID != "alice" || !gotAmount.Equal(d(20)) {
		t.Errorf("OnDefault got (%q, %s), want (alice, 20)", gotID, gotAmount)
	}
}

// ─── Pause Tests ────────────────────────────────────────────────────────────

func TestSetPaused_SuspendsEvaluation(t *testing.T) {
	f := newFixture(t)
	f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen)
	f.ledger.Transfer("alice", "bob", d(20))
	if err := f.issuer.SetPaused("alice", true); err != nil {
		t.Fatal(err)
	}
	f.advance(periodLen + graceLen + time.Hour)

	// Paused: treated as Active regardless of elapsed time.
	if !f.issuer.ValidateTransaction("alice", "bob", d(1)) {
		t.Error("ValidateTransaction() = false while paused, want true")
	}
	if got := f.issuer.SyncCreditPeriod("alice"); got != OutcomeNone {
		t.Errorf("SyncCreditPeriod() = %v while paused, want OutcomeNone", got)
	}

	// Unpausing resumes evaluation against the unmodified timestamps.
	f.issuer.SetPaused("alice", false)
	if got := f.issuer.SyncCreditPeriod("alice"); got != OutcomeDefaulted {
		t.Errorf("SyncCreditPeriod() = %v after unpause, want OutcomeDefaulted", got)
	}
}

func TestSetPaused_NoPeriod(t *testing.T) {
	f := newFixture(t)
	if err := f.issuer.SetPaused("alice", true); !errors.Is(err, domain.ErrNoPeriod) {
		t.Errorf("SetPaused() error = %v, want %v", err, domain.ErrNoPeriod)
	}
}

// ─── Keeper Sync Tests ──────────────────────────────────────────────────────

func TestSyncAll(t *testing.T) {
	f := newFixture(t)
	f.issuer.InitializeCreditLine("alice", d(100), decimal.Zero, periodLen, graceLen)
	f.issuer.InitializeCreditLine("bob", d(100), decimal.Zero, periodLen, graceLen)
	f.ledger.Transfer("alice", "bob", d(20)) // alice indebted, bob repaid nothing (bob had no debt)
	f.advance(periodLen + graceLen + time.Hour)

	outcomes := f.issuer.SyncAll()
	if outcomes["alice"] != OutcomeDefaulted {
		t.Errorf("outcomes[alice] = %v, want OutcomeDefaulted", outcomes["alice"])
	}
	if outcomes["bob"] != OutcomeRenewed {
		t.Errorf("outcomes[bob] = %v, want OutcomeRenewed", outcomes["bob"])
	}
}
