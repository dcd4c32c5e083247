package fees

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/assurance"
	"github.com/crediton-network/crediton/internal/domain"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type fixedDebt struct{ v decimal.Decimal }

func (f *fixedDebt) TotalOutstandingDebt() decimal.Decimal { return f.v }

type stubOracle struct {
	target decimal.Decimal
	rate   decimal.Decimal
}

func (o *stubOracle) TargetRTD() decimal.Decimal      { return o.target }
func (o *stubOracle) ConversionRate() decimal.Decimal { return o.rate }
func (o *stubOracle) Quote(_, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	return amount.Mul(o.rate), nil
}

type stubAsset struct {
	pulls  map[domain.AccountID]decimal.Decimal
	broken bool
}

func newStubAsset() *stubAsset {
	return &stubAsset{pulls: make(map[domain.AccountID]decimal.Decimal)}
}

func (a *stubAsset) PushTo(domain.AccountID, decimal.Decimal) error { return nil }
func (a *stubAsset) Allowance(domain.AccountID) decimal.Decimal    { return decimal.Zero }
func (a *stubAsset) PullFrom(from domain.AccountID, amount decimal.Decimal) error {
	if a.broken {
		return errors.New("settlement unavailable")
	}
	a.pulls[from] = a.pulls[from].Add(amount)
	return nil
}

func newTestManager(targetPPM int64) (*Manager, *assurance.Pool, *stubAsset) {
	debt := &fixedDebt{v: d(100)}
	oracle := &stubOracle{target: decimal.NewFromFloat(0.20), rate: decimal.NewFromInt(1)}
	asset := newStubAsset()
	denom := domain.Denomination{LedgerDecimals: 6, ReserveDecimals: 6}
	pool := assurance.New("usd", denom, debt, oracle, asset)
	return New(targetPPM, denom, oracle, asset, pool), pool, asset
}

// ─── Calculation Tests ──────────────────────────────────────────────────────

func TestCalculateFee(t *testing.T) {
	m, _, _ := newTestManager(50_000) // 5%
	m.SetMemberFeeRate("alice", 200_000)

	tests := []struct {
		name   string
		member domain.AccountID
		amount int64
		want   string
	}{
		{name: "target rate", member: "bob", amount: 1000, want: "50"},
		{name: "override is multiplicative", member: "alice", amount: 1000, want: "10"},
		{name: "small amount", member: "bob", amount: 1, want: "0.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.CalculateFee(tt.member, d(tt.amount))
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("CalculateFee(%q, %d) = %s, want %s", tt.member, tt.amount, got, tt.want)
			}
		})
	}
}

func TestCalculateFee_Paused(t *testing.T) {
	m, _, _ := newTestManager(50_000)
	m.SetPaused(true)
	if got := m.CalculateFee("bob", d(1000)); !got.IsZero() {
		t.Errorf("CalculateFee() = %s while paused, want 0", got)
	}
}

// ─── Collection Tests ───────────────────────────────────────────────────────

func TestCollectFees(t *testing.T) {
	m, _, asset := newTestManager(50_000)

	fee, err := m.CollectFees("alice", "bob", d(1000))
	if err != nil {
		t.Fatalf("CollectFees() error: %v", err)
	}
	if !fee.Equal(d(50)) {
		t.Errorf("fee = %s, want 50", fee)
	}
	if !asset.pulls["alice"].Equal(d(50)) {
		t.Errorf("pulled from alice = %s, want 50", asset.pulls["alice"])
	}
	if got := m.CollectedFees(); !got.Equal(d(50)) {
		t.Errorf("CollectedFees() = %s, want 50", got)
	}
}

func TestCollectFees_PausedNoOp(t *testing.T) {
	m, _, asset := newTestManager(50_000)
	m.SetPaused(true)

	fee, err := m.CollectFees("alice", "bob", d(1000))
	if err != nil {
		t.Fatalf("CollectFees() error: %v", err)
	}
	if !fee.IsZero() {
		t.Errorf("fee = %s while paused, want 0", fee)
	}
	if len(asset.pulls) != 0 {
		t.Error("settlement pulled while paused")
	}
}

func TestCollectFees_SettlementFailure(t *testing.T) {
	m, _, asset := newTestManager(50_000)
	asset.broken = true

	if _, err := m.CollectFees("alice", "bob", d(1000)); err == nil {
		t.Fatal("CollectFees() error = nil with broken settlement, want error")
	}
	if got := m.CollectedFees(); !got.IsZero() {
		t.Errorf("CollectedFees() = %s after failed pull, want 0", got)
	}
}

// ─── Distribution Tests ─────────────────────────────────────────────────────

func TestDistributeFees(t *testing.T) {
	m, pool, _ := newTestManager(50_000)
	m.CollectFees("alice", "bob", d(1000)) // 50 collected

	distributed, err := m.DistributeFees()
	if err != nil {
		t.Fatalf("DistributeFees() error: %v", err)
	}
	if !distributed.Equal(d(50)) {
		t.Errorf("distributed = %s, want 50", distributed)
	}
	if got := m.CollectedFees(); !got.IsZero() {
		t.Errorf("CollectedFees() = %s after distribution, want 0", got)
	}
	// Needed = 0.20*100 = 20: 20 to primary, 30 to excess.
	r := pool.Reserve()
	if !r.Primary.Equal(d(20)) {
		t.Errorf("pool Primary = %s, want 20", r.Primary)
	}
	if !r.Excess.Equal(d(30)) {
		t.Errorf("pool Excess = %s, want 30", r.Excess)
	}
}

func TestDistributeFees_EmptyAccumulator(t *testing.T) {
	m, _, _ := newTestManager(50_000)
	distributed, err := m.DistributeFees()
	if err != nil {
		t.Fatalf("DistributeFees() error: %v", err)
	}
	if !distributed.IsZero() {
		t.Errorf("distributed = %s, want 0", distributed)
	}
}

// ─── Administration Tests ───────────────────────────────────────────────────

func TestRateBounds(t *testing.T) {
	m, _, _ := newTestManager(50_000)

	tests := []struct {
		name    string
		set     func() error
		wantErr error
	}{
		{name: "target at bound", set: func() error { return m.SetTargetFeeRate(1_000_000) }, wantErr: nil},
		{name: "target above bound", set: func() error { return m.SetTargetFeeRate(1_000_001) }, wantErr: domain.ErrInvalidRate},
		{name: "target negative", set: func() error { return m.SetTargetFeeRate(-1) }, wantErr: domain.ErrInvalidRate},
		{name: "override at bound", set: func() error { return m.SetMemberFeeRate("x", 1_000_000) }, wantErr: nil},
		{name: "override above bound", set: func() error { return m.SetMemberFeeRate("x", 1_000_001) }, wantErr: domain.ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRemoveMemberFeeRate(t *testing.T) {
	m, _, _ := newTestManager(50_000)
	m.SetMemberFeeRate("alice", 200_000)
	m.RemoveMemberFeeRate("alice")
	if got := m.EffectiveRate("alice"); got != 50_000 {
		t.Errorf("EffectiveRate(alice) = %d after removal, want 50000", got)
	}
}
