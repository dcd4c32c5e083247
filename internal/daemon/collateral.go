package daemon

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/domain"
	"github.com/crediton-network/crediton/internal/infra/sqlite"
)

// ─── Risk Oracle ────────────────────────────────────────────────────────────

// StaticOracle is a fixed-parameter risk oracle configured at boot.
// The reserve asset converts one to one unless a different rate is set.
type StaticOracle struct {
	Target decimal.Decimal
	Rate   decimal.Decimal
}

// NewStaticOracle builds an oracle from the configured RTD target.
func NewStaticOracle(targetRTD float64) *StaticOracle {
	return &StaticOracle{
		Target: decimal.NewFromFloat(targetRTD),
		Rate:   decimal.NewFromInt(1),
	}
}

// TargetRTD returns the configured reserve-to-debt target.
func (o *StaticOracle) TargetRTD() decimal.Decimal { return o.Target }

// ConversionRate returns the ledger-to-reserve price multiplier.
func (o *StaticOracle) ConversionRate() decimal.Decimal { return o.Rate }

// Quote converts an amount at the fixed rate.
func (o *StaticOracle) Quote(_, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	return amount.Mul(o.Rate), nil
}

// ─── Collateral Book ────────────────────────────────────────────────────────

// CollateralBook is a book-entry settlement asset: it tracks each
// participant's external collateral balance and moves value by debiting
// and crediting those entries. Balances persist in sqlite when a store is
// attached.
type CollateralBook struct {
	mu       sync.Mutex
	balances map[domain.AccountID]decimal.Decimal
	store    *sqlite.DB // nil when running without persistence
}

// NewCollateralBook loads persisted balances when a store is attached.
func NewCollateralBook(store *sqlite.DB) (*CollateralBook, error) {
	b := &CollateralBook{
		balances: make(map[domain.AccountID]decimal.Decimal),
		store:    store,
	}
	if store != nil {
		balances, err := store.ListCollateral()
		if err != nil {
			return nil, err
		}
		b.balances = balances
	}
	return b, nil
}

// Credit funds an account's collateral entry, e.g. after an off-network
// wire is confirmed.
func (b *CollateralBook) Credit(id domain.AccountID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set(id, b.balances[id].Add(amount))
}

// PullFrom debits an account's collateral entry.
func (b *CollateralBook) PullFrom(from domain.AccountID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance := b.balances[from]
	if balance.LessThan(amount) {
		return domain.ErrInsufficientCollateral
	}
	return b.set(from, balance.Sub(amount))
}

// PushTo credits an account's collateral entry.
func (b *CollateralBook) PushTo(to domain.AccountID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set(to, b.balances[to].Add(amount))
}

// Allowance returns the account's current collateral balance.
func (b *CollateralBook) Allowance(id domain.AccountID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

// set writes through to the store before updating memory, so a failed
// write leaves the in-memory balance untouched.
func (b *CollateralBook) set(id domain.AccountID, balance decimal.Decimal) error {
	if b.store != nil {
		if err := b.store.SetCollateral(id, balance); err != nil {
			return err
		}
	}
	b.balances[id] = balance
	return nil
}
