// Package ledger maintains fungible balances with elastic, credit-bounded
// overdraft. Spending past the current balance mints the shortfall against the
// sender's credit line; receiving while in debt burns the repayment
// automatically. Every mutation keeps two invariants:
//
//  1. creditBalance(a) <= creditLimit(a) for every account a
//  2. sum of all balances == total circulating supply
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/domain"
)

// Journal receives one row per balance mutation. Implementations must not
// call back into the ledger.
type Journal interface {
	Append(kind domain.JournalKind, from, to domain.AccountID, amount decimal.Decimal)
}

// Ledger is the single-writer balance book. All exported methods serialize on
// one mutex; no method suspends or performs I/O while holding it.
type Ledger struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]*domain.Account
	supply   decimal.Decimal
	debt     decimal.Decimal // sum of all credit balances, network debt included
	journal  Journal
}

// New creates a ledger with the reserved network debt account pre-registered.
func New() *Ledger {
	l := &Ledger{
		accounts: make(map[domain.AccountID]*domain.Account),
		supply:   decimal.Zero,
		debt:     decimal.Zero,
	}
	l.accounts[domain.NetworkDebtAccountID] = domain.NewAccount(domain.NetworkDebtAccountID)
	return l
}

// SetJournal attaches a mutation journal. Pass nil to detach.
func (l *Ledger) SetJournal(j Journal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = j
}

func (l *Ledger) record(kind domain.JournalKind, from, to domain.AccountID, amount decimal.Decimal) {
	if l.journal != nil {
		l.journal.Append(kind, from, to, amount)
	}
}

// ─── Account Management ─────────────────────────────────────────────────────

// CreateAccount registers a new zeroed account.
func (l *Ledger) CreateAccount(id domain.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id == "" {
		return domain.ErrUnknownAccount
	}
	if _, ok := l.accounts[id]; ok {
		return domain.ErrAccountExists
	}
	l.accounts[id] = domain.NewAccount(id)
	return nil
}

// SetCreditLimit sets an account's credit limit. Administrative; the caller
// is responsible for the admin check. Fails if the limit exceeds the storable
// maximum or would fall below the account's outstanding credit balance.
func (l *Ledger) SetCreditLimit(id domain.AccountID, limit decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[id]
	if !ok {
		return domain.ErrUnknownAccount
	}
	if limit.GreaterThan(domain.MaxCreditLimit) {
		return domain.ErrCreditLimitOverflow
	}
	if limit.IsNegative() {
		return domain.ErrNonPositiveAmount
	}
	if limit.LessThan(acct.CreditBalance) {
		return domain.ErrLimitBelowDebt
	}
	acct.CreditLimit = limit
	return nil
}

// ─── Transfer ───────────────────────────────────────────────────────────────

// Transfer moves amount from one account to the other, minting against the
// sender's credit line when the balance falls short and burning the
// receiver's debt from the incoming amount.
func (l *Ledger) Transfer(from, to domain.AccountID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	src, ok := l.accounts[from]
	if !ok {
		return domain.ErrUnknownAccount
	}
	dst, ok := l.accounts[to]
	if !ok {
		return domain.ErrUnknownAccount
	}

	// Elastic mint: cover the shortfall from the sender's credit line.
	if src.Balance.LessThan(amount) {
		missing := amount.Sub(src.Balance)
		if src.CreditLimitLeft().LessThan(missing) {
			return domain.ErrInsufficientCredit
		}
		src.Balance = src.Balance.Add(missing)
		src.CreditBalance = src.CreditBalance.Add(missing)
		l.supply = l.supply.Add(missing)
		l.debt = l.debt.Add(missing)
		l.record(domain.JournalMint, "", from, missing)
	}

	src.Balance = src.Balance.Sub(amount)
	dst.Balance = dst.Balance.Add(amount)
	l.record(domain.JournalTransfer, from, to, amount)

	// Automatic amortization: burn the receiver's debt from the proceeds.
	if dst.CreditBalance.IsPositive() {
		repay := decimal.Min(dst.CreditBalance, amount)
		dst.Balance = dst.Balance.Sub(repay)
		dst.CreditBalance = dst.CreditBalance.Sub(repay)
		l.supply = l.supply.Sub(repay)
		l.debt = l.debt.Sub(repay)
		l.record(domain.JournalBurn, to, "", repay)
	}
	return nil
}

// MintNetworkDebt mints amount directly into an account's balance, recording
// the liability against the network debt account. Used by credit line
// initialization with a starting balance.
func (l *Ledger) MintNetworkDebt(to domain.AccountID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	dst, ok := l.accounts[to]
	if !ok {
		return domain.ErrUnknownAccount
	}
	network := l.accounts[domain.NetworkDebtAccountID]
	dst.Balance = dst.Balance.Add(amount)
	network.CreditBalance = network.CreditBalance.Add(amount)
	l.supply = l.supply.Add(amount)
	l.debt = l.debt.Add(amount)
	l.record(domain.JournalMint, domain.NetworkDebtAccountID, to, amount)
	return nil
}

// WriteOff transfers an account's outstanding credit balance to the network
// debt account and zeroes its credit limit. Idempotent: an account with no
// debt (or already written off) is a no-op. Returns the amount written off.
func (l *Ledger) WriteOff(id domain.AccountID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[id]
	if !ok {
		return decimal.Zero, domain.ErrUnknownAccount
	}
	if id.IsNetworkDebt() {
		return decimal.Zero, domain.ErrReservedAccount
	}
	debt := acct.CreditBalance
	acct.CreditLimit = decimal.Zero
	if debt.IsZero() {
		return decimal.Zero, nil
	}
	network := l.accounts[domain.NetworkDebtAccountID]
	network.CreditBalance = network.CreditBalance.Add(debt)
	acct.CreditBalance = decimal.Zero
	l.record(domain.JournalWriteOff, id, domain.NetworkDebtAccountID, debt)
	return debt, nil
}

// RepayNetworkDebt burns amount of circulating supply against the network
// debt account, used when reserve repayment flows retire written-off debt.
func (l *Ledger) RepayNetworkDebt(from domain.AccountID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	src, ok := l.accounts[from]
	if !ok {
		return domain.ErrUnknownAccount
	}
	network := l.accounts[domain.NetworkDebtAccountID]
	if src.Balance.LessThan(amount) || network.CreditBalance.LessThan(amount) {
		return domain.ErrInsufficientCredit
	}
	src.Balance = src.Balance.Sub(amount)
	network.CreditBalance = network.CreditBalance.Sub(amount)
	l.supply = l.supply.Sub(amount)
	l.debt = l.debt.Sub(amount)
	l.record(domain.JournalBurn, from, domain.NetworkDebtAccountID, amount)
	return nil
}

// ─── Views ──────────────────────────────────────────────────────────────────

// BalanceOf returns an account's balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(id domain.AccountID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[id]; ok {
		return a.Balance
	}
	return decimal.Zero
}

// CreditBalanceOf returns an account's outstanding credit balance.
func (l *Ledger) CreditBalanceOf(id domain.AccountID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[id]; ok {
		return a.CreditBalance
	}
	return decimal.Zero
}

// CreditLimitOf returns an account's credit limit.
func (l *Ledger) CreditLimitOf(id domain.AccountID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[id]; ok {
		return a.CreditLimit
	}
	return decimal.Zero
}

// CreditLimitLeftOf returns max(0, creditLimit - creditBalance).
func (l *Ledger) CreditLimitLeftOf(id domain.AccountID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[id]; ok {
		return a.CreditLimitLeft()
	}
	return decimal.Zero
}

// TotalSupply returns the total units in circulation.
func (l *Ledger) TotalSupply() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

// TotalOutstandingDebt returns the sum of all credit balances, the network
// debt account included. This feeds the assurance pool's ratio calculation.
func (l *Ledger) TotalOutstandingDebt() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debt
}

// Account returns a copy of the account record, or nil if unknown.
func (l *Ledger) Account(id domain.AccountID) *domain.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

// Accounts returns copies of every registered account.
func (l *Ledger) Accounts() []domain.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, *a)
	}
	return out
}

// Restore replaces an account's stored state, used when reloading a snapshot.
func (l *Ledger) Restore(a domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := a
	l.accounts[a.ID] = &cp
}

// RestoreTotals replaces the supply and debt counters, used with Restore.
func (l *Ledger) RestoreTotals(supply, debt decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supply = supply
	l.debt = debt
}
