// Package assurance implements the segmented reserve pool that backstops
// defaulted debt. Collateral is held in three buckets: primary (counts toward
// the target reserve-to-debt ratio), peripheral (drawn first during
// reimbursement, excluded from the ratio), and excess (the only bucket open
// to discretionary withdrawal).
package assurance

import (
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/domain"
)

// DebtSource reports the converted base for the ratio calculation.
// The ledger's TotalOutstandingDebt satisfies it.
type DebtSource interface {
	TotalOutstandingDebt() decimal.Decimal
}

// Pool is the reserve accounting engine for one collateral denomination.
// All mutating operations serialize on one mutex; the reimbursement cascade
// in particular must never observe a partially-updated reserve.
type Pool struct {
	mu      sync.Mutex
	reserve *domain.ReserveAccount
	denom   domain.Denomination
	debt    DebtSource
	oracle  domain.RiskOracle
	asset   domain.SettlementAsset
}

// New creates a pool over the given reserve asset denomination.
func New(assetID string, denom domain.Denomination, debt DebtSource, oracle domain.RiskOracle, asset domain.SettlementAsset) *Pool {
	return &Pool{
		reserve: domain.NewReserveAccount(assetID),
		denom:   denom,
		debt:    debt,
		oracle:  oracle,
		asset:   asset,
	}
}

// ─── Ratio Views ────────────────────────────────────────────────────────────

// convertedDebt returns total outstanding debt in reserve units.
// Caller holds p.mu.
func (p *Pool) convertedDebt() decimal.Decimal {
	rate := p.oracle.ConversionRate()
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return p.denom.ToReserve(p.debt.TotalOutstandingDebt(), rate)
}

// RTD returns primary / convert(totalOutstandingDebt), or 0 when either the
// primary balance or the total debt is zero.
func (p *Pool) RTD() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rtd()
}

func (p *Pool) rtd() decimal.Decimal {
	cd := p.convertedDebt()
	if p.reserve.Primary.IsZero() || cd.IsZero() {
		return decimal.Zero
	}
	return p.reserve.Primary.Div(cd)
}

// NeededReserves returns how much primary collateral is missing to reach the
// oracle's target ratio: max(0, targetRTD*convertedDebt - primary).
func (p *Pool) NeededReserves() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.neededReserves()
}

func (p *Pool) neededReserves() decimal.Decimal {
	needed := p.oracle.TargetRTD().Mul(p.convertedDebt()).Sub(p.reserve.Primary)
	if needed.IsNegative() {
		return decimal.Zero
	}
	return needed
}

// ─── Deposits ───────────────────────────────────────────────────────────────

// Deposit routes an incoming amount: up to neededReserves into primary, any
// remainder into excess. The collateral itself must already have settled.
func (p *Pool) Deposit(amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	toPrimary := decimal.Min(amount, p.neededReserves())
	p.reserve.Primary = p.reserve.Primary.Add(toPrimary)
	p.reserve.Excess = p.reserve.Excess.Add(amount.Sub(toPrimary))
	return nil
}

// DepositIntoPrimaryReserve deposits unconditionally into primary, used by
// explicit collateralization flows.
func (p *Pool) DepositIntoPrimaryReserve(amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	p.reserve.Primary = p.reserve.Primary.Add(amount)
	return nil
}

// DepositIntoPeripheralReserve deposits unconditionally into peripheral,
// used by repayment and promotional flows.
func (p *Pool) DepositIntoPeripheralReserve(amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	p.reserve.Peripheral = p.reserve.Peripheral.Add(amount)
	return nil
}

// ─── Reimbursement ──────────────────────────────────────────────────────────

// Reimburse pays the account from the reserve, drawing peripheral first,
// then primary. If the combined reserve is short, it pays out everything
// available and returns the lesser amount — reimbursement never blocks or
// fails for insufficiency.
func (p *Pool) Reimburse(account domain.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	p.mu.Lock()

	if !amount.IsPositive() {
		p.mu.Unlock()
		return decimal.Zero, domain.ErrNonPositiveAmount
	}

	paid := decimal.Min(amount, p.reserve.ReserveBalance())
	fromPeripheral := decimal.Min(paid, p.reserve.Peripheral)
	fromPrimary := paid.Sub(fromPeripheral)
	p.reserve.Peripheral = p.reserve.Peripheral.Sub(fromPeripheral)
	p.reserve.Primary = p.reserve.Primary.Sub(fromPrimary)
	p.mu.Unlock()

	if paid.IsZero() {
		return decimal.Zero, nil
	}
	// Settlement happens after the buckets are debited so a re-entrant call
	// from the asset collaborator cannot observe a partially-updated reserve.
	if err := p.asset.PushTo(account, paid); err != nil {
		log.Printf("[assurance] settlement push to %s failed: %v", account, err)
		p.mu.Lock()
		p.reserve.Peripheral = p.reserve.Peripheral.Add(fromPeripheral)
		p.reserve.Primary = p.reserve.Primary.Add(fromPrimary)
		p.mu.Unlock()
		return decimal.Zero, err
	}
	return paid, nil
}

// ─── Rebalancing & Withdrawal ───────────────────────────────────────────────

// ReallocateExcessBalance moves min(neededReserves, excess) from excess into
// primary. Called after a target-ratio increase.
func (p *Pool) ReallocateExcessBalance() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	moved := decimal.Min(p.neededReserves(), p.reserve.Excess)
	if moved.IsPositive() {
		p.reserve.Excess = p.reserve.Excess.Sub(moved)
		p.reserve.Primary = p.reserve.Primary.Add(moved)
	}
	return moved
}

// Withdraw removes collateral from the excess bucket only. Primary and
// peripheral are solvency-critical and are never open to discretionary
// withdrawal.
func (p *Pool) Withdraw(to domain.AccountID, amount decimal.Decimal) error {
	p.mu.Lock()

	if !amount.IsPositive() {
		p.mu.Unlock()
		return domain.ErrNonPositiveAmount
	}
	if amount.GreaterThan(p.reserve.Excess) {
		p.mu.Unlock()
		return domain.ErrInsufficientExcess
	}
	p.reserve.Excess = p.reserve.Excess.Sub(amount)
	p.mu.Unlock()

	if err := p.asset.PushTo(to, amount); err != nil {
		// Restore the bucket; the collateral never left.
		p.mu.Lock()
		p.reserve.Excess = p.reserve.Excess.Add(amount)
		p.mu.Unlock()
		return err
	}
	return nil
}

// ─── Views ──────────────────────────────────────────────────────────────────

// Reserve returns a copy of the reserve account.
func (p *Pool) Reserve() domain.ReserveAccount {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.reserve
}

// Restore replaces the reserve state, used when reloading a snapshot.
func (p *Pool) Restore(r domain.ReserveAccount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := r
	p.reserve = &cp
}
