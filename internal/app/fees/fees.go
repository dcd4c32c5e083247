// Package fees computes and collects per-transaction fees in the reserve
// asset and routes them into the assurance pool.
package fees

import (
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/assurance"
	"github.com/crediton-network/crediton/internal/domain"
)

var millionParts = decimal.NewFromInt(domain.MaxRatePPM)

// Manager owns the fee schedule and the undistributed accumulator. Fees are
// quoted in parts-per-million of the transfer amount, converted into reserve
// units, and pulled from the sender via the settlement asset.
type Manager struct {
	mu     sync.Mutex
	config *domain.FeeConfig
	denom  domain.Denomination
	oracle domain.RiskOracle
	asset  domain.SettlementAsset
	pool   *assurance.Pool
}

// New creates a fee manager with the given target rate.
func New(targetRatePPM int64, denom domain.Denomination, oracle domain.RiskOracle, asset domain.SettlementAsset, pool *assurance.Pool) *Manager {
	return &Manager{
		config: domain.NewFeeConfig(targetRatePPM),
		denom:  denom,
		oracle: oracle,
		asset:  asset,
		pool:   pool,
	}
}

// ─── Fee Computation ────────────────────────────────────────────────────────

// CalculateFee returns the reserve-denominated fee for a member's transfer,
// zero while paused.
func (m *Manager) CalculateFee(member domain.AccountID, amount decimal.Decimal) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calculateFee(member, amount)
}

func (m *Manager) calculateFee(member domain.AccountID, amount decimal.Decimal) decimal.Decimal {
	if m.config.Paused {
		return decimal.Zero
	}
	rate := decimal.NewFromInt(m.config.EffectiveRate(member))
	ledgerFee := rate.Mul(amount).Div(millionParts)
	conv := m.oracle.ConversionRate()
	if conv.IsZero() {
		conv = decimal.NewFromInt(1)
	}
	return m.denom.ToReserve(ledgerFee, conv)
}

// ─── Collection & Distribution ──────────────────────────────────────────────

// CollectFees pulls the computed fee from the sender into the accumulator.
// A no-op while paused. The receiver is accepted for symmetry with the
// orchestrator pipeline; only the sender pays.
func (m *Manager) CollectFees(sender, receiver domain.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fee := m.calculateFee(sender, amount)
	if !fee.IsPositive() {
		return decimal.Zero, nil
	}
	if err := m.asset.PullFrom(sender, fee); err != nil {
		return decimal.Zero, err
	}
	m.config.CollectedFees = m.config.CollectedFees.Add(fee)
	return fee, nil
}

// DistributeFees deposits the entire accumulator into the assurance pool and
// zeroes it. A no-op when nothing is collected.
func (m *Manager) DistributeFees() (decimal.Decimal, error) {
	m.mu.Lock()
	collected := m.config.CollectedFees
	if !collected.IsPositive() {
		m.mu.Unlock()
		return decimal.Zero, nil
	}
	m.config.CollectedFees = decimal.Zero
	m.mu.Unlock()

	if err := m.pool.Deposit(collected); err != nil {
		// Put the accumulator back; the pool never took the funds.
		m.mu.Lock()
		m.config.CollectedFees = m.config.CollectedFees.Add(collected)
		m.mu.Unlock()
		return decimal.Zero, err
	}
	log.Printf("[fees] distributed %s into the assurance pool", collected)
	return collected, nil
}

// ─── Administration ─────────────────────────────────────────────────────────

// SetTargetFeeRate updates the network fee rate. Fails atomically on a rate
// above 1,000,000 ppm.
func (m *Manager) SetTargetFeeRate(ratePPM int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ratePPM < 0 || ratePPM > domain.MaxRatePPM {
		return domain.ErrInvalidRate
	}
	m.config.TargetFeeRate = ratePPM
	return nil
}

// SetMemberFeeRate sets a member's multiplicative override scalar.
func (m *Manager) SetMemberFeeRate(member domain.AccountID, ratePPM int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ratePPM < 0 || ratePPM > domain.MaxRatePPM {
		return domain.ErrInvalidRate
	}
	m.config.MemberRates[member] = ratePPM
	return nil
}

// RemoveMemberFeeRate clears a member's override.
func (m *Manager) RemoveMemberFeeRate(member domain.AccountID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.config.MemberRates, member)
}

// SetPaused pauses or resumes fee collection.
func (m *Manager) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Paused = paused
}

// ─── Views ──────────────────────────────────────────────────────────────────

// TargetFeeRate returns the network rate in ppm.
func (m *Manager) TargetFeeRate() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.TargetFeeRate
}

// EffectiveRate returns the ppm rate a member actually pays.
func (m *Manager) EffectiveRate(member domain.AccountID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.EffectiveRate(member)
}

// CollectedFees returns the undistributed accumulator.
func (m *Manager) CollectedFees() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.CollectedFees
}

// Paused reports whether fee collection is suspended.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Paused
}

// Config returns a deep copy of the fee config, for persistence.
func (m *Manager) Config() domain.FeeConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.config
	cp.MemberRates = make(map[domain.AccountID]int64, len(m.config.MemberRates))
	for k, v := range m.config.MemberRates {
		cp.MemberRates[k] = v
	}
	return cp
}

// Restore replaces the fee config, used when reloading a snapshot.
func (m *Manager) Restore(cfg domain.FeeConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cfg
	if cp.MemberRates == nil {
		cp.MemberRates = make(map[domain.AccountID]int64)
	}
	m.config = &cp
}
