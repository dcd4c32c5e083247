// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Account Types ──────────────────────────────────────────────────────────

// AccountID is an opaque, unique account identifier.
type AccountID string

// NetworkDebtAccountID is the reserved, ownerless account that accumulates
// written-off debt. It has an effectively unbounded credit limit and is never
// gated by credit validation.
const NetworkDebtAccountID AccountID = "network:debt"

// IsNetworkDebt reports whether the ID names the reserved network debt account.
func (id AccountID) IsNetworkDebt() bool { return id == NetworkDebtAccountID }

// Account holds the mutual-credit bookkeeping for one participant.
// Balance and CreditBalance are independent non-negative counters over the
// same fungible unit: CreditBalance tracks how much of the balance in
// circulation was minted against this account's credit line.
type Account struct {
	ID            AccountID       `json:"id"`
	Balance       decimal.Decimal `json:"balance"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// NewAccount returns a zeroed account for the given ID.
func NewAccount(id AccountID) *Account {
	return &Account{
		ID:            id,
		Balance:       decimal.Zero,
		CreditLimit:   decimal.Zero,
		CreditBalance: decimal.Zero,
	}
}

// CreditLimitLeft returns max(0, CreditLimit - CreditBalance).
// The network debt account reports MaxCreditLimit regardless of state.
func (a *Account) CreditLimitLeft() decimal.Decimal {
	if a.ID.IsNetworkDebt() {
		return MaxCreditLimit
	}
	left := a.CreditLimit.Sub(a.CreditBalance)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// MaxCreditLimit bounds administrative credit limits. Mirrors the storage
// width reserved for limits in the persisted schema.
var MaxCreditLimit = decimal.New(1, 12)

// ─── Credit Period ──────────────────────────────────────────────────────────

// PeriodState is the lazily derived lifecycle state of a credit period.
type PeriodState int

const (
	// PeriodActive: now is before the period expiration.
	PeriodActive PeriodState = iota
	// PeriodGrace: the period expired but the grace window is still open.
	PeriodGrace
	// PeriodExpired: the grace window has closed; the next evaluation either
	// renews (compliant) or defaults (non-compliant) the account.
	PeriodExpired
)

// String formats a period state for logs and API responses.
func (s PeriodState) String() string {
	switch s {
	case PeriodActive:
		return "ACTIVE"
	case PeriodGrace:
		return "GRACE"
	case PeriodExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// CreditPeriod is the underwriting window for one account's credit line.
// States are derived from the stored timestamps at read time; nothing is
// scheduled.
type CreditPeriod struct {
	AccountID        AccountID     `json:"account_id"`
	IssuedAt         time.Time     `json:"issued_at"`
	PeriodExpiration time.Time     `json:"period_expiration"`
	GraceLength      time.Duration `json:"grace_length"`
	Paused           bool          `json:"paused"`
}

// GraceExpiration returns the instant the grace window closes.
func (p *CreditPeriod) GraceExpiration() time.Time {
	return p.PeriodExpiration.Add(p.GraceLength)
}

// StateAt derives the lifecycle state at the given instant.
// A paused period is always Active; unpausing resumes evaluation against the
// unmodified stored timestamps.
func (p *CreditPeriod) StateAt(now time.Time) PeriodState {
	if p.Paused {
		return PeriodActive
	}
	if now.Before(p.PeriodExpiration) {
		return PeriodActive
	}
	if now.Before(p.GraceExpiration()) {
		return PeriodGrace
	}
	return PeriodExpired
}

// ─── Reserve Account ────────────────────────────────────────────────────────

// ReserveAccount holds collateral segmented by purpose, one per reserve-asset
// denomination. Only primary counts toward the target ratio; peripheral is
// drawn first during reimbursement; excess is the only withdrawable bucket.
type ReserveAccount struct {
	AssetID    string          `json:"asset_id"`
	Primary    decimal.Decimal `json:"primary_balance"`
	Peripheral decimal.Decimal `json:"peripheral_balance"`
	Excess     decimal.Decimal `json:"excess_balance"`
}

// NewReserveAccount returns a zeroed reserve account for the given asset.
func NewReserveAccount(assetID string) *ReserveAccount {
	return &ReserveAccount{
		AssetID:    assetID,
		Primary:    decimal.Zero,
		Peripheral: decimal.Zero,
		Excess:     decimal.Zero,
	}
}

// ReserveBalance returns primary + peripheral, the total available to the
// reimbursement cascade.
func (r *ReserveAccount) ReserveBalance() decimal.Decimal {
	return r.Primary.Add(r.Peripheral)
}

// ─── Fee Config ─────────────────────────────────────────────────────────────

// MaxRatePPM is the upper bound for all fee rates (100% in parts-per-million).
const MaxRatePPM int64 = 1_000_000

// FeeConfig holds the fee schedule and the undistributed fee accumulator.
// Member overrides are multiplicative scalars on the target rate, not
// independent rates.
type FeeConfig struct {
	TargetFeeRate int64               `json:"target_fee_rate"` // ppm
	MemberRates   map[AccountID]int64 `json:"member_rates"`    // ppm scalar per member
	CollectedFees decimal.Decimal     `json:"collected_fees"`
	Paused        bool                `json:"paused"`
}

// NewFeeConfig returns a fee config with the given target rate and no overrides.
func NewFeeConfig(targetRatePPM int64) *FeeConfig {
	return &FeeConfig{
		TargetFeeRate: targetRatePPM,
		MemberRates:   make(map[AccountID]int64),
		CollectedFees: decimal.Zero,
	}
}

// EffectiveRate returns the ppm rate applied to the member's transfers:
// the target rate, scaled by the member's override when one exists.
func (c *FeeConfig) EffectiveRate(member AccountID) int64 {
	override, ok := c.MemberRates[member]
	if !ok {
		return c.TargetFeeRate
	}
	return c.TargetFeeRate * override / MaxRatePPM
}

// ─── Denomination ───────────────────────────────────────────────────────────

// Denomination scales amounts between the ledger's unit precision and the
// reserve asset's unit precision.
type Denomination struct {
	LedgerDecimals  int32 `json:"ledger_decimals"`
	ReserveDecimals int32 `json:"reserve_decimals"`
}

// ToReserve converts a ledger-denominated amount into reserve units, applying
// the oracle price multiplier (pass decimal 1 if unset).
func (d Denomination) ToReserve(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Shift(d.ReserveDecimals - d.LedgerDecimals).Mul(rate)
}
