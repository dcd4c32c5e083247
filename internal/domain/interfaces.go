package domain

import "github.com/shopspring/decimal"

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces define boundaries to the external collaborators the core
// depends on. Infrastructure (or the embedding application) implements them;
// the core consumes them by reference, never by inheritance.

// AccessPolicy answers role questions and manages member standing.
type AccessPolicy interface {
	IsAdmin(id AccountID) bool
	IsOperator(id AccountID) bool
	IsMember(id AccountID) bool
	IsIssuer(id AccountID) bool

	GrantMember(id AccountID) error
	// RevokeMember removes an account's standing, invoked on default.
	RevokeMember(id AccountID) error
}

// SettlementAsset moves the underlying collateral asset. The core only ever
// pulls from a payer or pushes to a recipient; custody is the asset's problem.
type SettlementAsset interface {
	PullFrom(from AccountID, amount decimal.Decimal) error
	PushTo(to AccountID, amount decimal.Decimal) error
	Allowance(owner AccountID) decimal.Decimal
}

// RiskOracle supplies the target collateralization ratio and the price
// multiplier between ledger units and reserve units.
type RiskOracle interface {
	TargetRTD() decimal.Decimal
	ConversionRate() decimal.Decimal
	Quote(assetIn, assetOut string, amount decimal.Decimal) (decimal.Decimal, error)
}

// CompliancePolicy decides whether an account is in good standing for
// grace/expiry evaluation. Selected at construction, not subclassed.
type CompliancePolicy interface {
	Compliant(a *Account) bool
}

// ZeroDebtCompliance is the default policy: compliant means no outstanding
// credit balance.
type ZeroDebtCompliance struct{}

// Compliant reports whether the account's credit balance is zero.
func (ZeroDebtCompliance) Compliant(a *Account) bool {
	return a.CreditBalance.IsZero()
}
