package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.
// All of these reject before any state change; partial mutations never leak.

var (
	// Ledger errors
	ErrInsufficientCredit  = errors.New("insufficient credit for transfer")
	ErrCreditLimitOverflow = errors.New("credit limit exceeds maximum storable limit")
	ErrLimitBelowDebt      = errors.New("credit limit below outstanding credit balance")
	ErrUnknownAccount      = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrReservedAccount     = errors.New("operation not permitted on the network debt account")

	// Fee errors
	ErrInvalidRate = errors.New("fee rate exceeds 1,000,000 ppm")

	// Reserve errors
	ErrInsufficientExcess     = errors.New("withdrawal exceeds excess reserve balance")
	ErrInsufficientCollateral = errors.New("insufficient collateral balance")

	// Authorization errors
	ErrNotMember     = errors.New("account is not a recognized member")
	ErrNotAuthorized = errors.New("caller lacks the required role")

	// Issuer errors
	ErrPeriodExists = errors.New("account already has an open credit period")
	ErrNoPeriod     = errors.New("account has no credit period")
)
