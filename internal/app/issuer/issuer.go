// Package issuer implements the per-account underwriting period state machine
// that gates ledger transfers.
//
// States are derived lazily from stored timestamps — there are no timers. An
// account with no period is never gated. An expired period is resolved on the
// next transfer validation or explicit sync: a compliant account is silently
// renewed (the period record is deleted, re-issuable under fresh terms), a
// non-compliant one defaults — its debt is written off to the network debt
// account, its limit zeroed, and its membership revoked.
//
// A keeper must periodically call SyncAll for accounts with no organic
// transfer activity, or expired defaults remain undetected indefinitely.
package issuer

import (
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/ledger"
	"github.com/crediton-network/crediton/internal/domain"
)

// Outcome reports what a lazy evaluation did to a period.
type Outcome int

const (
	// OutcomeNone: the period did not change.
	OutcomeNone Outcome = iota
	// OutcomeRenewed: the period expired compliant and was retired.
	OutcomeRenewed
	// OutcomeDefaulted: the period expired non-compliant; debt written off.
	OutcomeDefaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRenewed:
		return "RENEWED"
	case OutcomeDefaulted:
		return "DEFAULTED"
	default:
		return "NONE"
	}
}

// Issuer owns every CreditPeriod record. It reads ledger balances only
// through the ledger's entry points and mutates them only via WriteOff.
type Issuer struct {
	mu         sync.Mutex
	periods    map[domain.AccountID]*domain.CreditPeriod
	ledger     *ledger.Ledger
	access     domain.AccessPolicy
	compliance domain.CompliancePolicy
	now        func() time.Time

	onDefault func(id domain.AccountID, writtenOff decimal.Decimal)
	onRenewal func(id domain.AccountID)
}

// New creates an issuer over the given ledger and access policy. A nil
// compliance policy selects ZeroDebtCompliance.
func New(l *ledger.Ledger, access domain.AccessPolicy, compliance domain.CompliancePolicy) *Issuer {
	if compliance == nil {
		compliance = domain.ZeroDebtCompliance{}
	}
	return &Issuer{
		periods:    make(map[domain.AccountID]*domain.CreditPeriod),
		ledger:     l,
		access:     access,
		compliance: compliance,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (i *Issuer) SetClock(now func() time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.now = now
}

// OnDefault registers a callback fired after a default write-off.
func (i *Issuer) OnDefault(fn func(id domain.AccountID, writtenOff decimal.Decimal)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onDefault = fn
}

// OnRenewal registers a callback fired after a silent renewal.
func (i *Issuer) OnRenewal(fn func(id domain.AccountID)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onRenewal = fn
}

// ─── Credit Line Issuance ───────────────────────────────────────────────────

// InitializeCreditLine opens a credit period for the account, sets its ledger
// credit limit, and optionally mints an initial balance recorded as network
// debt. Fails if the account already has an open period.
func (i *Issuer) InitializeCreditLine(id domain.AccountID, limit, initialBalance decimal.Decimal, periodLength, graceLength time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if id.IsNetworkDebt() {
		return domain.ErrReservedAccount
	}
	if _, ok := i.periods[id]; ok {
		return domain.ErrPeriodExists
	}
	if err := i.ledger.SetCreditLimit(id, limit); err != nil {
		return err
	}
	if initialBalance.IsPositive() {
		if err := i.ledger.MintNetworkDebt(id, initialBalance); err != nil {
			return err
		}
	}

	issued := i.now()
	i.periods[id] = &domain.CreditPeriod{
		AccountID:        id,
		IssuedAt:         issued,
		PeriodExpiration: issued.Add(periodLength),
		GraceLength:      graceLength,
	}
	return nil
}

// ─── Transfer Gating ────────────────────────────────────────────────────────

// ValidateTransaction is called before every mutating transfer and reports
// whether the ledger mutation should proceed. Only the sender is gated.
// Returning false is not an error: the transfer is silently voided.
func (i *Issuer) ValidateTransaction(from, to domain.AccountID, amount decimal.Decimal) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	ok, _ := i.evaluate(from)
	return ok
}

// SyncCreditPeriod performs the expiration evaluation without a transfer,
// for external keep-alive callers. Returns what the evaluation did.
func (i *Issuer) SyncCreditPeriod(id domain.AccountID) Outcome {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, outcome := i.evaluate(id)
	return outcome
}

// SyncAll runs the keeper pass over every account with an open period and
// returns the per-account outcomes of the evaluations that changed state.
func (i *Issuer) SyncAll() map[domain.AccountID]Outcome {
	i.mu.Lock()
	ids := make([]domain.AccountID, 0, len(i.periods))
	for id := range i.periods {
		ids = append(ids, id)
	}
	i.mu.Unlock()

	out := make(map[domain.AccountID]Outcome)
	for _, id := range ids {
		if o := i.SyncCreditPeriod(id); o != OutcomeNone {
			out[id] = o
		}
	}
	return out
}

// evaluate resolves the account's period state at the current instant.
// Caller holds i.mu. Reports whether a transfer initiated by the account may
// mutate the ledger, and the lifecycle outcome if the period was resolved.
func (i *Issuer) evaluate(id domain.AccountID) (bool, Outcome) {
	p, ok := i.periods[id]
	if !ok {
		// Uninitialized (or already defaulted): never gated. Makes default
		// handling idempotent — re-evaluating a defaulted account is a no-op.
		return true, OutcomeNone
	}

	switch p.StateAt(i.now()) {
	case domain.PeriodActive:
		return true, OutcomeNone

	case domain.PeriodGrace:
		if i.compliant(id) {
			return true, OutcomeNone
		}
		// Frozen: the mutation is withheld but not reported as an error.
		return false, OutcomeNone

	default: // PeriodExpired
		if i.compliant(id) {
			delete(i.periods, id)
			log.Printf("[issuer] period for %s expired compliant, renewed", id)
			if i.onRenewal != nil {
				i.onRenewal(id)
			}
			return true, OutcomeRenewed
		}
		i.defaultAccount(id)
		return false, OutcomeDefaulted
	}
}

// defaultAccount performs the terminal default transition: write off debt to
// the network debt account, zero the limit, revoke membership, delete the
// period. Caller holds i.mu.
func (i *Issuer) defaultAccount(id domain.AccountID) {
	written, err := i.ledger.WriteOff(id)
	if err != nil {
		log.Printf("[issuer] write-off for %s failed: %v", id, err)
		return
	}
	if err := i.access.RevokeMember(id); err != nil {
		log.Printf("[issuer] revoking membership for %s failed: %v", id, err)
	}
	delete(i.periods, id)
	log.Printf("[issuer] account %s defaulted, wrote off %s", id, written)
	if i.onDefault != nil {
		i.onDefault(id, written)
	}
}

func (i *Issuer) compliant(id domain.AccountID) bool {
	acct := i.ledger.Account(id)
	if acct == nil {
		return false
	}
	return i.compliance.Compliant(acct)
}

// ─── Pause ──────────────────────────────────────────────────────────────────

// SetPaused suspends (or resumes) lifecycle evaluation for an account. While
// paused, any transfer is treated as Active regardless of elapsed time. The
// stored timestamps are not modified.
func (i *Issuer) SetPaused(id domain.AccountID, paused bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	p, ok := i.periods[id]
	if !ok {
		return domain.ErrNoPeriod
	}
	p.Paused = paused
	return nil
}

// ─── Views ──────────────────────────────────────────────────────────────────

// PeriodOf returns a copy of the account's credit period, or nil.
func (i *Issuer) PeriodOf(id domain.AccountID) *domain.CreditPeriod {
	i.mu.Lock()
	defer i.mu.Unlock()
	if p, ok := i.periods[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// StateOf returns the period state at the current instant without resolving
// it. The second return is false when the account has no period.
func (i *Issuer) StateOf(id domain.AccountID) (domain.PeriodState, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	p, ok := i.periods[id]
	if !ok {
		return 0, false
	}
	return p.StateAt(i.now()), true
}

// Compliant reports the account's standing under the configured policy.
func (i *Issuer) Compliant(id domain.AccountID) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.compliant(id)
}

// Periods returns copies of every open credit period.
func (i *Issuer) Periods() []domain.CreditPeriod {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]domain.CreditPeriod, 0, len(i.periods))
	for _, p := range i.periods {
		out = append(out, *p)
	}
	return out
}

// Restore reinstates a period record, used when reloading a snapshot.
func (i *Issuer) Restore(p domain.CreditPeriod) {
	i.mu.Lock()
	defer i.mu.Unlock()
	cp := p
	i.periods[p.AccountID] = &cp
}
