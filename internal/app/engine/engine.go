// Package engine composes the ledger, credit issuer, fee manager, and
// assurance pool into the atomic "move value from A to B" operation.
//
// The pipeline per transfer is fixed:
//
//  1. access check on both parties
//  2. fee collection, before credit validation: a transfer later voided for
//     a frozen sender still pays a non-refundable fee
//  3. credit validation (may lazily resolve an expired period)
//  4. ledger mutation
//  5. compliance snapshot events for both accounts
//
// The engine is a single-writer state machine: one mutex serializes every
// mutating operation, so no two mutations on overlapping state interleave.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/app/assurance"
	"github.com/crediton-network/crediton/internal/app/fees"
	"github.com/crediton-network/crediton/internal/app/issuer"
	"github.com/crediton-network/crediton/internal/app/ledger"
	"github.com/crediton-network/crediton/internal/domain"
	"github.com/crediton-network/crediton/internal/infra/observability"
)

const maxEvents = 10_000

// Engine is the transfer orchestrator and the authoritative entry point for
// every mutating operation.
type Engine struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	issuer *issuer.Issuer
	fees   *fees.Manager
	pool   *assurance.Pool
	access domain.AccessPolicy

	evMu   sync.Mutex
	events []domain.CreditEvent // ring buffer, newest last
}

// New wires an engine over already-constructed components. Issuer lifecycle
// callbacks are claimed by the engine for event and metric emission.
func New(l *ledger.Ledger, i *issuer.Issuer, f *fees.Manager, p *assurance.Pool, access domain.AccessPolicy) *Engine {
	e := &Engine{
		ledger: l,
		issuer: i,
		fees:   f,
		pool:   p,
		access: access,
	}
	i.OnDefault(func(id domain.AccountID, written decimal.Decimal) {
		observability.DefaultsTotal.Inc()
		observability.WrittenOffDebt.Add(toFloat(written))
		e.emit(domain.EventDefault, id, domain.NetworkDebtAccountID, written)
	})
	i.OnRenewal(func(id domain.AccountID) {
		observability.RenewalsTotal.Inc()
		e.emit(domain.EventPeriodRenewed, id, "", decimal.Zero)
	})
	return e
}

// Ledger returns the underlying balance book, for views.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Issuer returns the underlying credit issuer, for views.
func (e *Engine) Issuer() *issuer.Issuer { return e.issuer }

// Fees returns the underlying fee manager, for views.
func (e *Engine) Fees() *fees.Manager { return e.fees }

// Pool returns the underlying assurance pool, for views.
func (e *Engine) Pool() *assurance.Pool { return e.pool }

// ─── Transfer Pipeline ──────────────────────────────────────────────────────

// Transfer runs the full pipeline. A voided transfer (frozen sender) returns
// a receipt with Voided set and a nil error; the fee is not refunded.
func (e *Engine) Transfer(from, to domain.AccountID, amount decimal.Decimal) (*domain.TransferReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Both parties must be recognized participants.
	if !e.access.IsMember(from) {
		observability.TransfersRejected.WithLabelValues("sender_not_member").Inc()
		return nil, domain.ErrNotMember
	}
	if !to.IsNetworkDebt() && !e.access.IsMember(to) {
		observability.TransfersRejected.WithLabelValues("receiver_not_member").Inc()
		return nil, domain.ErrNotMember
	}

	// 2. Fee collection, unconditionally before validation.
	fee, err := e.fees.CollectFees(from, to, amount)
	if err != nil {
		observability.TransfersRejected.WithLabelValues("fee_collection").Inc()
		return nil, err
	}
	if fee.IsPositive() {
		observability.FeesCollected.Add(toFloat(fee))
		e.emit(domain.EventFeeCollected, from, to, fee)
	}

	// 3. Credit validation. False is a silent void, not an error.
	if !e.issuer.ValidateTransaction(from, to, amount) {
		observability.TransfersVoided.Inc()
		e.emit(domain.EventTransferVoided, from, to, amount)
		receipt := e.receipt(from, to, amount, fee, true)
		return receipt, nil
	}

	// 4. Ledger mutation.
	if err := e.ledger.Transfer(from, to, amount); err != nil {
		observability.TransfersRejected.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}
	observability.TransfersTotal.Inc()
	e.emit(domain.EventTransfer, from, to, amount)

	// 5. Post-mutation compliance snapshot for both accounts.
	e.updateGauges()
	return e.receipt(from, to, amount, fee, false), nil
}

func (e *Engine) receipt(from, to domain.AccountID, amount, fee decimal.Decimal, voided bool) *domain.TransferReceipt {
	return &domain.TransferReceipt{
		From:     from,
		To:       to,
		Amount:   amount,
		Fee:      fee,
		Voided:   voided,
		Sender:   e.snapshot(from),
		Receiver: e.snapshot(to),
	}
}

func (e *Engine) snapshot(id domain.AccountID) domain.ComplianceSnapshot {
	return domain.ComplianceSnapshot{
		Account:       id,
		Compliant:     e.issuer.Compliant(id),
		CreditBalance: e.ledger.CreditBalanceOf(id),
	}
}

func rejectionReason(err error) string {
	switch err {
	case domain.ErrInsufficientCredit:
		return "insufficient_credit"
	case domain.ErrUnknownAccount:
		return "unknown_account"
	case domain.ErrNonPositiveAmount:
		return "non_positive_amount"
	default:
		return "other"
	}
}

// ─── Administrative Operations ──────────────────────────────────────────────

// OpenAccount registers a member account in the ledger. Caller must be a
// recognized admin or issuer.
func (e *Engine) OpenAccount(caller, id domain.AccountID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsAdmin(caller) && !e.access.IsIssuer(caller) {
		return domain.ErrNotAuthorized
	}
	if err := e.ledger.CreateAccount(id); err != nil {
		return err
	}
	return e.access.GrantMember(id)
}

// InitializeCreditLine opens an underwriting period for the account.
// Issuer-gated.
func (e *Engine) InitializeCreditLine(caller, id domain.AccountID, limit, initialBalance decimal.Decimal, periodLength, graceLength time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsIssuer(caller) {
		return domain.ErrNotAuthorized
	}
	if err := e.issuer.InitializeCreditLine(id, limit, initialBalance, periodLength, graceLength); err != nil {
		return err
	}
	e.emit(domain.EventCreditLineOpened, id, "", limit)
	e.updateGauges()
	return nil
}

// SetCreditLimit updates an account's credit limit. Admin-gated.
func (e *Engine) SetCreditLimit(caller, id domain.AccountID, limit decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsAdmin(caller) {
		return domain.ErrNotAuthorized
	}
	return e.ledger.SetCreditLimit(id, limit)
}

// SetPeriodPaused suspends or resumes lifecycle evaluation. Issuer-gated.
func (e *Engine) SetPeriodPaused(caller, id domain.AccountID, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsIssuer(caller) {
		return domain.ErrNotAuthorized
	}
	return e.issuer.SetPaused(id, paused)
}

// SyncCreditPeriod performs the keep-alive evaluation for one account.
func (e *Engine) SyncCreditPeriod(id domain.AccountID) issuer.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.issuer.SyncCreditPeriod(id)
	e.updateGauges()
	return out
}

// SyncAllPeriods runs the keeper pass over every open period.
func (e *Engine) SyncAllPeriods() map[domain.AccountID]issuer.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.issuer.SyncAll()
	e.updateGauges()
	return out
}

// ─── Reserve & Fee Operations ───────────────────────────────────────────────

// DepositReserve routes collateral into the pool after pulling it from the
// depositor via the settlement asset — the pool itself only does accounting.
func (e *Engine) DepositReserve(from domain.AccountID, amount decimal.Decimal, pull func(domain.AccountID, decimal.Decimal) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pull != nil {
		if err := pull(from, amount); err != nil {
			return err
		}
	}
	if err := e.pool.Deposit(amount); err != nil {
		return err
	}
	e.updateGauges()
	return nil
}

// Reimburse cascades a payout from the reserve. Never fails for
// insufficiency; returns what was actually paid.
func (e *Engine) Reimburse(account domain.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	paid, err := e.pool.Reimburse(account, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if paid.IsPositive() {
		observability.ReimbursementsTotal.Inc()
		e.emit(domain.EventReimbursement, account, "", paid)
	}
	e.updateGauges()
	return paid, nil
}

// WithdrawReserve removes excess collateral. Operator-gated.
func (e *Engine) WithdrawReserve(caller, to domain.AccountID, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsOperator(caller) {
		return domain.ErrNotAuthorized
	}
	if err := e.pool.Withdraw(to, amount); err != nil {
		return err
	}
	e.updateGauges()
	return nil
}

// SetTargetFeeRate updates the network-wide fee rate. Operator-gated.
func (e *Engine) SetTargetFeeRate(caller domain.AccountID, ratePPM int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsOperator(caller) {
		return domain.ErrNotAuthorized
	}
	return e.fees.SetTargetFeeRate(ratePPM)
}

// SetMemberFeeRate sets a per-member override multiplier. Operator-gated.
func (e *Engine) SetMemberFeeRate(caller, member domain.AccountID, ratePPM int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsOperator(caller) {
		return domain.ErrNotAuthorized
	}
	return e.fees.SetMemberFeeRate(member, ratePPM)
}

// SetFeesPaused halts or resumes fee collection. Operator-gated.
func (e *Engine) SetFeesPaused(caller domain.AccountID, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.access.IsOperator(caller) {
		return domain.ErrNotAuthorized
	}
	e.fees.SetPaused(paused)
	return nil
}

// DistributeFees flushes the fee accumulator into the assurance pool.
func (e *Engine) DistributeFees() (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	distributed, err := e.fees.DistributeFees()
	if err != nil {
		return decimal.Zero, err
	}
	if distributed.IsPositive() {
		observability.FeesDistributed.Add(toFloat(distributed))
		e.emit(domain.EventFeesDistributed, "", "", distributed)
	}
	e.updateGauges()
	return distributed, nil
}

// ─── Events ─────────────────────────────────────────────────────────────────

func (e *Engine) emit(typ domain.EventType, account, counterparty domain.AccountID, amount decimal.Decimal) {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	if len(e.events) >= maxEvents {
		e.events = e.events[1:]
	}
	e.events = append(e.events, domain.CreditEvent{
		ID:           uuid.NewString(),
		Type:         typ,
		Account:      account,
		Counterparty: counterparty,
		Amount:       amount,
		At:           time.Now(),
	})
}

// Events returns the most recent events, newest last.
func (e *Engine) Events(limit int) []domain.CreditEvent {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	if limit <= 0 || limit > len(e.events) {
		limit = len(e.events)
	}
	out := make([]domain.CreditEvent, limit)
	copy(out, e.events[len(e.events)-limit:])
	return out
}

// ─── Gauges ─────────────────────────────────────────────────────────────────

func (e *Engine) updateGauges() {
	observability.TotalSupply.Set(toFloat(e.ledger.TotalSupply()))
	observability.OutstandingDebt.Set(toFloat(e.ledger.TotalOutstandingDebt()))
	observability.ReserveRTD.Set(toFloat(e.pool.RTD()))
	r := e.pool.Reserve()
	observability.ReserveBalance.WithLabelValues("primary").Set(toFloat(r.Primary))
	observability.ReserveBalance.WithLabelValues("peripheral").Set(toFloat(r.Peripheral))
	observability.ReserveBalance.WithLabelValues("excess").Set(toFloat(r.Excess))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
