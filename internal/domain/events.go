package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Lifecycle & Compliance Events ──────────────────────────────────────────
// Events are emitted by the engine after mutations. They are advisory:
// consumers (API feed, metrics, journal) never influence the state machine.

// EventType classifies a credit event.
type EventType string

const (
	EventTransfer         EventType = "TRANSFER"
	EventTransferVoided   EventType = "TRANSFER_VOIDED"
	EventCreditLineOpened EventType = "CREDIT_LINE_OPENED"
	EventPeriodRenewed    EventType = "PERIOD_RENEWED"
	EventDefault          EventType = "DEFAULT"
	EventFeeCollected     EventType = "FEE_COLLECTED"
	EventFeesDistributed  EventType = "FEES_DISTRIBUTED"
	EventReimbursement    EventType = "REIMBURSEMENT"
)

// CreditEvent is one entry in the engine's event feed.
type CreditEvent struct {
	ID           string          `json:"id"`
	Type         EventType       `json:"type"`
	Account      AccountID       `json:"account"`
	Counterparty AccountID       `json:"counterparty,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	At           time.Time       `json:"at"`
}

// ComplianceSnapshot captures an account's post-mutation standing.
type ComplianceSnapshot struct {
	Account       AccountID       `json:"account"`
	Compliant     bool            `json:"compliant"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// TransferReceipt summarizes one pass through the transfer pipeline.
// A voided transfer (frozen sender) is not an error: the fee was collected
// but the balance mutation was withheld.
type TransferReceipt struct {
	From     AccountID          `json:"from"`
	To       AccountID          `json:"to"`
	Amount   decimal.Decimal    `json:"amount"`
	Fee      decimal.Decimal    `json:"fee"`
	Voided   bool               `json:"voided"`
	Sender   ComplianceSnapshot `json:"sender"`
	Receiver ComplianceSnapshot `json:"receiver"`
}

// ─── Journal Types ──────────────────────────────────────────────────────────

// JournalKind classifies a row in the append-only credit journal.
type JournalKind string

const (
	JournalTransfer  JournalKind = "TRANSFER"
	JournalMint      JournalKind = "MINT"
	JournalBurn      JournalKind = "BURN"
	JournalWriteOff  JournalKind = "WRITE_OFF"
	JournalFee       JournalKind = "FEE"
	JournalReimburse JournalKind = "REIMBURSE"
)

// JournalEntry is a single immutable row recording a balance mutation.
type JournalEntry struct {
	ID     string          `json:"id"`
	Kind   JournalKind     `json:"kind"`
	From   AccountID       `json:"from,omitempty"`
	To     AccountID       `json:"to,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"at"`
}
