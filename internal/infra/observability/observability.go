// Package observability exposes the Prometheus metric bundle for the credit
// engine: transfer throughput, voided/rejected counts, lifecycle events,
// reserve ratio, and fee flow.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Transfer Metrics ───────────────────────────────────────────────────────

// TransfersTotal counts completed ledger transfers.
var TransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "ledger",
	Name:      "transfers_total",
	Help:      "Total transfers that mutated the ledger.",
})

// TransfersVoided counts transfers withheld by a frozen sender.
var TransfersVoided = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "ledger",
	Name:      "transfers_voided_total",
	Help:      "Total transfers silently voided during the sender's grace freeze.",
})

// TransfersRejected counts transfers rejected before mutation, by reason.
var TransfersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "ledger",
	Name:      "transfers_rejected_total",
	Help:      "Total transfers rejected before any state change.",
}, []string{"reason"})

// TotalSupply tracks the circulating supply.
var TotalSupply = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crediton",
	Subsystem: "ledger",
	Name:      "total_supply",
	Help:      "Total units in circulation.",
})

// OutstandingDebt tracks the sum of all credit balances.
var OutstandingDebt = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crediton",
	Subsystem: "ledger",
	Name:      "outstanding_debt",
	Help:      "Total outstanding debt, the network debt account included.",
})

// ─── Credit Lifecycle Metrics ───────────────────────────────────────────────

// DefaultsTotal counts credit period defaults.
var DefaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "issuer",
	Name:      "defaults_total",
	Help:      "Total credit periods resolved as defaults.",
})

// RenewalsTotal counts silent compliant renewals.
var RenewalsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "issuer",
	Name:      "renewals_total",
	Help:      "Total credit periods retired compliant.",
})

// WrittenOffDebt accumulates debt moved to the network debt account.
var WrittenOffDebt = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "issuer",
	Name:      "written_off_debt_total",
	Help:      "Cumulative debt written off to the network debt account.",
})

// ─── Reserve Metrics ────────────────────────────────────────────────────────

// ReserveRTD tracks the current reserve-to-debt ratio.
var ReserveRTD = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crediton",
	Subsystem: "assurance",
	Name:      "rtd_ratio",
	Help:      "Primary reserve balance over converted outstanding debt.",
})

// ReserveBalance tracks each reserve bucket.
var ReserveBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "crediton",
	Subsystem: "assurance",
	Name:      "reserve_balance",
	Help:      "Reserve collateral by bucket.",
}, []string{"bucket"})

// ReimbursementsTotal counts reimbursement payouts.
var ReimbursementsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "assurance",
	Name:      "reimbursements_total",
	Help:      "Total reimbursement payouts from the reserve.",
})

// ─── Fee Metrics ────────────────────────────────────────────────────────────

// FeesCollected accumulates collected fees in reserve units.
var FeesCollected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "fees",
	Name:      "collected_total",
	Help:      "Cumulative fees pulled from senders.",
})

// FeesDistributed accumulates fees deposited into the assurance pool.
var FeesDistributed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediton",
	Subsystem: "fees",
	Name:      "distributed_total",
	Help:      "Cumulative fees routed into the assurance pool.",
})
