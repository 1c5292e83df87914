// Package metrics exposes ledger outcomes as Prometheus series.
package metrics

import (
	"wallet-ledger/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the ledger and redemption counters.
const (
	OutcomeApplied  = "applied"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder implements ports.MetricsRecorder.
type Recorder struct {
	transactions *prometheus.CounterVec
	amounts      *prometheus.CounterVec
	redemptions  *prometheus.CounterVec
	retries      *prometheus.CounterVec
}

// NewRecorder registers the ledger series on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Ledger transaction attempts by type and outcome.",
		}, []string{"type", "outcome"}),
		amounts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Subsystem: "ledger",
			Name:      "amount_minor_total",
			Help:      "Sum of applied transaction amounts in minor units, by type.",
		}, []string{"type"}),
		redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Subsystem: "certificates",
			Name:      "redemptions_total",
			Help:      "Gift certificate redemption attempts by outcome.",
		}, []string{"outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Subsystem: "storage",
			Name:      "retries_total",
			Help:      "Units of work re-executed after a concurrency conflict.",
		}, []string{"operation"}),
	}
}

func (r *Recorder) ObserveTransaction(txType domain.TransactionType, outcome string, amount int64) {
	r.transactions.WithLabelValues(string(txType), outcome).Inc()
	if outcome == OutcomeApplied && amount > 0 {
		r.amounts.WithLabelValues(string(txType)).Add(float64(amount))
	}
}

func (r *Recorder) ObserveRedemption(outcome string) {
	r.redemptions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveRetry(operation string) {
	r.retries.WithLabelValues(operation).Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveTransaction(domain.TransactionType, string, int64) {}
func (Nop) ObserveRedemption(string)                                 {}
func (Nop) ObserveRetry(string)                                      {}
