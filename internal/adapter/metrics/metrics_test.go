package metrics

import (
	"testing"

	"wallet-ledger/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue returns the value of the series name{labels} gathered from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorder_ObserveTransaction(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveTransaction(domain.TransactionTypeTopUp, OutcomeApplied, 5000)
	r.ObserveTransaction(domain.TransactionTypeTopUp, OutcomeApplied, 2500)
	r.ObserveTransaction(domain.TransactionTypeTopUp, OutcomeReplayed, 2500)
	r.ObserveTransaction(domain.TransactionTypePayment, OutcomeRejected, 100)

	assert.Equal(t, 2.0, counterValue(t, reg, "wallet_ledger_ledger_transactions_total",
		map[string]string{"type": "top_up", "outcome": "applied"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "wallet_ledger_ledger_transactions_total",
		map[string]string{"type": "payment", "outcome": "rejected"}))
	assert.Equal(t, 7500.0, counterValue(t, reg, "wallet_ledger_ledger_amount_minor_total",
		map[string]string{"type": "top_up"}), "only applied amounts are summed")
}

func TestRecorder_RedemptionsAndRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveRedemption(OutcomeApplied)
	r.ObserveRedemption("GC_005")
	r.ObserveRetry("apply_transaction")
	r.ObserveRetry("apply_transaction")

	assert.Equal(t, 1.0, counterValue(t, reg, "wallet_ledger_certificates_redemptions_total",
		map[string]string{"outcome": "applied"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "wallet_ledger_storage_retries_total",
		map[string]string{"operation": "apply_transaction"}))
}

func TestNop(t *testing.T) {
	var n Nop
	assert.NotPanics(t, func() {
		n.ObserveTransaction(domain.TransactionTypeDebit, OutcomeFailed, 1)
		n.ObserveRedemption(OutcomeFailed)
		n.ObserveRetry("x")
	})
}
