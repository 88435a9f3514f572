package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetPending(3)
	m.ResolveOutcome("timeout", 10*time.Millisecond)
	m.ResponseDropped("unmatched")
	m.WalletOp("transfer", nil)
	m.WalletOp("transfer", errors.New("x"))
	m.BalanceReconciled()

	if got := testutil.ToFloat64(m.pendingRequests); got != 3 {
		t.Fatalf("expected pending 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.resolveOutcomes.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected one timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.walletOps.WithLabelValues("transfer", "error")); got != 1 {
		t.Fatalf("expected one failed transfer, got %v", got)
	}
	if got := testutil.ToFloat64(m.reconciliations); got != 1 {
		t.Fatalf("expected one reconciliation, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetPending(1)
	m.ResolveOutcome("ok", time.Millisecond)
	m.ResponseDropped("malformed")
	m.WalletOp("deposit", nil)
	m.BalanceReconciled()
}
