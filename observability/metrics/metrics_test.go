package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerRecordExecution(t *testing.T) {
	m := Ledger()
	if Ledger() != m {
		t.Fatalf("expected singleton registry")
	}
	before := testutil.ToFloat64(m.Executions().WithLabelValues("metrics-test", "ok"))
	m.RecordExecution("metrics-test", "ok", time.Millisecond)
	m.RecordExecution("metrics-test", "ok", 2*time.Millisecond)
	if got := testutil.ToFloat64(m.Executions().WithLabelValues("metrics-test", "ok")); got != before+2 {
		t.Fatalf("unexpected execution count %v", got)
	}
}

func TestCardCounters(t *testing.T) {
	m := Card()
	m.ObserveInstruction("settle", "ok")
	m.ObserveTransition("settled")
	m.ObserveReceipt("deposit")
	m.ObserveFee("withdraw", 6000)
	m.ObserveFee("withdraw", 0)

	if got := testutil.ToFloat64(m.InstructionCounter().WithLabelValues("settle", "ok")); got < 1 {
		t.Fatalf("instruction not counted")
	}
	if got := testutil.ToFloat64(m.TransitionCounter().WithLabelValues("settled")); got < 1 {
		t.Fatalf("transition not counted")
	}
	if got := testutil.ToFloat64(m.ReceiptCounter().WithLabelValues("deposit")); got < 1 {
		t.Fatalf("receipt not counted")
	}
	if got := testutil.ToFloat64(m.FeeCounter().WithLabelValues("withdraw")); got < 6000 {
		t.Fatalf("fee not accumulated: %v", got)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var ledger *LedgerMetrics
	ledger.RecordExecution("x", "ok", time.Second)
	var card *CardMetrics
	card.ObserveInstruction("x", "ok")
	card.ObserveFee("x", 1)
}
