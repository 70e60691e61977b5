package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTurnMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTurnMetrics(reg)

	m.ObserveTurn("request_invoice", 0.25)
	m.ObserveTurn("request_invoice", 0.5)
	m.ObserveGate("replay")
	m.ObserveClassification("canned")
	m.ObserveReplay()
	m.ObserveReceipt("matched", "issued")
	m.ObserveInbound("processed")

	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("request_invoice")); got != 2 {
		t.Fatalf("turns_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.replayTotal); got != 1 {
		t.Fatalf("replays_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.receiptsTotal.WithLabelValues("matched", "issued")); got != 1 {
		t.Fatalf("receipts_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.turnLatency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}
}

func TestTurnMetricsNilSafe(t *testing.T) {
	var m *TurnMetrics
	m.ObserveTurn("other", 0.1)
	m.ObserveGate("proceed")
	m.ObserveClassification("model")
	m.ObserveReplay()
	m.ObserveReceipt("underpaid", "skipped")
	m.ObserveInbound("duplicate")
}
