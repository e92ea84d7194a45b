package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/edr-dev/edr/metrics"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("edr_test", reg)

	m.RequestTotal.WithLabelValues("eth_call", "ok").Inc()
	m.ForkCacheHits.Inc()
	m.BlockGasUsed.Observe(21000)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "edr_test_rpc_requests_total" {
			found = true
			if len(f.Metric) != 1 {
				t.Fatalf("expected 1 label combination recorded, got %d", len(f.Metric))
			}
			if got := f.Metric[0].Counter.GetValue(); got != 1 {
				t.Fatalf("counter value = %v, want 1", got)
			}
		}
	}
	if !found {
		t.Fatal("expected edr_test_rpc_requests_total to be registered")
	}
}

func TestNewWithNilRegistererStillUpdates(t *testing.T) {
	m := metrics.New("edr_test2", nil)
	m.ForkCacheMisses.Inc()

	var out dto.Metric
	if err := m.ForkCacheMisses.Write(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.Counter.GetValue() != 1 {
		t.Fatalf("counter value = %v, want 1", out.Counter.GetValue())
	}
}
