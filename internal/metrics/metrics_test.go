package metrics_test

import (
	"strings"
	"testing"

	"github.com/matheus3301/zfetch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFetchMetrics_Registration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewFetchMetrics(registry)

	if m.Requests == nil || m.Duration == nil || m.BatchSize == nil {
		t.Fatal("request metrics not initialized")
	}
	if m.InFlight == nil || m.SkippedLoads == nil || m.StaleResults == nil || m.ListMessages == nil {
		t.Fatal("state metrics not initialized")
	}

	m.InFlight.WithLabelValues("newer").Inc()
	if got := testutil.ToFloat64(m.InFlight.WithLabelValues("newer")); got != 1 {
		t.Errorf("InFlight(newer) = %v, want 1", got)
	}
}

func TestFetchMetrics_CounterIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewFetchMetrics(registry)

	m.Requests.WithLabelValues("older", "success").Inc()
	m.Requests.WithLabelValues("older", "success").Inc()
	m.Requests.WithLabelValues("older", "error").Inc()

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("older", "success")); got != 2 {
		t.Errorf("Requests(older, success) = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("older", "error")); got != 1 {
		t.Errorf("Requests(older, error) = %v, want 1", got)
	}
}

func TestFetchMetrics_DoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics.NewFetchMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry should panic")
		}
	}()
	metrics.NewFetchMetrics(registry)
}

func TestRegisterBusDrops(t *testing.T) {
	registry := prometheus.NewRegistry()
	var dropped uint64 = 3
	metrics.RegisterBusDrops(registry, func() uint64 { return dropped })

	expected := `
# HELP zfetch_bus_dropped_events_total Events not delivered because a subscriber was full
# TYPE zfetch_bus_dropped_events_total counter
zfetch_bus_dropped_events_total 3
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "zfetch_bus_dropped_events_total"); err != nil {
		t.Error(err)
	}
}
