package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FetchMetrics contains Prometheus metrics for message pagination.
type FetchMetrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	BatchSize    *prometheus.HistogramVec
	InFlight     *prometheus.GaugeVec
	SkippedLoads *prometheus.CounterVec
	StaleResults prometheus.Counter
	ListMessages *prometheus.GaugeVec
}

// NewFetchMetrics creates and registers fetch metrics with the registerer.
func NewFetchMetrics(registerer prometheus.Registerer) *FetchMetrics {
	m := &FetchMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zfetch_fetch_requests_total",
				Help: "Message range requests by direction and outcome",
			},
			[]string{"direction", "result"}, // result: success/error/bad_request
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zfetch_fetch_duration_seconds",
				Help:    "Round trip time of message range requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		BatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zfetch_fetch_batch_messages",
				Help:    "Messages returned per request",
				Buckets: []float64{0, 1, 10, 50, 100, 200, 400, 1000, 2000},
			},
			[]string{"direction"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zfetch_fetch_in_flight",
				Help: "Requests currently outstanding",
			},
			[]string{"direction"},
		),
		SkippedLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zfetch_fetch_skipped_total",
				Help: "Load calls ignored because a batch was in flight or the boundary was known",
			},
			[]string{"direction"},
		),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zfetch_fetch_stale_results_total",
			Help: "Results dropped because their narrowed list was no longer current",
		}),
		ListMessages: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zfetch_list_messages",
				Help: "Messages held per list",
			},
			[]string{"list"},
		),
	}

	registerer.MustRegister(
		m.Requests,
		m.Duration,
		m.BatchSize,
		m.InFlight,
		m.SkippedLoads,
		m.StaleResults,
		m.ListMessages,
	)
	return m
}

// RegisterBusDrops exports the bus drop counter.
func RegisterBusDrops(registerer prometheus.Registerer, dropped func() uint64) {
	registerer.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "zfetch_bus_dropped_events_total",
			Help: "Events not delivered because a subscriber was full",
		},
		func() float64 { return float64(dropped()) },
	))
}
