package broker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the broker's operational state as Prometheus counters, a
// gauge and a histogram, ambient observability this system's Non-goals never
// excluded (they scope out fuzzing-strategy and crash-dedup breadth, not
// operational metrics).
type Metrics struct {
	registry *prometheus.Registry

	testsDelivered *prometheus.CounterVec
	resultsWritten prometheus.Counter
	shedding       prometheus.Gauge
	ackLatency     prometheus.Histogram
}

// NewMetrics builds a Metrics instance registered against reg. A nil reg
// creates a private registry (used when the caller only wants the
// counters, not the HTTP endpoint).
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		testsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuzzbroker_tests_delivered_total",
			Help: "Test cases delivered to a worker, by queue.",
		}, []string{"queue"}),
		resultsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuzzbroker_results_written_total",
			Help: "Results durably persisted to the result store.",
		}),
		shedding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fuzzbroker_queue_shedding",
			Help: "1 when the broker is shedding (pending result-store queue over dbq_max), else 0.",
		}),
		ackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fuzzbroker_ack_round_trip_seconds",
			Help:    "Time from delivering a test to receiving the worker's ack.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.testsDelivered, m.resultsWritten, m.shedding, m.ackLatency)
	return m
}

// TestDelivered records one test handed to a worker on the named queue.
func (m *Metrics) TestDelivered(queue string) {
	if m == nil {
		return
	}
	m.testsDelivered.WithLabelValues(queue).Inc()
}

// ResultRecorded records one result durably written to the store.
func (m *Metrics) ResultRecorded() {
	if m == nil {
		return
	}
	m.resultsWritten.Inc()
}

// SetShedding updates the queue-shedding gauge.
func (m *Metrics) SetShedding(on bool) {
	if m == nil {
		return
	}
	if on {
		m.shedding.Set(1)
	} else {
		m.shedding.Set(0)
	}
}

// ObserveAckLatency records the time between delivery and ack for one test.
func (m *Metrics) ObserveAckLatency(seconds float64) {
	if m == nil {
		return
	}
	m.ackLatency.Observe(seconds)
}

// Handler returns the HTTP handler exposition for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
