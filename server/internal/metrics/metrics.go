// Package metrics exposes the server's Prometheus collectors and the
// listener that serves them.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

const namespace = "efficiency"

// Metrics holds the server collectors.
type Metrics struct {
	evaluations prometheus.Counter
	failures    prometheus.Counter
	fallbacks   prometheus.Counter
	score       prometheus.Histogram
	status      *prometheus.CounterVec
	importRows  *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Number of successful efficiency evaluations.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_failures_total",
			Help:      "Number of evaluations rejected or failed.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_fallbacks_total",
			Help:      "Number of evaluations where no rule fired.",
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of efficiency scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		}),
		status: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_total",
			Help:      "Evaluations by efficiency status.",
		}, []string{"status"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "CSV import rows by result.",
		}, []string{"result"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(m.evaluations, m.failures, m.fallbacks, m.score, m.status, m.importRows, m.httpReqs)

	for _, st := range types.Statuses {
		m.status.WithLabelValues(string(st))
	}
	return m
}

// ObserveEvaluation records one successful evaluation.
func (m *Metrics) ObserveEvaluation(ev fuzzy.Evaluation) {
	m.evaluations.Inc()
	m.score.Observe(ev.Score)
	m.status.WithLabelValues(string(ev.Status)).Inc()
	if ev.Fallback {
		m.fallbacks.Inc()
	}
}

// ObserveFailure records one evaluation that returned an error.
func (m *Metrics) ObserveFailure() {
	m.failures.Inc()
}

// ObserveImport records the outcome of a CSV import.
func (m *Metrics) ObserveImport(imported, failed int) {
	m.importRows.WithLabelValues("imported").Add(float64(imported))
	m.importRows.WithLabelValues("failed").Add(float64(failed))
}

// ObserveHTTP records one REST request.
func (m *Metrics) ObserveHTTP(route string, code int) {
	m.httpReqs.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
