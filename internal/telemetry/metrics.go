package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation outcomes recorded by Metrics.
const (
	StatusOK           = "ok"
	StatusCompileError = "compile_error"
	StatusEvalError    = "eval_error"
)

// Metrics collects evaluation metrics on its own registry.
type Metrics struct {
	reg         *prometheus.Registry
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	requests    *prometheus.CounterVec
}

// NewMetrics creates a Metrics with a fresh registry, including the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calc",
			Name:      "evaluations_total",
			Help:      "Expressions evaluated, by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "calc",
			Name:      "evaluation_duration_seconds",
			Help:      "Time to compile and evaluate an expression.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calc",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by path and status code.",
		}, []string{"path", "code"}),
	}
	m.reg.MustRegister(
		m.evaluations,
		m.duration,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, s := range []string{StatusOK, StatusCompileError, StatusEvalError} {
		m.evaluations.WithLabelValues(s)
	}
	return m
}

// RecordEval records one evaluation with the given outcome and duration.
func (m *Metrics) RecordEval(status string, d time.Duration) {
	m.evaluations.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}

// RecordRequest records one HTTP response.
func (m *Metrics) RecordRequest(path, code string) {
	m.requests.WithLabelValues(path, code).Inc()
}

// Evaluations returns the counter for an outcome.
func (m *Metrics) Evaluations(status string) prometheus.Counter {
	return m.evaluations.WithLabelValues(status)
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
