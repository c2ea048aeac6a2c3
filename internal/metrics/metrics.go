// Package metrics provides Prometheus instrumentation for audits.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

const (
	// Namespace is the namespace for all uicheck metrics.
	Namespace = "uicheck"

	subsystemAudit = "audit"
	subsystemScan  = "scan"
)

// Page outcomes.
const (
	OutcomeClean     = "clean"
	OutcomeViolation = "violation"
	OutcomeNavError  = "navigation_error"
)

// Metrics holds all uicheck Prometheus metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RunsTotal        prometheus.Counter
	RunsFailed       prometheus.Counter
	PagesTotal       *prometheus.CounterVec
	ViolationsTotal  *prometheus.CounterVec
	PageDuration     prometheus.Histogram
	PagesInFlight    prometheus.Gauge
	TabbablePerPage  prometheus.Histogram
	FocusablePerPage prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on reg. A nil reg uses a fresh
// private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{gatherer: reg}

	m.RunsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemAudit,
		Name:      "runs_total",
		Help:      "Total number of audit runs",
	})
	m.RunsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemAudit,
		Name:      "runs_failed_total",
		Help:      "Audit runs with at least one error-severity violation",
	})
	m.PagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemAudit,
		Name:      "pages_total",
		Help:      "Pages audited by outcome",
	}, []string{"outcome"})
	m.ViolationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemAudit,
		Name:      "violations_total",
		Help:      "Violations found by check and severity",
	}, []string{"check", "severity"})
	m.PageDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystemAudit,
		Name:      "page_duration_seconds",
		Help:      "Time to load and check a single page",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	m.PagesInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystemAudit,
		Name:      "pages_in_flight",
		Help:      "Pages currently loading or being checked",
	})
	m.TabbablePerPage = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystemScan,
		Name:      "tabbable_elements",
		Help:      "Tabbable elements found per page",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	m.FocusablePerPage = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystemScan,
		Name:      "focusable_elements",
		Help:      "Visible focusable elements found per page",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// PageStarted marks a page as in flight.
func (m *Metrics) PageStarted() {
	if m == nil {
		return
	}
	m.PagesInFlight.Inc()
}

// RecordPage records a finished page. navErr is true when the page could
// not be loaded.
func (m *Metrics) RecordPage(p *report.PageResult, navErr bool, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesInFlight.Dec()
	m.PageDuration.Observe(d.Seconds())

	outcome := OutcomeClean
	switch {
	case navErr:
		outcome = OutcomeNavError
	case p.Errors() > 0:
		outcome = OutcomeViolation
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()

	for _, v := range p.Violations {
		m.ViolationsTotal.WithLabelValues(string(v.Check), string(v.Severity)).Inc()
	}
	if !navErr {
		m.TabbablePerPage.Observe(float64(len(p.Tabbable)))
		m.FocusablePerPage.Observe(float64(len(p.Focusable)))
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(r *report.Run) {
	if m == nil {
		return
	}
	m.RunsTotal.Inc()
	if r.Failed() {
		m.RunsFailed.Inc()
	}
}
