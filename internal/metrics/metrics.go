// Package metrics exposes Prometheus metrics for receipt audits.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for processed receipts.
const (
	StatusApproved  = "approved"
	StatusFlagged   = "flagged"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// AuditMetrics holds the receipt audit collectors on a private registry.
type AuditMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	flagTotal       *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
}

// NewAuditMetrics creates and registers the audit collectors.
func NewAuditMetrics() *AuditMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auditor",
			Name:      "receipts_processed_total",
			Help:      "Total processed receipts by outcome.",
		},
		[]string{"status"},
	)
	flagTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auditor",
			Name:      "receipt_flags_total",
			Help:      "Total risk flags raised by flag.",
		},
		[]string{"flag"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "auditor",
			Name:      "receipt_process_duration_seconds",
			Help:      "Receipt processing duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "auditor",
			Name:      "receipt_process_in_flight",
			Help:      "Number of receipts currently being processed.",
		},
	)

	registry.MustRegister(processTotal, flagTotal, processDuration, processInFlight)

	return &AuditMetrics{
		registry:        registry,
		processTotal:    processTotal,
		flagTotal:       flagTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *AuditMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *AuditMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartReceipt marks one receipt in flight. Pair it with FinishReceipt.
func (m *AuditMetrics) StartReceipt() {
	m.processInFlight.Inc()
}

// FinishReceipt records one processed receipt. status is one of the Status
// constants; flags are the raised risk flags, if any.
func (m *AuditMetrics) FinishReceipt(status string, duration time.Duration, flags []string) {
	m.processInFlight.Dec()

	m.processTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(duration.Seconds())
	for _, f := range flags {
		if f == "NONE" {
			continue
		}
		m.flagTotal.WithLabelValues(f).Inc()
	}
}
