package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "finxan"

const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// IngestMetrics counts parse and sync outcomes per source type.
type IngestMetrics struct {
	outcomes *prometheus.CounterVec
	rows     *prometheus.CounterVec
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_outcomes_total",
		Help:      "Source ingestion attempts by source type and outcome.",
	}, []string{"source_type", "outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rows_total",
		Help:      "Rows normalized per source type.",
	}, []string{"source_type"})
	reg.MustRegister(outcomes, rows)
	return &IngestMetrics{outcomes: outcomes, rows: rows}
}

func (m *IngestMetrics) Observe(sourceType, outcome string, rows int) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(sourceType), normalizeLabel(outcome)).Inc()
	if rows > 0 {
		m.rows.WithLabelValues(normalizeLabel(sourceType)).Add(float64(rows))
	}
}

// AlertMetrics tracks alert generation.
type AlertMetrics struct {
	created      *prometheus.CounterVec
	scanDuration prometheus.Histogram
	notifyFailed prometheus.Counter
}

func NewAlertMetrics(reg prometheus.Registerer) *AlertMetrics {
	if reg == nil {
		return &AlertMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_created_total",
		Help:      "Alerts created by alert type.",
	}, []string{"alert_type"})
	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "alert_scan_duration_seconds",
		Help:      "Duration of a single user's alert scan.",
		Buckets:   prometheus.DefBuckets,
	})
	notifyFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_notify_failures_total",
		Help:      "Best-effort alert notifications that failed.",
	})
	reg.MustRegister(created, scanDuration, notifyFailed)
	return &AlertMetrics{created: created, scanDuration: scanDuration, notifyFailed: notifyFailed}
}

func (m *AlertMetrics) IncCreated(alertType string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(alertType)).Inc()
}

func (m *AlertMetrics) ObserveScan(d time.Duration) {
	if m == nil || m.scanDuration == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

func (m *AlertMetrics) IncNotifyFailure() {
	if m == nil || m.notifyFailed == nil {
		return
	}
	m.notifyFailed.Inc()
}
