// Package metrics records backup outcomes in a private Prometheus registry
// that can be exported as a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Metrics struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	documents   prometheus.Gauge
	size        prometheus.Gauge
	pruned      prometheus.Counter
	backups     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docbackup_operations_total",
			Help: "Total number of backup subsystem operations",
		}, []string{"operation", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docbackup_operation_duration_seconds",
			Help:    "Duration of backup subsystem operations",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"operation"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docbackup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful operation",
		}, []string{"operation"}),
		documents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docbackup_last_backup_documents",
			Help: "Documents contained in the most recent backup",
		}),
		size: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docbackup_last_backup_size_bytes",
			Help: "Artifact bytes written by the most recent backup",
		}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "docbackup_pruned_backups_total",
			Help: "Total number of backups removed by retention",
		}),
		backups: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docbackup_backups",
			Help: "Backups present under the backup root",
		}),
	}
}

// Observe records the outcome and duration of one operation.
func (m *Metrics) Observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.operations.WithLabelValues(operation, StatusFailure).Inc()
		return
	}
	m.operations.WithLabelValues(operation, StatusSuccess).Inc()
	m.lastSuccess.WithLabelValues(operation).SetToCurrentTime()
}

func (m *Metrics) RecordBackup(documents int, size int64) {
	if m == nil {
		return
	}
	m.documents.Set(float64(documents))
	m.size.Set(float64(size))
}

func (m *Metrics) RecordPruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) SetBackupCount(n int) {
	if m == nil {
		return
	}
	m.backups.Set(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes the registry in text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
