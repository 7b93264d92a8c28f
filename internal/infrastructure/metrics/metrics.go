package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/semmidev/dbkeep/internal/domain"
	"github.com/semmidev/dbkeep/internal/usecase"
)

const namespace = "dbkeep"

// Metrics collects the counters of one run. The run is a short-lived
// process, so the registry is written to a file for node_exporter's
// textfile collector instead of being served.
type Metrics struct {
	registry *prometheus.Registry

	backups        *prometheus.CounterVec
	backupBytes    *prometheus.CounterVec
	backupDuration *prometheus.HistogramVec
	swept          *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	lastRun        prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backups_total",
				Help:      "Database backups attempted, by job and status.",
			},
			[]string{"job", "status"},
		),
		backupBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backup_bytes_total",
				Help:      "Compressed bytes written to backup artifacts.",
			},
			[]string{"job"},
		),
		backupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backup_duration_seconds",
				Help:      "Time spent dumping and compressing one database.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"job"},
		),
		swept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swept_artifacts_total",
				Help:      "Expired artifacts handled by the retention sweep, by result.",
			},
			[]string{"job", "result"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_errors_total",
				Help:      "Jobs that could not run.",
			},
			[]string{"job"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if every backup of the last run succeeded, 0 otherwise.",
		}),
	}

	m.registry.MustRegister(
		m.backups,
		m.backupBytes,
		m.backupDuration,
		m.swept,
		m.jobErrors,
		m.lastRun,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) OnJobStart(domain.JobDescriptor, domain.RunContext) {}

func (m *Metrics) OnSweep(job string, result usecase.SweepResult) {
	m.swept.WithLabelValues(job, "deleted").Add(float64(len(result.Deleted)))
	m.swept.WithLabelValues(job, "failed").Add(float64(len(result.Failed)))
}

func (m *Metrics) OnBackup(o domain.BackupOutcome) {
	status := "success"
	if !o.Success {
		status = "failed"
	}
	m.backups.WithLabelValues(o.Job, status).Inc()
	m.backupBytes.WithLabelValues(o.Job).Add(float64(o.Size))
	m.backupDuration.WithLabelValues(o.Job).Observe(o.Duration.Seconds())
}

func (m *Metrics) OnJobDone(domain.JobResult) {}

func (m *Metrics) OnJobError(err *domain.JobError) {
	m.jobErrors.WithLabelValues(err.Job).Inc()
}

// Finish records the outcome of the whole run.
func (m *Metrics) Finish(summary *domain.RunSummary, at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
	if summary != nil && summary.Success() {
		m.lastSuccess.Set(1)
	} else {
		m.lastSuccess.Set(0)
	}
}

func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
