package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "chapterscribe"

// Metrics collects pipeline counters for a node_exporter textfile. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageRuns      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	uploadAttempts *prometheus.CounterVec
	costTotal      prometheus.Counter
	lastRun        prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by outcome (ok, cached, error).",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 1, 5, 15, 60, 180, 600, 1800},
		}, []string{"stage"}),
		uploadAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transcription_attempts_total",
			Help:      "Transcription upload attempts by HTTP status or transport_error.",
		}, []string{"status"}),
		costTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transcription_cost_dollars_total",
			Help:      "Cost of successful transcriptions.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pipeline run finished.",
		}),
	}
	m.registry.MustRegister(m.stageRuns, m.stageDuration, m.uploadAttempts, m.costTotal, m.lastRun)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records one stage execution
func (m *Metrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveAttempt counts one upload attempt
func (m *Metrics) ObserveAttempt(status string) {
	if m == nil {
		return
	}
	m.uploadAttempts.WithLabelValues(status).Inc()
}

// AddCost adds the cost of a successful transcription
func (m *Metrics) AddCost(cost float64) {
	if m == nil || cost <= 0 {
		return
	}
	m.costTotal.Add(cost)
}

// MarkRun stamps the completion time of a run
func (m *Metrics) MarkRun(t time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics to path in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
