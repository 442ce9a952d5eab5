package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounts(t *testing.T) {
	m := NewMetrics()
	m.ObserveStage("resolve", "cached", time.Millisecond)
	m.ObserveStage("resolve", "ok", time.Second)
	m.ObserveStage("resolve", "ok", time.Second)
	m.ObserveAttempt("503")
	m.AddCost(0.06)
	m.AddCost(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("resolve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("resolve", "cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadAttempts.WithLabelValues("503")))
	assert.InDelta(t, 0.06, testutil.ToFloat64(m.costTotal), 1e-12)
}

func TestMetricsWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveStage("transcribe", "ok", 2*time.Second)
	m.MarkRun(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "chapterscribe.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chapterscribe_stage_runs_total{outcome="ok",stage="transcribe"} 1`)
	assert.Contains(t, string(data), "chapterscribe_last_run_timestamp_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("resolve", "ok", time.Second)
	m.ObserveAttempt("200")
	m.AddCost(1)
	m.MarkRun(time.Now())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, m.Registry())
}
