package internal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleEntries() []CostLogEntry {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []CostLogEntry{
		{ID: 1, ChapterID: 34, DurationMinutes: 10, Cost: 0.06, CreatedAt: created},
		{ID: 2, ChapterID: 35, DurationMinutes: 5, Cost: 0.03, CreatedAt: created.Add(time.Hour)},
	}
}

func TestRenderCostTable(t *testing.T) {
	out := RenderCostTable(sampleEntries())
	assert.Contains(t, out, "Chapter")
	assert.Contains(t, out, "0.0600")
	assert.Contains(t, out, "0.0300")
	assert.Contains(t, out, "15.00")
	assert.Contains(t, out, "0.0900")
}

func TestRenderCostTableEmpty(t *testing.T) {
	out := RenderCostTable(nil)
	assert.Contains(t, out, "0.0000")
}

func TestExportCostsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.xlsx")
	require.NoError(t, ExportCostsXLSX(sampleEntries(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, costHeaders, rows[0])
	assert.Equal(t, "34", rows[1][1])
	assert.Equal(t, "35", rows[2][1])
	assert.Equal(t, "2026-03-14T09:30:00Z", rows[1][4])
}

func TestRunSummaryMarkdown(t *testing.T) {
	result := &ChapterResult{
		Chapter:     ChapterRef{LessonID: 12, ChapterID: 34, Title: "Blues Scales"},
		Video:       MediaArtifact{Path: "/m/v.mp4"},
		Audio:       MediaArtifact{Path: "/m/v.mp3"},
		CaptionPath: "/c/v.vtt",
		Transcription: &TranscriptionResult{
			DurationSeconds: 600,
			Cost:            0.06,
		},
	}
	md := RunSummaryMarkdown(result)
	assert.Contains(t, md, "# Blues Scales")
	assert.Contains(t, md, "$0.0600")
	assert.Contains(t, md, "10.0 min")
	assert.Contains(t, md, "cue timing estimated")

	result.Cached = true
	assert.Contains(t, RunSummaryMarkdown(result), "already up to date")
}
