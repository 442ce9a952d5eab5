package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

var costHeaders = []string{"ID", "Chapter", "Minutes", "Cost (USD)", "Created"}

// RenderCostTable formats ledger entries with a total row
func RenderCostTable(entries []CostLogEntry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(costHeaders))
	for i, h := range costHeaders {
		header[i] = h
	}
	tw.AppendHeader(header)

	var minutes, cost float64
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.ID,
			e.ChapterID,
			fmt.Sprintf("%.2f", e.DurationMinutes),
			fmt.Sprintf("%.4f", e.Cost),
			e.CreatedAt.Local().Format(time.DateTime),
		})
		minutes += e.DurationMinutes
		cost += e.Cost
	}
	tw.AppendFooter(table.Row{"", "Total", fmt.Sprintf("%.2f", minutes), fmt.Sprintf("%.4f", cost), ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}

// ExportCostsXLSX writes ledger entries to a spreadsheet at path
func ExportCostsXLSX(entries []CostLogEntry, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(costHeaders))
	for i, h := range costHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.ID, e.ChapterID, e.DurationMinutes, e.Cost, e.CreatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// RunSummaryMarkdown describes a finished pipeline run
func RunSummaryMarkdown(result *ChapterResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", result.Chapter.Title)
	fmt.Fprintf(&b, "Lesson %d, chapter %d\n\n", result.Chapter.LessonID, result.Chapter.ChapterID)
	fmt.Fprintf(&b, "- **Video:** `%s`\n", result.Video.Path)
	fmt.Fprintf(&b, "- **Audio:** `%s`\n", result.Audio.Path)
	if result.CaptionPath != "" {
		fmt.Fprintf(&b, "- **Captions:** `%s`\n", result.CaptionPath)
	}
	if result.CaptionURL != "" {
		fmt.Fprintf(&b, "- **Published:** `%s`\n", result.CaptionURL)
	}

	if result.Cached {
		b.WriteString("\nCaptions were already up to date; nothing was transcribed.\n")
		return b.String()
	}

	if t := result.Transcription; t != nil {
		fmt.Fprintf(&b, "- **Duration:** %.1f min\n", t.DurationSeconds/60)
		fmt.Fprintf(&b, "- **Cost:** $%.4f\n", t.Cost)
		if len(t.Segments) > 0 {
			fmt.Fprintf(&b, "- **Segments:** %d\n", len(t.Segments))
		} else {
			b.WriteString("- **Segments:** none, cue timing estimated\n")
		}
	}
	return b.String()
}
