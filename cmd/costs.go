package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// costsCmd represents the costs command
var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show transcription costs recorded in the ledger",
	Example: `  # All recorded transcriptions
  chapterscribe costs

  # One chapter, exported to a spreadsheet
  chapterscribe costs --chapter 34 --xlsx chapter-34-costs.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := internal.OpenLedger(cmd.Context(), config, logger)
		if err != nil {
			return fmt.Errorf("opening cost ledger: %w", err)
		}
		defer ledger.Close()

		var chapterID *int64
		if cmd.Flags().Changed("chapter") {
			id, _ := cmd.Flags().GetInt64("chapter")
			chapterID = &id
		}

		entries, err := ledger.Entries(cmd.Context(), chapterID)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := internal.ExportCostsXLSX(entries, path); err != nil {
				return err
			}
			if !config.Quiet {
				fmt.Printf("Exported %d entries to %s\n", len(entries), path)
			}
			return nil
		}

		if config.Quiet {
			var total float64
			if chapterID != nil {
				total, err = ledger.ChapterCost(cmd.Context(), *chapterID)
			} else {
				total, err = ledger.TotalCost(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Printf("%.4f\n", total)
			return nil
		}

		fmt.Println(internal.RenderCostTable(entries))
		return nil
	},
}

func init() {
	costsCmd.Flags().Int64("chapter", 0, "Only show entries for this chapter id")
	costsCmd.Flags().String("xlsx", "", "Export the entries to an .xlsx file instead of printing")
	rootCmd.AddCommand(costsCmd)
}
