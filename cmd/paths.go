package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pathsCmd = &cobra.Command{
	Use:     "paths",
	Short:   "Show the directories and files chapterscribe reads and writes",
	Example: `  chapterscribe paths`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ledger := config.LedgerPath()
		if config.LedgerDSN != "" {
			ledger = "postgres (ledger_dsn)"
		}
		metrics := config.MetricsTextfile
		if metrics == "" {
			metrics = "disabled"
		}

		tw := table.NewWriter()
		tw.SetStyle(table.StyleLight)
		tw.AppendRows([]table.Row{
			{"config", config.ConfigDir},
			{"data", config.DataDir},
			{"cache", config.CacheDir},
			{"media", config.MediaDir},
			{"captions", config.CaptionsDir},
			{"cost ledger", ledger},
			{"metrics", metrics},
		})
		fmt.Println(tw.Render())
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)
}
