package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external tools and credentials",
	Example: `  # Verify ffmpeg, ffprobe and API credentials
  chapterscribe doctor`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses := internal.CheckTools(internal.PipelineTools(config))

		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Check", "Status", "Detail"})
		for _, s := range statuses {
			state := "ok"
			detail := s.Path
			if !s.Available {
				state = "missing"
				if s.Optional {
					state = "missing (optional)"
				}
				detail = s.Detail
			}
			tw.AppendRow(table.Row{s.Name, state, detail})
		}
		tw.AppendRow(table.Row{"OpenAI API key", configured(config.OpenAIAPIKey), "transcription"})
		tw.AppendRow(table.Row{"Hosted API token", configured(config.HostedAPIToken), "hosted sources"})
		tw.AppendRow(table.Row{"S3 bucket", configured(config.S3Bucket), "caption mirror (optional)"})
		fmt.Println(tw.Render())

		return internal.RequireTools(statuses)
	},
}

func configured(value string) string {
	if value == "" {
		return "not set"
	}
	return "set"
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
