package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "List the renditions a video source offers",
	Example: `  # Show the variants of an HLS playlist and the one that would be downloaded
  chapterscribe metadata --source hls --locator https://cdn.example.com/v/34/master.m3u8

  # Save hosted-platform file list to a file
  chapterscribe metadata -s hosted -l 76979871 -o renditions.json

  # Format output as pretty JSON
  chapterscribe metadata -s hosted -l 76979871 --pretty`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := internal.SourceFromFlags(cmd)
		if err != nil {
			return err
		}

		app := internal.NewApp(config, logger)
		info, err := app.Inspect(cmd.Context(), source)
		if err != nil {
			return err
		}

		var jsonData []byte
		pretty, _ := cmd.Flags().GetBool("pretty")
		if pretty {
			jsonData, err = json.MarshalIndent(info, "", "  ")
		} else {
			jsonData, err = json.Marshal(info)
		}
		if err != nil {
			return fmt.Errorf("error converting metadata to JSON: %w", err)
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			return os.WriteFile(outputFile, jsonData, 0644)
		}

		fmt.Println(string(jsonData))
		return nil
	},
}

func init() {
	internal.AddSourceFlags(metadataCmd)
	metadataCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	metadataCmd.Flags().Bool("pretty", false, "Format output as pretty JSON")
	rootCmd.AddCommand(metadataCmd)
}
