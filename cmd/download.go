package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a chapter video and extract its audio without transcribing",
	Example: `  # Prepare the audio for a chapter (free)
  chapterscribe download --lesson 12 --chapter 34 --title "Blues Scales" \
    --source hls --locator https://cdn.example.com/v/34/master.m3u8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := internal.ChapterFromFlags(cmd)
		if err != nil {
			return err
		}

		app := internal.NewApp(config, logger)
		result, err := app.ResolveOnly(cmd.Context(), ref, !config.Quiet)
		if err != nil {
			return err
		}

		app.UI().Verbose("Run %s for %s\n", result.RunID, ref)
		fmt.Println(result.Video.Path)
		fmt.Println(result.Audio.Path)
		return nil
	},
}

func init() {
	internal.AddChapterFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}
