package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// transcribeCmd represents the transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Download, transcribe and caption one chapter (costs money)",
	Example: `  # Caption a chapter from its HLS playlist
  chapterscribe transcribe --lesson 12 --chapter 34 --title "Blues Scales" \
    --source hls --locator https://cdn.example.com/v/34/master.m3u8

  # Re-transcribe even though captions exist, and copy them elsewhere
  chapterscribe transcribe --lesson 12 --chapter 35 -s hosted -l 76979871 \
    --force -o comping.vtt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := internal.ChapterFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := internal.ValidateTranscriptionRequirements(config); err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		app, cleanup, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := app.RunChapter(cmd.Context(), ref, internal.RunOptions{
			Force:        force,
			ShowProgress: !config.Quiet,
		})
		if err != nil {
			return err
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			captions, err := app.ReadCaptions(ref)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outputFile, []byte(captions), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", outputFile, err)
			}
		}

		ui := app.UI()
		ui.Verbose("Run %s\n  video: %s\n  audio: %s\n", result.RunID, result.Video.Path, result.Audio.Path)
		if result.CaptionURL != "" {
			ui.Verbose("  published: %s\n", result.CaptionURL)
		}
		if config.Quiet {
			fmt.Println(result.CaptionPath)
			return nil
		}
		rendered, err := internal.RenderMarkdown(internal.RunSummaryMarkdown(result))
		if err != nil {
			return err
		}
		ui.Printf("%s", rendered)
		return nil
	},
}

func init() {
	internal.AddChapterFlags(transcribeCmd)
	transcribeCmd.Flags().Bool("force", false, "Transcribe again even if captions are up to date")
	transcribeCmd.Flags().StringP("output", "o", "", "Also write the captions to this file")
	rootCmd.AddCommand(transcribeCmd)
}
