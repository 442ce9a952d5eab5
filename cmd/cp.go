package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// cpCmd copies a chapter's captions to the system clipboard instead of printing them.
var cpCmd = &cobra.Command{
	Use:   "cp",
	Short: "Copy a chapter's captions to the clipboard",
	Example: `  # Copy existing captions, transcribing first if there are none
  chapterscribe cp --lesson 12 --chapter 34 --title "Blues Scales" \
    --source hls --locator https://cdn.example.com/v/34/master.m3u8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := internal.ChapterFromFlags(cmd)
		if err != nil {
			return err
		}

		app, cleanup, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		captions, err := fetchCaptions(cmd, app, ref)
		if err != nil {
			return err
		}

		if err := clipboard.WriteAll(captions); err != nil {
			return fmt.Errorf("copying captions to clipboard: %w", err)
		}

		app.UI().Println("Captions copied to clipboard")
		return nil
	},
}

func init() {
	internal.AddChapterFlags(cpCmd)
	rootCmd.AddCommand(cpCmd)
}
