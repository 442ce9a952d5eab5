package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// fetchCaptions returns the chapter's caption track, running the pipeline
// first when it has not been captioned yet.
func fetchCaptions(cmd *cobra.Command, app *internal.App, ref internal.ChapterRef) (string, error) {
	if captions, err := app.ReadCaptions(ref); err == nil {
		return captions, nil
	}

	if err := internal.ValidateTranscriptionRequirements(config); err != nil {
		return "", err
	}
	if _, err := app.RunChapter(cmd.Context(), ref, internal.RunOptions{ShowProgress: !config.Quiet}); err != nil {
		return "", err
	}
	return app.ReadCaptions(ref)
}
