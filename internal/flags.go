package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddChapterFlags adds the flags that identify a chapter and its video source
func AddChapterFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("lesson", 0, "Lesson id")
	cmd.Flags().Int64("chapter", 0, "Chapter id")
	cmd.Flags().StringP("title", "t", "", "Chapter title (used for file names)")
	AddSourceFlags(cmd)
	_ = cmd.MarkFlagRequired("lesson")
	_ = cmd.MarkFlagRequired("chapter")
}

// AddSourceFlags adds the flags that locate a video
func AddSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("source", "s", "", "Video source: hls or hosted")
	cmd.Flags().StringP("locator", "l", "", "HLS master playlist URL or hosted video id")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("locator")
}

// SourceFromFlags reads --source and --locator
func SourceFromFlags(cmd *cobra.Command) (SourceRef, error) {
	kind, err := cmd.Flags().GetString("source")
	if err != nil {
		return nil, fmt.Errorf("failed to get source flag: %w", err)
	}
	locator, err := cmd.Flags().GetString("locator")
	if err != nil {
		return nil, fmt.Errorf("failed to get locator flag: %w", err)
	}
	return ParseSource(kind, locator)
}

// ChapterFromFlags builds a ChapterRef from the flags added by AddChapterFlags
func ChapterFromFlags(cmd *cobra.Command) (ChapterRef, error) {
	lesson, err := cmd.Flags().GetInt64("lesson")
	if err != nil {
		return ChapterRef{}, fmt.Errorf("failed to get lesson flag: %w", err)
	}
	chapter, err := cmd.Flags().GetInt64("chapter")
	if err != nil {
		return ChapterRef{}, fmt.Errorf("failed to get chapter flag: %w", err)
	}
	title, err := cmd.Flags().GetString("title")
	if err != nil {
		return ChapterRef{}, fmt.Errorf("failed to get title flag: %w", err)
	}
	source, err := SourceFromFlags(cmd)
	if err != nil {
		return ChapterRef{}, err
	}

	ref := ChapterRef{LessonID: lesson, ChapterID: chapter, Title: title, Source: source}
	if err := ref.Validate(); err != nil {
		return ChapterRef{}, err
	}
	return ref, nil
}

// HandleOutputFlags applies --verbose and --quiet to config
func HandleOutputFlags(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if cmd.Flags().Changed("verbose") || verbose {
		config.Verbose = verbose
	}
	if cmd.Flags().Changed("quiet") || quiet {
		config.Quiet = quiet
	}
	return nil
}

// ValidateTranscriptionRequirements fails early when no API key is configured
func ValidateTranscriptionRequirements(config *Config) error {
	if config.OpenAIAPIKey == "" {
		return wrapErr(ErrNotConfigured, "OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable", nil)
	}
	return nil
}
