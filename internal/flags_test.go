package internal

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapterCommand(t *testing.T, args map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "transcribe"}
	AddChapterFlags(cmd)
	for name, value := range args {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
	return cmd
}

func TestChapterFromFlags(t *testing.T) {
	cmd := chapterCommand(t, map[string]string{
		"lesson":  "12",
		"chapter": "34",
		"title":   "Blues Scales",
		"source":  "hosted",
		"locator": "76979871",
	})

	ref, err := ChapterFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, ChapterRef{LessonID: 12, ChapterID: 34, Title: "Blues Scales", Source: HostedSource{VideoID: "76979871"}}, ref)
}

func TestChapterFromFlagsValidates(t *testing.T) {
	cmd := chapterCommand(t, map[string]string{
		"lesson":  "12",
		"chapter": "0",
		"source":  "hosted",
		"locator": "1",
	})
	_, err := ChapterFromFlags(cmd)
	assert.ErrorIs(t, err, ErrValidation)

	cmd = chapterCommand(t, map[string]string{
		"lesson":  "12",
		"chapter": "3",
		"source":  "ftp",
		"locator": "x",
	})
	_, err = ChapterFromFlags(cmd)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHandleOutputFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "root"}
	cmd.Flags().BoolP("verbose", "v", false, "")
	cmd.Flags().BoolP("quiet", "q", false, "")
	require.NoError(t, cmd.Flags().Set("quiet", "true"))

	config := &Config{Verbose: true}
	require.NoError(t, HandleOutputFlags(cmd, config))
	assert.True(t, config.Quiet)
	assert.True(t, config.Verbose)
}

func TestValidateTranscriptionRequirements(t *testing.T) {
	assert.ErrorIs(t, ValidateTranscriptionRequirements(&Config{}), ErrNotConfigured)
	assert.NoError(t, ValidateTranscriptionRequirements(&Config{OpenAIAPIKey: "sk"}))
}
