package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Transcoder repackages or re-encodes media into local files
type Transcoder interface {
	// CopyToContainer stream-copies input (a URL or path) into an MP4 at output.
	CopyToContainer(ctx context.Context, input, output string, headers map[string]string) error
	// ExtractAudio drops the video stream and re-encodes audio only.
	ExtractAudio(ctx context.Context, input, output string, spec AudioSpec) error
}

// Prober reads media properties
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// AudioSpec is the audio-only encoding used for transcription uploads
type AudioSpec struct {
	Bitrate    string
	SampleRate int
}

// DefaultAudioSpec keeps an hour of speech well under the upload ceiling
var DefaultAudioSpec = AudioSpec{Bitrate: "128k", SampleRate: 44100}

// FFmpeg runs ffmpeg and ffprobe as external processes
type FFmpeg struct {
	cmdRunner   CommandRunner
	ffmpegPath  string
	ffprobePath string
	logger      zerolog.Logger
}

// NewFFmpeg creates a transcoder and prober backed by the ffmpeg binaries
func NewFFmpeg(cmdRunner CommandRunner, ffmpegPath, ffprobePath string, logger zerolog.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		cmdRunner:   cmdRunner,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// Duration returns the media file duration in seconds
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	output, err := f.cmdRunner.Run(ctx, f.ffprobePath,
		"-i", path,
		"-show_entries", "format=duration",
		"-v", "quiet",
		"-of", "csv=p=0")
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, string(output))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration: %w", err)
	}
	return duration, nil
}

// CopyToContainer stream-copies input into an MP4 without re-encoding
func (f *FFmpeg) CopyToContainer(ctx context.Context, input, output string, headers map[string]string) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	args = append(args, headerArgs(headers)...)
	args = append(args,
		"-i", input,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		output)
	return f.run(ctx, output, args)
}

// ExtractAudio re-encodes the audio stream of input into an MP3 at output
func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string, spec AudioSpec) error {
	return f.run(ctx, output, []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", spec.Bitrate,
		"-ar", strconv.Itoa(spec.SampleRate),
		output,
	})
}

// run executes ffmpeg and judges success by the output file, not the exit code
func (f *FFmpeg) run(ctx context.Context, output string, args []string) error {
	f.logger.Debug().Strs("args", args).Msg("running ffmpeg")
	cmdOutput, err := f.cmdRunner.Run(ctx, f.ffmpegPath, args...)

	// a killed ffmpeg leaves a truncated file behind
	if ctxErr := ctx.Err(); ctxErr != nil {
		if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			f.logger.Warn().Err(rmErr).Str("output", output).Msg("removing interrupted output failed")
		}
		return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
	}

	if !FileExists(output) {
		if err == nil {
			return wrapErr(ErrConversion, fmt.Sprintf("ffmpeg produced no output at %s\nOutput: %s", output, cmdOutput), nil)
		}
		return wrapErr(ErrConversion, fmt.Sprintf("ffmpeg produced no output at %s\nOutput: %s", output, cmdOutput), err)
	}
	if err != nil {
		f.logger.Warn().Err(err).Str("output", output).Msg("ffmpeg exited with an error but produced output")
	}
	return nil
}

// headerArgs turns request headers into ffmpeg input options. User-Agent has
// its own flag; the rest go into -headers as CRLF terminated lines.
func headerArgs(headers map[string]string) []string {
	if len(headers) == 0 {
		return nil
	}

	var args []string
	var lines strings.Builder
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		if strings.EqualFold(name, "User-Agent") {
			args = append(args, "-user_agent", headers[name])
			continue
		}
		fmt.Fprintf(&lines, "%s: %s\r\n", name, headers[name])
	}
	if lines.Len() > 0 {
		args = append(args, "-headers", lines.String())
	}
	return args
}
