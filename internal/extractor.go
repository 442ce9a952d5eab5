package internal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AudioExtractor derives the audio-only artifact uploaded for transcription
type AudioExtractor struct {
	transcoder Transcoder
	spec       AudioSpec
	logger     zerolog.Logger
}

// NewAudioExtractor creates an extractor encoding with spec
func NewAudioExtractor(transcoder Transcoder, spec AudioSpec, logger zerolog.Logger) *AudioExtractor {
	return &AudioExtractor{
		transcoder: transcoder,
		spec:       spec,
		logger:     logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns the audio artifact next to video, re-encoding only when
// the existing one is missing or older than the video.
func (e *AudioExtractor) Extract(ctx context.Context, video MediaArtifact) (MediaArtifact, error) {
	audio := MediaArtifact{Path: swapExt(video.Path, ArtifactAudio), Kind: ArtifactAudio}

	if !FileExists(video.Path) {
		return MediaArtifact{}, wrapErr(ErrConversion, fmt.Sprintf("video %s does not exist", video.Path), nil)
	}
	if isFresh(audio.Path, video.Path) {
		e.logger.Debug().Str("path", audio.Path).Msg("audio cached")
		return audio, nil
	}

	e.logger.Info().
		Str("video", video.Path).
		Str("bitrate", e.spec.Bitrate).
		Int("sample_rate", e.spec.SampleRate).
		Msg("extracting audio")
	err := produce(audio.Path, func(tmp string) error {
		return e.transcoder.ExtractAudio(ctx, video.Path, tmp, e.spec)
	})
	if err != nil {
		return MediaArtifact{}, err
	}
	return audio, nil
}
