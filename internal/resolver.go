package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Resolver downloads the best rendition of a chapter video into the media directory
type Resolver struct {
	mediaDir   string
	hls        *HLSClient
	hosted     *HostedClient
	transcoder Transcoder
	logger     zerolog.Logger
}

// NewResolver creates a resolver writing under mediaDir
func NewResolver(mediaDir string, hls *HLSClient, hosted *HostedClient, transcoder Transcoder, logger zerolog.Logger) *Resolver {
	return &Resolver{
		mediaDir:   mediaDir,
		hls:        hls,
		hosted:     hosted,
		transcoder: transcoder,
		logger:     logger.With().Str("component", "resolver").Logger(),
	}
}

// VideoPath is where Resolve stores the video for ref
func (r *Resolver) VideoPath(ref ChapterRef) string {
	return ArtifactPath(r.mediaDir, ref, ArtifactVideo)
}

// Resolve returns the local MP4 for ref, downloading it when it is not cached
func (r *Resolver) Resolve(ctx context.Context, ref ChapterRef) (MediaArtifact, error) {
	artifact := MediaArtifact{Path: r.VideoPath(ref), Kind: ArtifactVideo}
	if FileExists(artifact.Path) {
		r.logger.Debug().Str("path", artifact.Path).Msg("video cached")
		return artifact, nil
	}

	if err := os.MkdirAll(filepath.Dir(artifact.Path), 0755); err != nil {
		return MediaArtifact{}, fmt.Errorf("creating media directory: %w", err)
	}

	err := produce(artifact.Path, func(tmp string) error {
		switch src := ref.Source.(type) {
		case HLSSource:
			return r.resolveHLS(ctx, src, tmp)
		case HostedSource:
			return r.resolveHosted(ctx, src, tmp)
		default:
			return wrapErr(ErrValidation, fmt.Sprintf("unsupported source %T", ref.Source), nil)
		}
	})
	if err != nil {
		return MediaArtifact{}, err
	}
	return artifact, nil
}

func (r *Resolver) resolveHLS(ctx context.Context, src HLSSource, output string) error {
	streamURL, variant, err := r.hls.BestStreamURL(ctx, src.PlaylistURL)
	if err != nil {
		return err
	}

	r.logger.Info().
		Int64("bandwidth", variant.Bandwidth).
		Str("stream", streamURL).
		Msg("downloading hls variant")
	return r.transcoder.CopyToContainer(ctx, streamURL, output, r.hls.Headers())
}

func (r *Resolver) resolveHosted(ctx context.Context, src HostedSource, output string) error {
	video, err := r.hosted.Video(ctx, src.VideoID)
	if err != nil {
		return err
	}

	file, err := SelectRendition(video.Files)
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("video", video.Name).
		Str("rendition", file.Label()).
		Msg("downloading hosted rendition")
	return r.transcoder.CopyToContainer(ctx, file.Link, output, nil)
}

// SourceInfo describes what a source offers without downloading it
type SourceInfo struct {
	Kind     SourceKind   `json:"kind"`
	Locator  string       `json:"locator"`
	Name     string       `json:"name,omitempty"`
	Variants []Variant    `json:"variants,omitempty"`
	Files    []HostedFile `json:"files,omitempty"`
	Selected string       `json:"selected,omitempty"`
}

// Inspect lists the renditions of src and the one Resolve would pick
func (r *Resolver) Inspect(ctx context.Context, src SourceRef) (*SourceInfo, error) {
	info := &SourceInfo{Kind: src.Kind(), Locator: src.Locator()}

	switch s := src.(type) {
	case HLSSource:
		variants, err := r.hls.Variants(ctx, s.PlaylistURL)
		if err != nil {
			return nil, err
		}
		info.Variants = variants
		if best, ok := SelectVariant(variants); ok {
			info.Selected, err = ResolveVariantURL(s.PlaylistURL, best.URI)
			if err != nil {
				return nil, wrapErr(ErrDownload, "resolving variant", err)
			}
		}
	case HostedSource:
		video, err := r.hosted.Video(ctx, s.VideoID)
		if err != nil {
			return nil, err
		}
		info.Name = video.Name
		info.Files = video.Files
		if file, err := SelectRendition(video.Files); err == nil {
			info.Selected = file.Label()
		}
	default:
		return nil, wrapErr(ErrValidation, fmt.Sprintf("unsupported source %T", src), nil)
	}
	return info, nil
}
