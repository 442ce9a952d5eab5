package internal

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind names where a chapter's video is hosted
type SourceKind string

const (
	SourceHLS    SourceKind = "hls"
	SourceHosted SourceKind = "hosted"
)

// SourceRef is a chapter's video reference. It is implemented only by
// HLSSource and HostedSource.
type SourceRef interface {
	Kind() SourceKind
	Locator() string
	sourceRef()
}

// HLSSource points at an HLS master playlist
type HLSSource struct {
	PlaylistURL string
}

func (s HLSSource) Kind() SourceKind { return SourceHLS }
func (s HLSSource) Locator() string  { return s.PlaylistURL }
func (HLSSource) sourceRef()         {}

// HostedSource is a numeric video id on the hosted video platform
type HostedSource struct {
	VideoID string
}

func (s HostedSource) Kind() SourceKind { return SourceHosted }
func (s HostedSource) Locator() string  { return s.VideoID }
func (HostedSource) sourceRef()         {}

// ParseSource builds a SourceRef from a kind tag and a locator
func ParseSource(kind, locator string) (SourceRef, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, wrapErr(ErrValidation, "source locator is empty", nil)
	}

	switch SourceKind(strings.ToLower(strings.TrimSpace(kind))) {
	case SourceHLS:
		if !strings.HasPrefix(locator, "https://") && !strings.HasPrefix(locator, "http://") {
			return nil, wrapErr(ErrValidation, fmt.Sprintf("hls locator must be a playlist URL: %q", locator), nil)
		}
		return HLSSource{PlaylistURL: locator}, nil
	case SourceHosted:
		for _, r := range locator {
			if r < '0' || r > '9' {
				return nil, wrapErr(ErrValidation, fmt.Sprintf("hosted locator must be a numeric video id: %q", locator), nil)
			}
		}
		return HostedSource{VideoID: locator}, nil
	default:
		return nil, wrapErr(ErrValidation, fmt.Sprintf("unknown source %q (expected hls or hosted)", kind), nil)
	}
}

// ChapterRef identifies one chapter video, the unit of work for a pipeline run
type ChapterRef struct {
	LessonID  int64
	ChapterID int64
	Title     string
	Source    SourceRef
}

// Validate checks that the reference can be processed
func (c ChapterRef) Validate() error {
	if c.LessonID <= 0 {
		return wrapErr(ErrValidation, "lesson id must be positive", nil)
	}
	if c.ChapterID <= 0 {
		return wrapErr(ErrValidation, "chapter id must be positive", nil)
	}
	if c.Source == nil {
		return wrapErr(ErrValidation, "chapter has no video source", nil)
	}
	return nil
}

// String returns a formatted representation of the chapter reference
func (c ChapterRef) String() string {
	if c.Source == nil {
		return fmt.Sprintf("lesson %d chapter %d (%q)", c.LessonID, c.ChapterID, c.Title)
	}
	return fmt.Sprintf("lesson %d chapter %d (%q, %s:%s)", c.LessonID, c.ChapterID, c.Title, c.Source.Kind(), c.Source.Locator())
}

// ArtifactKind is the type of file a pipeline stage produces
type ArtifactKind int

const (
	ArtifactVideo ArtifactKind = iota
	ArtifactAudio
	ArtifactCaption
)

// String returns a human-readable representation of the artifact kind
func (k ArtifactKind) String() string {
	switch k {
	case ArtifactVideo:
		return "video"
	case ArtifactAudio:
		return "audio"
	case ArtifactCaption:
		return "caption"
	default:
		return "unknown"
	}
}

// Ext is the file extension used for the artifact kind
func (k ArtifactKind) Ext() string {
	switch k {
	case ArtifactVideo:
		return "mp4"
	case ArtifactAudio:
		return "mp3"
	case ArtifactCaption:
		return "vtt"
	default:
		return "bin"
	}
}

// MediaArtifact is a file produced by a stage. Existence and freshness
// are read from the filesystem.
type MediaArtifact struct {
	Path string
	Kind ArtifactKind
}

// Segment is one timestamped span of a transcript
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is what the speech-to-text service returned for one file
type TranscriptionResult struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Cost            float64   `json:"cost"`
}

// CostLogEntry is one row of the cost ledger
type CostLogEntry struct {
	ID              int64     `json:"id"`
	ChapterID       int64     `json:"chapter_id"`
	DurationMinutes float64   `json:"duration_minutes"`
	Cost            float64   `json:"cost"`
	CreatedAt       time.Time `json:"created_at"`
}
