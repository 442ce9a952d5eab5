package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		locator string
		want    SourceRef
		wantErr bool
	}{
		{"hls url", "hls", "https://cdn.example.com/v/34/master.m3u8", HLSSource{PlaylistURL: "https://cdn.example.com/v/34/master.m3u8"}, false},
		{"hls upper case kind", "HLS", " http://cdn/x.m3u8 ", HLSSource{PlaylistURL: "http://cdn/x.m3u8"}, false},
		{"hls not a url", "hls", "master.m3u8", nil, true},
		{"hosted id", "hosted", "76979871", HostedSource{VideoID: "76979871"}, false},
		{"hosted non numeric", "hosted", "abc123", nil, true},
		{"empty locator", "hosted", "  ", nil, true},
		{"unknown kind", "youtube", "dQw4w9WgXcQ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSource(tt.kind, tt.locator)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChapterRefValidate(t *testing.T) {
	valid := ChapterRef{LessonID: 1, ChapterID: 2, Title: "Intro", Source: HostedSource{VideoID: "9"}}
	assert.NoError(t, valid.Validate())

	noLesson := valid
	noLesson.LessonID = 0
	assert.ErrorIs(t, noLesson.Validate(), ErrValidation)

	noChapter := valid
	noChapter.ChapterID = -1
	assert.ErrorIs(t, noChapter.Validate(), ErrValidation)

	noSource := valid
	noSource.Source = nil
	assert.ErrorIs(t, noSource.Validate(), ErrValidation)
}

func TestChapterRefString(t *testing.T) {
	ref := ChapterRef{LessonID: 1, ChapterID: 2, Title: "Intro", Source: HostedSource{VideoID: "9"}}
	assert.Equal(t, `lesson 1 chapter 2 ("Intro", hosted:9)`, ref.String())
}

func TestArtifactKind(t *testing.T) {
	assert.Equal(t, "mp4", ArtifactVideo.Ext())
	assert.Equal(t, "mp3", ArtifactAudio.Ext())
	assert.Equal(t, "vtt", ArtifactCaption.Ext())
	assert.Equal(t, "audio", ArtifactAudio.String())
}
