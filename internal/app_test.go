package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	app        *App
	config     *Config
	transcoder *fakeTranscoder
	ledger     *memLedger
	uploads    *atomic.Int32
	srv        *httptest.Server
}

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, key, localPath string) (string, error) {
	p.keys = append(p.keys, key)
	if p.err != nil {
		return "", p.err
	}
	return "s3://captions/" + key, nil
}

// recordingUI keeps the spinner descriptions a run asked for
type recordingUI struct {
	spinners []string
	bars     []*recordingBar
}

type recordingBar struct {
	descriptions []string
	finished     bool
}

func (b *recordingBar) Describe(description string) { b.descriptions = append(b.descriptions, description) }
func (b *recordingBar) Finish()                     { b.finished = true }

func (u *recordingUI) NewSpinner(description string) ProgressBar {
	u.spinners = append(u.spinners, description)
	bar := &recordingBar{}
	u.bars = append(u.bars, bar)
	return bar
}
func (u *recordingUI) Verbose(format string, args ...any) {}
func (u *recordingUI) Printf(format string, args ...any)  {}
func (u *recordingUI) Println(args ...any)                {}

// newPipelineFixture serves a playlist and a transcription endpoint answering with status and body
func newPipelineFixture(t *testing.T, status int, body string, options ...AppOption) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		config:     testConfig(t),
		transcoder: &fakeTranscoder{},
		ledger:     &memLedger{},
		uploads:    &atomic.Int32{},
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v/34/master.m3u8":
			fmt.Fprint(w, masterPlaylist)
		case "/v1/audio/transcriptions":
			f.uploads.Add(1)
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)

	f.config.TranscriptionURL = f.srv.URL + "/v1/audio/transcriptions"
	f.config.OpenAIAPIKey = "sk-test"

	resolver := NewResolver(f.config.MediaDir,
		NewHLSClient(f.srv.Client(), "https://www.jazzedu.com/", "test-agent"),
		NewHostedClient(f.srv.Client(), f.srv.URL, "tok"),
		f.transcoder, zerolog.Nop())
	transcriber := NewTranscriptionClient(SettingsFromConfig(f.config),
		WithHTTPClient(f.srv.Client()),
		WithProber(fakeProber{seconds: 600}),
		WithLedger(f.ledger),
		WithTimer(newInstantTimer()))

	base := []AppOption{
		WithCostLedger(f.ledger),
		WithResolver(resolver),
		WithExtractor(NewAudioExtractor(f.transcoder, DefaultAudioSpec, zerolog.Nop())),
		WithTranscriber(transcriber),
		WithToolCheck(func() error { return nil }),
	}
	f.app = NewApp(f.config, zerolog.Nop(), append(base, options...)...)
	return f
}

func (f *pipelineFixture) chapter() ChapterRef {
	return ChapterRef{
		LessonID:  12,
		ChapterID: 34,
		Title:     "Blues Scales",
		Source:    HLSSource{PlaylistURL: f.srv.URL + "/v/34/master.m3u8"},
	}
}

func TestRunChapterProducesCaptions(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)
	ref := f.chapter()

	result, err := f.app.RunChapter(context.Background(), ref, RunOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.Cached)
	assert.Equal(t, ArtifactPath(f.config.MediaDir, ref, ArtifactVideo), result.Video.Path)
	assert.Equal(t, ArtifactPath(f.config.MediaDir, ref, ArtifactAudio), result.Audio.Path)
	assert.Equal(t, filepath.Join(f.config.CaptionsDir, "lesson-12", "chapter-34-blues-scales.vtt"), result.CaptionPath)
	require.NotNil(t, result.Transcription)
	assert.InDelta(t, 0.06, result.Transcription.Cost, 1e-9)

	captions, err := f.app.ReadCaptions(ref)
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n"+
		"00:00:00.000 --> 00:00:02.500\nHello\n\n"+
		"00:00:02.500 --> 00:00:05.000\nworld\n\n", captions)

	assert.Equal(t, 1, f.ledger.len())
	assert.Equal(t, int32(1), f.uploads.Load())
}

func TestRunChapterReusesFreshCaptions(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)
	ref := f.chapter()

	_, err := f.app.RunChapter(context.Background(), ref, RunOptions{})
	require.NoError(t, err)

	again, err := f.app.RunChapter(context.Background(), ref, RunOptions{})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Nil(t, again.Transcription)
	assert.Equal(t, int32(1), f.uploads.Load())
	assert.Len(t, f.transcoder.copies, 1)
	assert.Len(t, f.transcoder.extracts, 1)
	assert.Equal(t, 1, f.ledger.len())

	forced, err := f.app.RunChapter(context.Background(), ref, RunOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.Equal(t, int32(2), f.uploads.Load())
	assert.Equal(t, 2, f.ledger.len())
}

func TestRunChapterDownloadOnly(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)

	result, err := f.app.RunChapter(context.Background(), f.chapter(), RunOptions{DownloadOnly: true})
	require.NoError(t, err)
	assert.FileExists(t, result.Audio.Path)
	assert.Empty(t, result.CaptionPath)
	assert.Zero(t, f.uploads.Load())
}

func TestRunChapterKeepsArtifactsWhenTranscriptionFails(t *testing.T) {
	f := newPipelineFixture(t, http.StatusBadRequest, `{"error":{"message":"Invalid file format."}}`)
	ref := f.chapter()

	result, err := f.app.RunChapter(context.Background(), ref, RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermanentAPI)
	assert.Contains(t, err.Error(), "transcribe:")

	assert.FileExists(t, result.Video.Path)
	assert.FileExists(t, result.Audio.Path)
	assert.NoFileExists(t, f.app.CaptionPath(ref))
	assert.Zero(t, f.ledger.len())
}

func TestRunChapterWritesCaptionsWhenLedgerFails(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)
	f.ledger.err = errors.New("database is locked")
	ref := f.chapter()

	result, err := f.app.RunChapter(context.Background(), ref, RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedger)
	assert.Contains(t, err.Error(), "database is locked")

	require.NotNil(t, result.Transcription)
	assert.Equal(t, f.app.CaptionPath(ref), result.CaptionPath)
	assert.FileExists(t, result.CaptionPath)
}

func TestResolveOnly(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)

	result, err := f.app.ResolveOnly(context.Background(), f.chapter(), false)
	require.NoError(t, err)
	assert.FileExists(t, result.Video.Path)
	assert.FileExists(t, result.Audio.Path)
	assert.Zero(t, f.uploads.Load())
}

func TestRunChapterShowsProgressThroughUI(t *testing.T) {
	ui := &recordingUI{}
	f := newPipelineFixture(t, http.StatusOK, verboseBody, WithUI(ui))
	require.Same(t, ui, f.app.UI())

	_, err := f.app.RunChapter(context.Background(), f.chapter(), RunOptions{ShowProgress: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Downloading video", "Extracting audio", "Transcribing audio"}, ui.spinners)
	for _, bar := range ui.bars {
		assert.True(t, bar.finished)
	}
	assert.Contains(t, ui.bars[2].descriptions, "Uploading audio (attempt 1/3)")
	assert.Contains(t, ui.bars[2].descriptions, "Transcription received")
}

func TestRunChapterAbortsWithoutTools(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody,
		WithToolCheck(func() error { return wrapErr(ErrToolNotFound, "ffmpeg", nil) }))

	_, err := f.app.RunChapter(context.Background(), f.chapter(), RunOptions{})
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Empty(t, f.transcoder.copies)
	assert.Zero(t, f.uploads.Load())
}

func TestRunChapterRejectsInvalidChapter(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)
	ref := f.chapter()
	ref.ChapterID = 0

	_, err := f.app.RunChapter(context.Background(), ref, RunOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRunChapterPublishesCaptions(t *testing.T) {
	publisher := &recordingPublisher{}
	f := newPipelineFixture(t, http.StatusOK, verboseBody, WithPublisher(publisher))

	result, err := f.app.RunChapter(context.Background(), f.chapter(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"lesson-12/chapter-34-blues-scales.vtt"}, publisher.keys)
	assert.Equal(t, "s3://captions/lesson-12/chapter-34-blues-scales.vtt", result.CaptionURL)
}

func TestRunChapterPublishFailureIsNotFatal(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("access denied")}
	f := newPipelineFixture(t, http.StatusOK, verboseBody, WithPublisher(publisher))

	result, err := f.app.RunChapter(context.Background(), f.chapter(), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.CaptionURL)
	assert.FileExists(t, result.CaptionPath)
}

func TestRunChapterWritesMetricsTextfile(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)
	f.config.MetricsTextfile = filepath.Join(t.TempDir(), "chapterscribe.prom")

	_, err := f.app.RunChapter(context.Background(), f.chapter(), RunOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(f.config.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chapterscribe_stage_runs_total{outcome="ok",stage="transcribe"} 1`)
	assert.Contains(t, string(data), `chapterscribe_stage_runs_total{outcome="ok",stage="resolve"} 1`)
}

func TestAppInspect(t *testing.T) {
	f := newPipelineFixture(t, http.StatusOK, verboseBody)

	info, err := f.app.Inspect(context.Background(), f.chapter().Source)
	require.NoError(t, err)
	assert.Len(t, info.Variants, 3)
	assert.Empty(t, f.transcoder.copies)
}
