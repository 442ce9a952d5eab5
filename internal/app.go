package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// App holds the pipeline components and their shared dependencies
type App struct {
	config *Config
	logger zerolog.Logger
	ui     UIManager

	resolver    *Resolver
	extractor   *AudioExtractor
	transcriber *TranscriptionClient
	captions    *CaptionGenerator
	ledger      CostLedger
	publisher   CaptionPublisher
	metrics     *Metrics
	toolCheck   func() error
}

// AppOption customizes App creation
type AppOption func(*App)

// WithCostLedger sets the ledger charged for each transcription
func WithCostLedger(ledger CostLedger) AppOption {
	return func(a *App) { a.ledger = ledger }
}

// WithResolver sets a custom video resolver
func WithResolver(resolver *Resolver) AppOption {
	return func(a *App) { a.resolver = resolver }
}

// WithExtractor sets a custom audio extractor
func WithExtractor(extractor *AudioExtractor) AppOption {
	return func(a *App) { a.extractor = extractor }
}

// WithTranscriber sets a custom transcription client
func WithTranscriber(client *TranscriptionClient) AppOption {
	return func(a *App) { a.transcriber = client }
}

// WithPublisher mirrors captions after each run
func WithPublisher(publisher CaptionPublisher) AppOption {
	return func(a *App) { a.publisher = publisher }
}

// WithAppMetrics records stage metrics
func WithAppMetrics(metrics *Metrics) AppOption {
	return func(a *App) { a.metrics = metrics }
}

// WithUI sets the user interface manager
func WithUI(ui UIManager) AppOption {
	return func(a *App) { a.ui = ui }
}

// WithToolCheck replaces the check for external binaries run before each pipeline
func WithToolCheck(check func() error) AppOption {
	return func(a *App) { a.toolCheck = check }
}

// NewApp wires the pipeline from config. Components not supplied as options
// are built from config with the ffmpeg binaries as transcoder and prober.
func NewApp(config *Config, logger zerolog.Logger, options ...AppOption) *App {
	app := &App{config: config, logger: logger}
	for _, option := range options {
		option(app)
	}

	if app.ui == nil {
		app.ui = NewUIManager(config.Verbose, config.Quiet)
	}
	if app.metrics == nil {
		app.metrics = NewMetrics()
	}
	if app.toolCheck == nil {
		app.toolCheck = func() error {
			return RequireTools(CheckTools(PipelineTools(config)))
		}
	}

	ffmpeg := NewFFmpeg(&DefaultCommandRunner{}, config.FFmpegPath, config.FFprobePath, logger)
	sourceHTTP := &http.Client{Timeout: time.Minute}

	if app.resolver == nil {
		app.resolver = NewResolver(config.MediaDir,
			NewHLSClient(sourceHTTP, config.HLSReferer, config.HLSUserAgent),
			NewHostedClient(sourceHTTP, config.HostedAPIURL, config.HostedAPIToken),
			ffmpeg, logger)
	}
	if app.extractor == nil {
		app.extractor = NewAudioExtractor(ffmpeg, DefaultAudioSpec, logger)
	}
	if app.transcriber == nil {
		app.transcriber = NewTranscriptionClient(SettingsFromConfig(config),
			WithProber(ffmpeg),
			WithLedger(app.ledger),
			WithMetrics(app.metrics),
			WithLogger(logger))
	}
	app.captions = NewCaptionGenerator(config.WordsPerSecond, config.TargetCueSeconds)

	return app
}

// RunOptions adjusts a single pipeline run
type RunOptions struct {
	// Force transcribes again even when a fresh caption file exists.
	Force bool
	// DownloadOnly stops after the audio artifact is ready.
	DownloadOnly bool
	ShowProgress bool
}

// ChapterResult is what one pipeline run produced
type ChapterResult struct {
	RunID         string               `json:"run_id"`
	Chapter       ChapterRef           `json:"-"`
	Video         MediaArtifact        `json:"video"`
	Audio         MediaArtifact        `json:"audio"`
	CaptionPath   string               `json:"caption_path,omitempty"`
	CaptionURL    string               `json:"caption_url,omitempty"`
	Transcription *TranscriptionResult `json:"transcription,omitempty"`
	Cached        bool                 `json:"cached"`
}

// CaptionPath is where the caption track for ref is written
func (app *App) CaptionPath(ref ChapterRef) string {
	return ArtifactPath(app.config.CaptionsDir, ref, ArtifactCaption)
}

// RunChapter runs resolve, extract, transcribe and caption for one chapter.
// Artifacts from completed stages are kept when a later stage fails.
func (app *App) RunChapter(ctx context.Context, ref ChapterRef, opts RunOptions) (*ChapterResult, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	result := &ChapterResult{RunID: uuid.NewString(), Chapter: ref}
	logger := app.logger.With().
		Str("run_id", result.RunID).
		Int64("lesson_id", ref.LessonID).
		Int64("chapter_id", ref.ChapterID).
		Logger()
	defer app.finishRun(logger)

	if err := app.toolCheck(); err != nil {
		return nil, err
	}
	logger.Info().Str("chapter", ref.String()).Msg("pipeline started")

	err := app.stage(logger, "resolve", func() (bool, error) {
		cached := FileExists(app.resolver.VideoPath(ref))
		spinner := app.spinner(opts, "Downloading video")
		defer spinner.Finish()

		video, err := app.resolver.Resolve(ctx, ref)
		result.Video = video
		return cached, err
	})
	if err != nil {
		return result, err
	}

	err = app.stage(logger, "extract", func() (bool, error) {
		cached := isFresh(swapExt(result.Video.Path, ArtifactAudio), result.Video.Path)
		spinner := app.spinner(opts, "Extracting audio")
		defer spinner.Finish()

		audio, err := app.extractor.Extract(ctx, result.Video)
		result.Audio = audio
		return cached, err
	})
	if err != nil || opts.DownloadOnly {
		return result, err
	}

	captionPath := app.CaptionPath(ref)
	if !opts.Force && isFresh(captionPath, result.Audio.Path) {
		logger.Info().Str("path", captionPath).Msg("captions already up to date")
		app.metrics.ObserveStage("transcribe", "cached", 0)
		result.CaptionPath = captionPath
		result.Cached = true
		return result, nil
	}

	// a paid transcription whose cost row failed still gets its captions
	var ledgerErr error
	err = app.stage(logger, "transcribe", func() (bool, error) {
		spinner := app.spinner(opts, "Transcribing audio")
		defer spinner.Finish()

		transcription, err := app.transcriber.TranscribeWithProgress(ctx, result.Audio, ref.ChapterID, spinnerObserver{spinner})
		result.Transcription = transcription
		if transcription != nil && errors.Is(err, ErrLedger) {
			ledgerErr = err
			return false, nil
		}
		return false, err
	})
	if err != nil {
		return result, err
	}

	err = app.stage(logger, "captions", func() (bool, error) {
		return false, app.captions.Generate(result.Transcription, captionPath)
	})
	if err != nil {
		return result, err
	}
	result.CaptionPath = captionPath

	if app.publisher != nil {
		url, err := app.publisher.Publish(ctx, captionKey(ref), captionPath)
		if err != nil {
			app.metrics.ObserveStage("publish", "error", 0)
			logger.Warn().Err(err).Msg("publishing captions failed, local file kept")
		} else {
			app.metrics.ObserveStage("publish", "ok", 0)
			result.CaptionURL = url
		}
	}
	if ledgerErr != nil {
		logger.Error().Err(ledgerErr).Float64("cost", result.Transcription.Cost).Msg("transcription cost not recorded")
		return result, fmt.Errorf("transcribe: %w", ledgerErr)
	}
	return result, nil
}

// ResolveOnly downloads the video and extracts its audio without transcribing
func (app *App) ResolveOnly(ctx context.Context, ref ChapterRef, showProgress bool) (*ChapterResult, error) {
	return app.RunChapter(ctx, ref, RunOptions{DownloadOnly: true, ShowProgress: showProgress})
}

func (app *App) stage(logger zerolog.Logger, name string, fn func() (bool, error)) error {
	start := time.Now()
	cached, err := fn()
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case cached:
		outcome = "cached"
	}
	app.metrics.ObserveStage(name, outcome, elapsed)

	if err != nil {
		logger.Error().Err(err).Str("stage", name).Dur("elapsed", elapsed).Msg("stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Info().Str("stage", name).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("stage finished")
	return nil
}

func (app *App) spinner(opts RunOptions, description string) ProgressBar {
	if !opts.ShowProgress {
		return &SilentProgressBar{}
	}
	return app.ui.NewSpinner(description)
}

func (app *App) finishRun(logger zerolog.Logger) {
	app.metrics.MarkRun(time.Now())
	if err := app.metrics.WriteTextfile(app.config.MetricsTextfile); err != nil {
		logger.Warn().Err(err).Msg("metrics not written")
	}
}

// Inspect lists what a source offers without downloading it
func (app *App) Inspect(ctx context.Context, src SourceRef) (*SourceInfo, error) {
	return app.resolver.Inspect(ctx, src)
}

// ReadCaptions returns the caption file content for ref
func (app *App) ReadCaptions(ref ChapterRef) (string, error) {
	data, err := os.ReadFile(app.CaptionPath(ref))
	if err != nil {
		return "", fmt.Errorf("reading captions: %w", err)
	}
	return string(data), nil
}

// Ledger returns the cost ledger, which may be nil
func (app *App) Ledger() CostLedger {
	return app.ledger
}

// UI returns the user interface manager
func (app *App) UI() UIManager {
	return app.ui
}
