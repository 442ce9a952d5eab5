package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"
)

// ProgressObserver receives human-readable status updates during an upload
type ProgressObserver interface {
	Progress(status string)
}

// ProgressFunc adapts a function to ProgressObserver
type ProgressFunc func(status string)

func (f ProgressFunc) Progress(status string) { f(status) }

// TranscriptionSettings are the fixed parameters of every upload
type TranscriptionSettings struct {
	URL            string
	APIKey         string
	Model          string
	Language       string
	RatePerMinute  float64
	MaxRetries     int
	Timeout        time.Duration
	MaxUploadBytes int64
	MBPerMinute    float64
}

// SettingsFromConfig maps the transcription section of config
func SettingsFromConfig(config *Config) TranscriptionSettings {
	return TranscriptionSettings{
		URL:            config.TranscriptionURL,
		APIKey:         config.OpenAIAPIKey,
		Model:          config.TranscriptionModel,
		Language:       config.Language,
		RatePerMinute:  config.RatePerMinute,
		MaxRetries:     config.MaxRetries,
		Timeout:        config.TranscriptionTimeout,
		MaxUploadBytes: config.MaxUploadBytes,
		MBPerMinute:    config.MBPerMinute,
	}
}

// TranscriptionClient uploads audio to an OpenAI-compatible transcription endpoint
type TranscriptionClient struct {
	settings   TranscriptionSettings
	httpClient *http.Client
	prober     Prober
	ledger     CostLedger
	observer   ProgressObserver
	timer      backoff.Timer
	metrics    *Metrics
	logger     zerolog.Logger
}

// TranscriptionOption configures a TranscriptionClient
type TranscriptionOption func(*TranscriptionClient)

// WithHTTPClient overrides the HTTP client used for uploads
func WithHTTPClient(client *http.Client) TranscriptionOption {
	return func(c *TranscriptionClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxRetries bounds the number of upload attempts
func WithMaxRetries(attempts int) TranscriptionOption {
	return func(c *TranscriptionClient) {
		if attempts > 0 {
			c.settings.MaxRetries = attempts
		}
	}
}

// WithProber sets the duration probe; without one durations are estimated from file size
func WithProber(prober Prober) TranscriptionOption {
	return func(c *TranscriptionClient) { c.prober = prober }
}

// WithLedger records the cost of each successful transcription
func WithLedger(ledger CostLedger) TranscriptionOption {
	return func(c *TranscriptionClient) { c.ledger = ledger }
}

// WithObserver sets the default progress observer
func WithObserver(observer ProgressObserver) TranscriptionOption {
	return func(c *TranscriptionClient) { c.observer = observer }
}

// WithTimer replaces the backoff timer, letting tests skip the waits
func WithTimer(timer backoff.Timer) TranscriptionOption {
	return func(c *TranscriptionClient) { c.timer = timer }
}

// WithMetrics counts attempts and cost
func WithMetrics(metrics *Metrics) TranscriptionOption {
	return func(c *TranscriptionClient) { c.metrics = metrics }
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) TranscriptionOption {
	return func(c *TranscriptionClient) { c.logger = logger }
}

// NewTranscriptionClient creates a client from settings and options
func NewTranscriptionClient(settings TranscriptionSettings, opts ...TranscriptionOption) *TranscriptionClient {
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 3
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Minute
	}
	if settings.MaxUploadBytes <= 0 {
		settings.MaxUploadBytes = WhisperLimit
	}
	if settings.MBPerMinute <= 0 {
		settings.MBPerMinute = 0.94
	}

	c := &TranscriptionClient{
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.Timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "transcription").Logger()
	return c
}

// EstimateCost prices a transcription of the given length
func EstimateCost(minutes, ratePerMinute float64) float64 {
	return minutes * ratePerMinute
}

// EstimateDuration guesses seconds of audio from its size at mbPerMinute
func EstimateDuration(sizeBytes int64, mbPerMinute float64) float64 {
	if mbPerMinute <= 0 {
		return 0
	}
	mb := float64(sizeBytes) / (1 << 20)
	return mb / mbPerMinute * 60
}

// Transcribe uploads artifact and records its cost against chapterID
func (c *TranscriptionClient) Transcribe(ctx context.Context, artifact MediaArtifact, chapterID int64) (*TranscriptionResult, error) {
	return c.TranscribeWithProgress(ctx, artifact, chapterID, c.observer)
}

// TranscribeWithProgress is Transcribe reporting to observer instead of the default
func (c *TranscriptionClient) TranscribeWithProgress(ctx context.Context, artifact MediaArtifact, chapterID int64, observer ProgressObserver) (*TranscriptionResult, error) {
	if c.settings.APIKey == "" {
		return nil, wrapErr(ErrNotConfigured, "OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable", nil)
	}

	info, err := os.Stat(artifact.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, wrapErr(ErrFileNotFound, artifact.Path, nil)
		}
		return nil, fmt.Errorf("checking %s: %w", artifact.Path, err)
	}
	if info.Size() > c.settings.MaxUploadBytes {
		return nil, wrapErr(ErrFileTooLarge, fmt.Sprintf("%s is %.1f MB, the limit is %.1f MB",
			filepath.Base(artifact.Path), megabytes(info.Size()), megabytes(c.settings.MaxUploadBytes)), nil)
	}

	seconds := c.measureDuration(ctx, artifact.Path, info.Size())
	minutes := seconds / 60
	cost := EstimateCost(minutes, c.settings.RatePerMinute)
	c.logger.Info().
		Int64("chapter_id", chapterID).
		Float64("minutes", minutes).
		Float64("estimated_cost", cost).
		Msg("transcribing")

	audio, err := readAudio(artifact.Path)
	if err != nil {
		return nil, err
	}

	payload, err := c.upload(ctx, artifact.Path, audio, observer)
	if err != nil {
		return nil, err
	}

	result, err := parseTranscription(payload)
	if err != nil {
		return nil, err
	}
	result.DurationSeconds = seconds
	result.Cost = cost

	c.metrics.AddCost(cost)
	if c.ledger != nil {
		if err := c.ledger.Log(ctx, chapterID, minutes, cost); err != nil {
			return result, wrapErr(ErrLedger, "recording cost", err)
		}
	}
	return result, nil
}

func (c *TranscriptionClient) measureDuration(ctx context.Context, path string, size int64) float64 {
	if c.prober != nil {
		d, err := c.prober.Duration(ctx, path)
		if err == nil && d > 0 {
			return d
		}
		c.logger.Warn().Err(err).Str("path", path).Msg("probing duration failed, estimating from size")
	}
	return EstimateDuration(size, c.settings.MBPerMinute)
}

// audioUpload is an in-memory copy of the audio file so every attempt can resend it.
// Filename names the multipart part.
type audioUpload struct {
	*bytes.Reader
	name string
}

func (a audioUpload) Filename() string { return a.name }

func readAudio(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}
	return data, nil
}

// transcriptionBaseURL turns the configured endpoint into the SDK base URL
func transcriptionBaseURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if base, ok := strings.CutSuffix(endpoint, "/audio/transcriptions"); ok {
		return base + "/"
	}
	return endpoint + "/"
}

func (c *TranscriptionClient) upload(ctx context.Context, path string, audio []byte, observer ProgressObserver) ([]byte, error) {
	client := openai.NewClient(
		option.WithAPIKey(c.settings.APIKey),
		option.WithBaseURL(transcriptionBaseURL(c.settings.URL)),
		option.WithHTTPClient(c.httpClient),
		// attempts are counted and spaced by the backoff policy below
		option.WithMaxRetries(0),
	)

	params := openai.AudioTranscriptionNewParams{
		Model:          openai.AudioModel(c.settings.Model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if c.settings.Language != "" {
		params.Language = openai.String(c.settings.Language)
	}

	maxAttempts := c.settings.MaxRetries
	attempt := 0
	var payload []byte

	op := func() error {
		attempt++
		report(observer, fmt.Sprintf("Uploading audio (attempt %d/%d)", attempt, maxAttempts))

		params.File = audioUpload{Reader: bytes.NewReader(audio), name: filepath.Base(path)}
		var (
			body []byte
			raw  *http.Response
		)
		_, err := client.Audio.Transcriptions.New(ctx, params,
			option.WithResponseBodyInto(&body),
			option.WithResponseInto(&raw))
		if err == nil {
			c.metrics.ObserveAttempt(strconv.Itoa(http.StatusOK))
			report(observer, "Transcription received")
			payload = body
			return nil
		}

		apiErr := classifyUploadError(err, raw)
		if apiErr == nil {
			c.metrics.ObserveAttempt("transport_error")
			report(observer, "Upload failed: "+err.Error())
			return backoff.Permanent(wrapErr(ErrTransport, "posting audio", err))
		}
		c.metrics.ObserveAttempt(strconv.Itoa(apiErr.StatusCode))
		if apiErr.Transient() {
			report(observer, fmt.Sprintf("Service returned HTTP %d", apiErr.StatusCode))
			return apiErr
		}
		report(observer, fmt.Sprintf("Service rejected the upload: %s", apiErr))
		return backoff.Permanent(fmt.Errorf("%w: %w", ErrPermanentAPI, apiErr))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&doublingBackOff{}, uint64(maxAttempts-1)), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("transient transcription failure")
		report(observer, fmt.Sprintf("Retrying in %s", wait))
	}

	if err := backoff.RetryNotifyWithTimer(op, policy, notify, c.timer); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Transient() && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrTransientExhausted, attempt, apiErr)
		}
		return nil, err
	}
	return payload, nil
}

// classifyUploadError returns the service's status and message, or nil when the
// request never got an HTTP response
func classifyUploadError(err error, raw *http.Response) *APIError {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		msg := oaiErr.Message
		if msg == "" {
			msg = responseMessage(oaiErr.Response)
		}
		return &APIError{StatusCode: oaiErr.StatusCode, Message: msg}
	}
	// bodies without an error envelope fail SDK decoding but still carry a status
	if raw != nil && raw.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: raw.StatusCode, Message: responseMessage(raw)}
	}
	return nil
}

func responseMessage(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return apiErrorMessage(data)
}

// doublingBackOff waits 2^n seconds before the n-th retry
type doublingBackOff struct {
	n int
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(math.Pow(2, float64(b.n))) * time.Second
}

func (b *doublingBackOff) Reset() { b.n = 0 }

type verboseTranscription struct {
	Text     *string   `json:"text"`
	Segments []Segment `json:"segments"`
}

func parseTranscription(data []byte) (*TranscriptionResult, error) {
	var resp verboseTranscription
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, wrapErr(ErrMalformedResponse, "decoding response", err)
	}
	if resp.Text == nil {
		return nil, wrapErr(ErrMalformedResponse, "response has no text field", nil)
	}
	return &TranscriptionResult{
		Text:     strings.TrimSpace(*resp.Text),
		Segments: normalizeSegments(resp.Segments),
	}, nil
}

// normalizeSegments orders segments by start and makes every end >= its start
func normalizeSegments(segments []Segment) []Segment {
	if len(segments) == 0 {
		return nil
	}
	out := slices.Clone(segments)
	slices.SortStableFunc(out, func(a, b Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
	for i := range out {
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start
		}
	}
	return out
}

const maxErrorMessage = 500

func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

func report(observer ProgressObserver, status string) {
	if observer != nil {
		observer.Progress(status)
	}
}

func megabytes(n int64) float64 {
	return float64(n) / (1 << 20)
}
