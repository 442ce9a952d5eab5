package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const appName = "chapterscribe"

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Config holds application settings
type Config struct {
	// Speech-to-text service
	OpenAIAPIKey         string
	TranscriptionURL     string
	TranscriptionModel   string
	Language             string
	RatePerMinute        float64
	MaxRetries           int
	TranscriptionTimeout time.Duration
	MaxUploadBytes       int64
	MBPerMinute          float64

	// Video sources
	HLSReferer     string
	HLSUserAgent   string
	HostedAPIURL   string
	HostedAPIToken string

	// External tools
	FFmpegPath  string
	FFprobePath string

	// Artifacts and captions
	MediaDir         string
	CaptionsDir      string
	WordsPerSecond   float64
	TargetCueSeconds float64

	// Cost ledger; empty means the local SQLite file
	LedgerDSN string

	// Optional caption mirror
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	MetricsTextfile string

	LogLevel  string
	LogFormat string
	LogFile   string
	Verbose   bool
	Quiet     bool

	// Fixed XDG paths (not configurable)
	ConfigDir      string
	DataDir        string
	CacheDir       string
	ConfigFileUsed string
}

//go:embed config.toml
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by the speech-to-text service (25 MiB)
const WhisperLimit int64 = 25 << 20

// LedgerPath is the SQLite ledger location used when no DSN is configured
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Validate checks settings that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	switch {
	case c.MaxRetries < 1:
		return wrapErr(ErrValidation, "transcription.max_retries must be at least 1", nil)
	case c.RatePerMinute < 0:
		return wrapErr(ErrValidation, "transcription.rate_per_minute must not be negative", nil)
	case c.MBPerMinute <= 0:
		return wrapErr(ErrValidation, "transcription.mb_per_minute must be positive", nil)
	case c.WordsPerSecond <= 0:
		return wrapErr(ErrValidation, "captions.words_per_second must be positive", nil)
	case c.TargetCueSeconds <= 0:
		return wrapErr(ErrValidation, "captions.target_cue_seconds must be positive", nil)
	case c.MaxUploadBytes <= 0:
		return wrapErr(ErrValidation, "transcription.max_upload_mb must be positive", nil)
	}
	return nil
}

// ensureDefaultFile checks if a file exists in the specified directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(configDir, embedFilename, description string) (bool, error) {
	filePath := filepath.Join(configDir, embedFilename)
	if FileExists(filePath) {
		return false, nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return false, fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return false, fmt.Errorf("writing default %s: %w", description, err)
	}
	return true, nil
}

// EnsureDefaultConfig writes the embedded config.toml to configDir unless one exists.
// It reports whether a file was created.
func EnsureDefaultConfig(configDir string) (bool, error) {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

type xdgDirs struct {
	config string
	data   string
	cache  string
}

func defaultDirs() xdgDirs {
	return xdgDirs{
		config: filepath.Join(xdg.ConfigHome, appName),
		data:   filepath.Join(xdg.DataHome, appName),
		cache:  filepath.Join(xdg.CacheHome, appName),
	}
}

func newViper(dirs xdgDirs) *viper.Viper {
	v := viper.New()

	v.SetDefault("transcription.url", "https://api.openai.com/v1/audio/transcriptions")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.rate_per_minute", 0.006)
	v.SetDefault("transcription.max_retries", 3)
	v.SetDefault("transcription.timeout", 30*time.Minute)
	v.SetDefault("transcription.max_upload_mb", 25)
	v.SetDefault("transcription.mb_per_minute", 0.94)
	v.SetDefault("hls.referer", "https://www.jazzedu.com/")
	v.SetDefault("hls.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("hosted.api_url", "https://api.vimeo.com")
	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.ffprobe", "ffprobe")
	v.SetDefault("media_dir", filepath.Join(dirs.data, "media"))
	v.SetDefault("captions_dir", filepath.Join(dirs.data, "captions"))
	v.SetDefault("captions.words_per_second", 2.5)
	v.SetDefault("captions.target_cue_seconds", 5.0)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "captions")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dirs.config)
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHAPTERSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai_api_key", "CHAPTERSCRIBE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("hosted.token", "CHAPTERSCRIBE_HOSTED_TOKEN", "HOSTED_API_TOKEN")

	return v
}

// LoadConfig reads configuration from defaults, the config file, .env and the environment.
// An explicit configFile replaces the XDG and working directory lookup.
func LoadConfig(configFile string) (*Config, error) {
	return loadConfig(configFile, defaultDirs())
}

func loadConfig(configFile string, dirs xdgDirs) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper(dirs)
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	config := &Config{
		OpenAIAPIKey:         v.GetString("openai_api_key"),
		TranscriptionURL:     v.GetString("transcription.url"),
		TranscriptionModel:   v.GetString("transcription.model"),
		Language:             v.GetString("transcription.language"),
		RatePerMinute:        v.GetFloat64("transcription.rate_per_minute"),
		MaxRetries:           v.GetInt("transcription.max_retries"),
		TranscriptionTimeout: v.GetDuration("transcription.timeout"),
		MaxUploadBytes:       int64(v.GetFloat64("transcription.max_upload_mb") * (1 << 20)),
		MBPerMinute:          v.GetFloat64("transcription.mb_per_minute"),

		HLSReferer:     v.GetString("hls.referer"),
		HLSUserAgent:   v.GetString("hls.user_agent"),
		HostedAPIURL:   strings.TrimRight(v.GetString("hosted.api_url"), "/"),
		HostedAPIToken: v.GetString("hosted.token"),

		FFmpegPath:  v.GetString("tools.ffmpeg"),
		FFprobePath: v.GetString("tools.ffprobe"),

		MediaDir:         v.GetString("media_dir"),
		CaptionsDir:      v.GetString("captions_dir"),
		WordsPerSecond:   v.GetFloat64("captions.words_per_second"),
		TargetCueSeconds: v.GetFloat64("captions.target_cue_seconds"),

		LedgerDSN: v.GetString("ledger.dsn"),

		S3Bucket:    v.GetString("s3.bucket"),
		S3Region:    v.GetString("s3.region"),
		S3Endpoint:  v.GetString("s3.endpoint"),
		S3AccessKey: v.GetString("s3.access_key"),
		S3SecretKey: v.GetString("s3.secret_key"),
		S3Prefix:    v.GetString("s3.prefix"),

		MetricsTextfile: v.GetString("metrics.textfile"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		LogFile:   v.GetString("log.file"),
		Verbose:   v.GetBool("verbose"),
		Quiet:     v.GetBool("quiet"),

		ConfigDir:      dirs.config,
		DataDir:        dirs.data,
		CacheDir:       dirs.cache,
		ConfigFileUsed: v.ConfigFileUsed(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
