package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// LogOptions selects where and how the logger writes
type LogOptions struct {
	Level  string
	Format string // auto, console or json
	File   string
	// FileOnly drops the stderr sink, for the MCP stdio server.
	FileOnly bool
	Verbose  bool
	Quiet    bool
}

// LogOptionsFromConfig maps the log section of config
func LogOptionsFromConfig(config *Config) LogOptions {
	return LogOptions{
		Level:   config.LogLevel,
		Format:  config.LogFormat,
		File:    config.LogFile,
		Verbose: config.Verbose,
		Quiet:   config.Quiet,
	}
}

// NewLogger builds the application logger. The returned closer releases the
// log file, if any.
func NewLogger(opts LogOptions, stderr *os.File) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	switch {
	case opts.Verbose:
		level = zerolog.DebugLevel
	case opts.Quiet && level < zerolog.WarnLevel:
		level = zerolog.WarnLevel
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if !opts.FileOnly && stderr != nil {
		writers = append(writers, consoleOrJSON(opts.Format, stderr))
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

func consoleOrJSON(format string, f *os.File) io.Writer {
	switch strings.ToLower(format) {
	case "json":
		return f
	case "console":
		return zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return f
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
