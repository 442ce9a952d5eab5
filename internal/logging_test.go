package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mcp.log")
	logger, closer, err := NewLogger(LogOptions{Level: "debug", File: path, FileOnly: true}, os.Stderr)
	require.NoError(t, err)

	logger.Debug().Str("tool", "total_cost").Msg("called")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "total_cost", entry["tool"])
	assert.Equal(t, "called", entry["message"])
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		opts LogOptions
		want zerolog.Level
	}{
		{LogOptions{Level: "warn"}, zerolog.WarnLevel},
		{LogOptions{Level: "bogus"}, zerolog.InfoLevel},
		{LogOptions{}, zerolog.InfoLevel},
		{LogOptions{Level: "error", Verbose: true}, zerolog.DebugLevel},
		{LogOptions{Level: "info", Quiet: true}, zerolog.WarnLevel},
		{LogOptions{Level: "error", Quiet: true}, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		tt.opts.Format = "json"
		logger, closer, err := NewLogger(tt.opts, os.Stderr)
		require.NoError(t, err)
		assert.Equal(t, tt.want, logger.GetLevel(), "%+v", tt.opts)
		require.NoError(t, closer.Close())
	}
}

func TestNewLoggerWithoutSinks(t *testing.T) {
	logger, closer, err := NewLogger(LogOptions{FileOnly: true}, os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
	assert.NoError(t, closer.Close())
}
