package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type transcodeCall struct {
	Input   string
	Output  string
	Headers map[string]string
}

// fakeTranscoder writes a placeholder file at the requested output
type fakeTranscoder struct {
	mu       sync.Mutex
	copies   []transcodeCall
	extracts []transcodeCall
	err      error
}

func (f *fakeTranscoder) CopyToContainer(ctx context.Context, input, output string, headers map[string]string) error {
	f.mu.Lock()
	f.copies = append(f.copies, transcodeCall{Input: input, Output: output, Headers: headers})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("video"), 0644)
}

func (f *fakeTranscoder) ExtractAudio(ctx context.Context, input, output string, spec AudioSpec) error {
	f.mu.Lock()
	f.extracts = append(f.extracts, transcodeCall{Input: input, Output: output})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("audio"), 0644)
}

type fakeProber struct {
	seconds float64
	err     error
}

func (p fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	return p.seconds, p.err
}

// memLedger is an in-memory CostLedger
type memLedger struct {
	mu      sync.Mutex
	entries []CostLogEntry
	err     error
}

func (l *memLedger) Log(ctx context.Context, chapterID int64, durationMinutes, cost float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, CostLogEntry{
		ID:              int64(len(l.entries) + 1),
		ChapterID:       chapterID,
		DurationMinutes: durationMinutes,
		Cost:            cost,
		CreatedAt:       time.Now().UTC(),
	})
	return nil
}

func (l *memLedger) TotalCost(ctx context.Context) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, e := range l.entries {
		total += e.Cost
	}
	return total, nil
}

func (l *memLedger) ChapterCost(ctx context.Context, chapterID int64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, e := range l.entries {
		if e.ChapterID == chapterID {
			total += e.Cost
		}
	}
	return total, nil
}

func (l *memLedger) Entries(ctx context.Context, chapterID *int64) ([]CostLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []CostLogEntry
	for _, e := range l.entries {
		if chapterID == nil || e.ChapterID == *chapterID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memLedger) Close() error { return nil }

func (l *memLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// instantTimer fires immediately and remembers the requested waits
type instantTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

// statusLog collects progress messages
type statusLog struct {
	mu       sync.Mutex
	messages []string
}

func (s *statusLog) Progress(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, status)
}

func (s *statusLog) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func writeTestFile(t *testing.T, path string, size int64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		TranscriptionModel: "whisper-1",
		Language:           "en",
		RatePerMinute:      0.006,
		MaxRetries:         3,
		MaxUploadBytes:     WhisperLimit,
		MBPerMinute:        0.94,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		MediaDir:           filepath.Join(dir, "media"),
		CaptionsDir:        filepath.Join(dir, "captions"),
		WordsPerSecond:     2.5,
		TargetCueSeconds:   5,
		DataDir:            dir,
		CacheDir:           dir,
		ConfigDir:          dir,
	}
}
