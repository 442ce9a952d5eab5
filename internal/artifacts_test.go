package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Blues Scales", "blues-scales"},
		{"  Comping: Part 2!  ", "comping-part-2"},
		{"Déjà vu à la Django", "deja-vu-a-la-django"},
		{"???", "untitled"},
		{"", "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeTitle(tt.title), "title=%q", tt.title)
	}

	long := SanitizeTitle(strings.Repeat("walking bass ", 20))
	assert.LessOrEqual(t, len(long), 60)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestArtifactPathIsDeterministic(t *testing.T) {
	ref := ChapterRef{LessonID: 12, ChapterID: 34, Title: "Blues Scales", Source: HostedSource{VideoID: "1"}}

	assert.Equal(t, filepath.Join("/data", "lesson-12", "chapter-34-blues-scales.mp4"), ArtifactPath("/data", ref, ArtifactVideo))
	assert.Equal(t, filepath.Join("/data", "lesson-12", "chapter-34-blues-scales.mp3"), ArtifactPath("/data", ref, ArtifactAudio))
	assert.Equal(t, ArtifactPath("/data", ref, ArtifactVideo), ArtifactPath("/data", ref, ArtifactVideo))

	other := ref
	other.ChapterID = 35
	assert.NotEqual(t, ArtifactPath("/data", ref, ArtifactVideo), ArtifactPath("/data", other, ArtifactVideo))
}

func TestSwapExt(t *testing.T) {
	assert.Equal(t, "/m/chapter-1-a.mp3", swapExt("/m/chapter-1-a.mp4", ArtifactAudio))
	assert.Equal(t, "/m/chapter-1-a.part.mp4", partialPath("/m/chapter-1-a.mp4"))
}

func TestProduceRenamesOnSuccess(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "chapter-1-a.mp4")

	err := produce(target, func(tmp string) error {
		assert.Equal(t, partialPath(target), tmp)
		return os.WriteFile(tmp, []byte("data"), 0644)
	})
	require.NoError(t, err)
	assert.FileExists(t, target)
	assert.NoFileExists(t, partialPath(target))
}

func TestProduceLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "chapter-1-a.mp4")
	boom := errors.New("boom")

	err := produce(target, func(tmp string) error {
		require.NoError(t, os.WriteFile(tmp, []byte("trunc"), 0644))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, target)
	assert.NoFileExists(t, partialPath(target))
}

func TestCleanupPartials(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "lesson-1", "chapter-1-a.part.mp4"), 10)
	writeTestFile(t, filepath.Join(root, "lesson-1", "chapter-1-a.part.mp3"), 10)
	writeTestFile(t, filepath.Join(root, "lesson-1", "chapter-2-b.mp4"), 10)

	removed, err := CleanupPartials(root)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.FileExists(t, filepath.Join(root, "lesson-1", "chapter-2-b.mp4"))

	removed, err = CleanupPartials(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestIsFresh(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "a.mp4")
	target := filepath.Join(dir, "a.mp3")
	writeTestFile(t, source, 1)

	assert.False(t, isFresh(target, source))

	writeTestFile(t, target, 1)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(source, old, old))
	assert.True(t, isFresh(target, source))

	require.NoError(t, os.Chtimes(target, old.Add(-time.Hour), old.Add(-time.Hour)))
	assert.False(t, isFresh(target, source))
}
