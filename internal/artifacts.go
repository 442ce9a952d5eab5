package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugRunes = 60

// SanitizeTitle turns a chapter title into a lowercase ASCII slug
func SanitizeTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugRunes {
		slug = strings.TrimRight(slug[:maxSlugRunes], "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// ArtifactPath returns the deterministic location of a chapter artifact under root
func ArtifactPath(root string, ref ChapterRef, kind ArtifactKind) string {
	name := fmt.Sprintf("chapter-%d-%s.%s", ref.ChapterID, SanitizeTitle(ref.Title), kind.Ext())
	return filepath.Join(root, fmt.Sprintf("lesson-%d", ref.LessonID), name)
}

// swapExt replaces the extension of path with the one for kind
func swapExt(path string, kind ArtifactKind) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + kind.Ext()
}

const partialMarker = ".part"

// partialPath is where a stage writes before moving its output into place
func partialPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + partialMarker + ext
}

// produce runs write against a partial file and renames it to path once it
// exists, so an interrupted run never leaves a file that looks complete.
func produce(path string, write func(tmp string) error) error {
	tmp := partialPath(path)
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale partial file: %w", err)
	}
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("moving %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

// CleanupPartials removes partial files left under root by interrupted runs
func CleanupPartials(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.Contains(d.Name(), partialMarker+".") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}

// isFresh reports whether target exists and is not older than source
func isFresh(target, source string) bool {
	ti, err := os.Stat(target)
	if err != nil {
		return false
	}
	si, err := os.Stat(source)
	if err != nil {
		return false
	}
	return !ti.ModTime().Before(si.ModTime())
}
