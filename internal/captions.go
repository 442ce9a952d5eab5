package internal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const vttHeader = "WEBVTT"

// Cue is one timed caption entry
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// CaptionGenerator writes WebVTT caption tracks from transcription results
type CaptionGenerator struct {
	wordsPerSecond float64
	targetSeconds  float64
}

// NewCaptionGenerator creates a generator. The rates only apply when a result
// carries no segments; non-positive values fall back to 2.5 words/s and 5 s cues.
func NewCaptionGenerator(wordsPerSecond, targetSeconds float64) *CaptionGenerator {
	if wordsPerSecond <= 0 {
		wordsPerSecond = 2.5
	}
	if targetSeconds <= 0 {
		targetSeconds = 5
	}
	return &CaptionGenerator{wordsPerSecond: wordsPerSecond, targetSeconds: targetSeconds}
}

// Generate writes the caption track for result to outputPath
func (g *CaptionGenerator) Generate(result *TranscriptionResult, outputPath string) error {
	cues := g.BuildCues(result)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating captions directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".captions-*.vtt")
	if err != nil {
		return fmt.Errorf("creating caption file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := WriteVTT(tmp, cues); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing captions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing caption file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving caption file into place: %w", err)
	}
	return nil
}

// BuildCues uses the result's segments when present and synthesizes cues otherwise
func (g *CaptionGenerator) BuildCues(result *TranscriptionResult) []Cue {
	if result == nil {
		return nil
	}
	if len(result.Segments) > 0 {
		cues := make([]Cue, 0, len(result.Segments))
		for _, s := range result.Segments {
			text := cueText(s.Text)
			if text == "" {
				continue
			}
			cues = append(cues, Cue{Start: s.Start, End: s.End, Text: text})
		}
		return cues
	}
	return g.synthesize(result.Text, result.DurationSeconds)
}

var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

func splitSentences(text string) []string {
	var sentences []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		s := strings.Join(strings.Fields(m), " ")
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// synthesize groups sentences into cues of roughly targetSeconds of speech.
// No cue ends after total; when total is unknown the spoken-time estimate of
// the whole text is used instead.
func (g *CaptionGenerator) synthesize(text string, total float64) []Cue {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	if total <= 0 {
		total = float64(len(strings.Fields(text))) / g.wordsPerSecond
	}

	var cues []Cue
	var current []string
	cueStart, spoken := 0.0, 0.0

	flush := func() {
		start := math.Min(cueStart, total)
		end := math.Min(cueStart+g.targetSeconds, total)
		cues = append(cues, Cue{Start: start, End: end, Text: strings.Join(current, " ")})
		cueStart = end
		current = current[:0]
		spoken = 0
	}

	for _, sentence := range sentences {
		seconds := float64(len(strings.Fields(sentence))) / g.wordsPerSecond
		if len(current) > 0 && spoken+seconds > g.targetSeconds {
			flush()
		}
		current = append(current, sentence)
		spoken += seconds
	}
	if len(current) > 0 {
		flush()
	}
	return cues
}

// WriteVTT writes a WebVTT document with the given cues
func WriteVTT(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n\n", vttHeader)
	for _, c := range cues {
		text := cueText(c.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(bw, "%s --> %s\n%s\n\n", FormatTimestamp(c.Start), FormatTimestamp(c.End), cuePayloadEscaper.Replace(text))
	}
	return bw.Flush()
}

// cueText folds text onto one line; a blank line would end the cue early
// and an arrow would read as a timing line.
func cueText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for strings.Contains(text, "-->") {
		text = strings.ReplaceAll(text, "-->", "->")
	}
	return text
}

var cuePayloadEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;")

// FormatTimestamp renders seconds as HH:MM:SS.mmm
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
