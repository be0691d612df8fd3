// Package caption groups word timings into short, readable caption chunks.
package caption

import (
	"fmt"
	"math"
	"strings"

	"ai-course-media-service/internal/models"
)

// Chunk sizing and pause thresholds.
const (
	MinWords    = 2
	TargetWords = 3
	MaxWords    = 5

	ShortPause = 0.3 // seconds
	LongPause  = 0.6 // seconds
)

// Config holds the segmentation thresholds.
type Config struct {
	MinWords    int
	TargetWords int
	MaxWords    int
	ShortPause  float64
	LongPause   float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinWords:    MinWords,
		TargetWords: TargetWords,
		MaxWords:    MaxWords,
		ShortPause:  ShortPause,
		LongPause:   LongPause,
	}
}

// Segmenter splits word sequences into caption chunks.
type Segmenter struct {
	cfg Config
}

// NewSegmenter creates a Segmenter. Zero fields take their defaults.
func NewSegmenter(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.MinWords <= 0 {
		cfg.MinWords = def.MinWords
	}
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = def.TargetWords
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = def.MaxWords
	}
	if cfg.ShortPause <= 0 {
		cfg.ShortPause = def.ShortPause
	}
	if cfg.LongPause <= 0 {
		cfg.LongPause = def.LongPause
	}
	return &Segmenter{cfg: cfg}
}

// Segment splits words with the default thresholds.
func Segment(words []models.WordTiming) []models.CaptionChunk {
	return NewSegmenter(DefaultConfig()).Segment(words)
}

// Segment walks words in order and closes the pending chunk, once it holds
// MinWords, on the first rule that matches:
//
//	final word of the input
//	sentence end, and a short pause follows or TargetWords is reached
//	clause end, TargetWords reached, and a short pause follows
//	long pause follows and TargetWords is reached
//	MaxWords reached
//
// Every input word lands in exactly one chunk.
func (s *Segmenter) Segment(words []models.WordTiming) []models.CaptionChunk {
	if len(words) == 0 {
		return []models.CaptionChunk{}
	}

	chunks := make([]models.CaptionChunk, 0, len(words)/s.cfg.TargetWords+1)
	start := 0
	for i := range words {
		n := i - start + 1
		if !s.shouldClose(words, i, n) {
			continue
		}
		chunks = append(chunks, newChunk(words[start:i+1]))
		start = i + 1
	}
	return chunks
}

func (s *Segmenter) shouldClose(words []models.WordTiming, i, n int) bool {
	if i == len(words)-1 {
		return true
	}
	if n < s.cfg.MinWords {
		return false
	}

	text := words[i].Text
	gap := words[i+1].Start - words[i].End
	target := n >= s.cfg.TargetWords

	switch {
	case endsSentence(text) && (gap > s.cfg.ShortPause || target):
		return true
	case endsClause(text) && target && gap > s.cfg.ShortPause:
		return true
	case gap > s.cfg.LongPause && target:
		return true
	}
	return n >= s.cfg.MaxWords
}

func newChunk(words []models.WordTiming) models.CaptionChunk {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = strings.TrimSpace(w.Text)
	}
	return models.CaptionChunk{
		Timestamp: [2]float64{words[0].Start, words[len(words)-1].End},
		Text:      strings.Join(parts, " "),
		WordCount: len(words),
	}
}

func endsSentence(word string) bool {
	w := strings.TrimRight(strings.TrimSpace(word), `"')]`)
	return strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
}

func endsClause(word string) bool {
	w := strings.TrimRight(strings.TrimSpace(word), `"')]`)
	return strings.HasSuffix(w, ",") || strings.HasSuffix(w, ";") || strings.HasSuffix(w, ":") ||
		strings.HasSuffix(w, "--") || strings.HasSuffix(w, "—")
}

// ToWebVTT renders chunks as a WebVTT caption document.
func ToWebVTT(chunks []models.CaptionChunk) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n%d\n%s --> %s\n%s\n", i+1, vttTime(c.Start()), vttTime(c.End()), c.Text)
	}
	return b.String()
}

func vttTime(seconds float64) string {
	ms := int64(math.Round(math.Max(seconds, 0) * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
