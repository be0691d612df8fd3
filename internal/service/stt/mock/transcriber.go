// Package mock provides a mock STT transcriber for running the pipeline
// without cloud credentials. It produces evenly spaced words that span the
// duration of the audio it is given.
package mock

import (
	"context"
	"math"
	"strings"
	"sync"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/stt"
)

// DefaultScript supplies the words the mock "recognizes". It is cycled when
// the audio is longer than the script.
const DefaultScript = "In this lesson we walk through the key idea, look at an example, and summarize what to remember."

// Transcriber implements stt.Transcriber with synthetic word timings.
type Transcriber struct {
	script      []string
	wordSeconds float64

	mu    sync.Mutex
	calls int
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithScript replaces DefaultScript.
func WithScript(text string) Option {
	return func(t *Transcriber) {
		if fields := strings.Fields(text); len(fields) > 0 {
			t.script = fields
		}
	}
}

// WithWordSeconds sets the nominal duration of one word.
func WithWordSeconds(s float64) Option {
	return func(t *Transcriber) {
		if s > 0 {
			t.wordSeconds = s
		}
	}
}

// New creates a mock transcriber.
func New(opts ...Option) *Transcriber {
	t := &Transcriber{
		script:      strings.Fields(DefaultScript),
		wordSeconds: stt.DefaultWordSeconds,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe returns words spread evenly over the audio duration. WAV content
// yields round(duration / wordSeconds) words; a bare URI yields the script
// once at the nominal word duration.
func (t *Transcriber) Transcribe(ctx context.Context, a stt.Audio) ([]models.WordTiming, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.calls++
	t.mu.Unlock()

	switch {
	case len(a.Content) > 0:
		duration, err := audio.WAVDuration(a.Content)
		if err != nil {
			return nil, err
		}
		n := int(math.Round(duration / t.wordSeconds))
		if n == 0 {
			return nil, stt.ErrNoSpeech
		}
		return t.spread(n, duration/float64(n)), nil
	case a.URI != "":
		return t.spread(len(t.script), t.wordSeconds), nil
	default:
		return nil, stt.ErrNoAudio
	}
}

// Calls returns how many transcriptions were requested.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Transcriber) spread(n int, per float64) []models.WordTiming {
	words := make([]models.WordTiming, n)
	for i := range words {
		words[i] = models.WordTiming{
			Text:  t.script[i%len(t.script)],
			Start: float64(i) * per,
			End:   float64(i+1) * per,
		}
	}
	return words
}
