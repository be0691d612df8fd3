// Package mock provides a mock TTS synthesizer that returns silent WAV
// buffers sized to the text, for running the pipeline without a voice server.
package mock

import (
	"context"
	"strings"
	"sync"

	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/tts"
)

// DefaultFormat matches Piper's default voices.
var DefaultFormat = audio.Format{AudioFormat: audio.FormatPCM, Channels: 1, SampleRate: 22050, BitsPerSample: 16}

// DefaultWordSeconds is the speaking rate of the mock voice.
const DefaultWordSeconds = 0.4

// Synthesizer implements tts.Synthesizer with silence.
type Synthesizer struct {
	format      audio.Format
	wordSeconds float64

	mu       sync.Mutex
	texts    []string
	failures int
	failWith error
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithFormat sets the sample format of every buffer.
func WithFormat(f audio.Format) Option {
	return func(s *Synthesizer) { s.format = f }
}

// WithWordSeconds sets the duration of one word.
func WithWordSeconds(sec float64) Option {
	return func(s *Synthesizer) {
		if sec > 0 {
			s.wordSeconds = sec
		}
	}
}

// FailFirst makes the first n calls fail with a transient error.
func FailFirst(n int) Option {
	return func(s *Synthesizer) {
		s.failures = n
		s.failWith = &retry.TransientServiceError{Service: "tts.mock", StatusCode: 503, Err: context.DeadlineExceeded}
	}
}

// New creates a mock synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{format: DefaultFormat, wordSeconds: DefaultWordSeconds}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns wordCount * wordSeconds of silence.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, tts.ErrEmptyText
	}

	s.mu.Lock()
	s.texts = append(s.texts, text)
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, s.failWith
	}
	s.mu.Unlock()

	return audio.Silence(s.format, float64(words)*s.wordSeconds), nil
}

// Texts returns every text received, including failed attempts.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.texts...)
}
