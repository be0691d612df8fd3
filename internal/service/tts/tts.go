// Package tts defines the interface for Text-to-Speech synthesizers.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when asked to synthesize blank text.
var ErrEmptyText = errors.New("empty text")

// Synthesizer turns one narration chunk into a WAV buffer (Piper, mock, etc.).
// Chunks of one slide are merged, so a synthesizer must return the same
// sample format for every call.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string) ([]byte, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}
