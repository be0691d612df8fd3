// Package stt defines the interface for Speech-to-Text transcribers and the
// helpers shared by their implementations.
package stt

import (
	"context"
	"errors"
	"strings"

	"ai-course-media-service/internal/models"
)

// DefaultWordSeconds is the per-word duration assumed when a provider returns
// a transcript without word timings.
const DefaultWordSeconds = 0.4

var (
	// ErrNoAudio is returned when Audio carries neither content nor a URI.
	ErrNoAudio = errors.New("audio has neither content nor uri")

	// ErrNoSpeech is returned when a provider recognized nothing at all.
	ErrNoSpeech = errors.New("no speech recognized")
)

// Audio is the input to a transcription. Content takes precedence over URI.
type Audio struct {
	URI          string
	Content      []byte
	SampleRateHz int
}

// Transcriber turns narration audio into word timings (Google, Whisper-style
// HTTP endpoints, mock, etc.).
type Transcriber interface {
	// Transcribe returns the recognized words in order. Implementations fall
	// back to UniformTimings when the provider returns text without timings.
	Transcribe(ctx context.Context, audio Audio) ([]models.WordTiming, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audio Audio) ([]models.WordTiming, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, audio Audio) ([]models.WordTiming, error) {
	return f(ctx, audio)
}

// UniformTimings assigns each word of transcript a fixed duration, back to
// back from zero. A non-positive perWord uses DefaultWordSeconds.
func UniformTimings(transcript string, perWord float64) []models.WordTiming {
	if perWord <= 0 {
		perWord = DefaultWordSeconds
	}
	fields := strings.Fields(transcript)
	words := make([]models.WordTiming, len(fields))
	for i, f := range fields {
		words[i] = models.WordTiming{
			Text:  f,
			Start: float64(i) * perWord,
			End:   float64(i+1) * perWord,
		}
	}
	return words
}

// Resolve returns words when present, otherwise uniform timings over
// transcript. It returns ErrNoSpeech when both are empty.
func Resolve(words []models.WordTiming, transcript string, perWord float64) ([]models.WordTiming, error) {
	if len(words) > 0 {
		return words, nil
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrNoSpeech
	}
	return UniformTimings(transcript, perWord), nil
}
