package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/tts"
)

func TestSynthesize_DurationFollowsWords(t *testing.T) {
	s := New(WithWordSeconds(0.5))

	buf, err := s.Synthesize(context.Background(), "one two three four")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := audio.WAVDuration(buf)
	if err != nil {
		t.Fatalf("not a wav buffer: %v", err)
	}
	if math.Abs(d-2.0) > 0.001 {
		t.Errorf("expected 2s of audio, got %v", d)
	}

	f, _, _ := audio.ParseWAV(buf)
	if f != DefaultFormat {
		t.Errorf("expected default format, got %v", f)
	}
}

func TestSynthesize_FailFirst(t *testing.T) {
	s := New(FailFirst(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.Synthesize(ctx, "hello"); !retry.IsTransient(err) {
			t.Fatalf("call %d: expected transient error, got %v", i, err)
		}
	}
	if _, err := s.Synthesize(ctx, "hello"); err != nil {
		t.Fatalf("third call should succeed, got %v", err)
	}
	if len(s.Texts()) != 3 {
		t.Errorf("expected 3 recorded texts, got %d", len(s.Texts()))
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	if _, err := New().Synthesize(context.Background(), " \n"); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}
