package stt

import (
	"errors"
	"math"
	"testing"
)

func TestUniformTimings(t *testing.T) {
	words := UniformTimings("  the quick   brown fox ", 0.5)

	if len(words) != 4 {
		t.Fatalf("expected 4 words, got %d", len(words))
	}
	for i, w := range words {
		wantStart := float64(i) * 0.5
		if math.Abs(w.Start-wantStart) > 1e-9 || math.Abs(w.End-wantStart-0.5) > 1e-9 {
			t.Errorf("word %d timing [%v, %v], want [%v, %v]", i, w.Start, w.End, wantStart, wantStart+0.5)
		}
	}
	if words[3].Text != "fox" {
		t.Errorf("expected last word 'fox', got %s", words[3].Text)
	}
}

func TestUniformTimings_DefaultDuration(t *testing.T) {
	words := UniformTimings("one two", 0)
	if words[1].End != 2*DefaultWordSeconds {
		t.Errorf("expected end %v, got %v", 2*DefaultWordSeconds, words[1].End)
	}
	if got := UniformTimings("   ", 0.4); len(got) != 0 {
		t.Errorf("expected no words for blank transcript, got %v", got)
	}
}

func TestResolve(t *testing.T) {
	timed := UniformTimings("a b", 1)

	words, err := Resolve(timed, "ignored text", 0.4)
	if err != nil || len(words) != 2 || words[1].End != 2 {
		t.Errorf("timed words should pass through, got %v, %v", words, err)
	}

	words, err = Resolve(nil, "fallback text here", 0.4)
	if err != nil || len(words) != 3 {
		t.Errorf("expected 3 uniform words, got %v, %v", words, err)
	}

	if _, err := Resolve(nil, " ", 0.4); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestParseWords(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantWords      []string
		wantTranscript string
		wantLastEnd    float64
	}{
		{
			name:           "bare array",
			raw:            `[{"word":"hello","start":0.1,"end":0.4},{"word":"world","start":0.5,"end":0.9}]`,
			wantWords:      []string{"hello", "world"},
			wantTranscript: "hello world",
			wantLastEnd:    0.9,
		},
		{
			name:           "flat words with text",
			raw:            `{"text":"Hello, world.","words":[{"text":"Hello,","start":0,"end":0.3},{"text":"world.","start":0.3,"end":0.8}]}`,
			wantWords:      []string{"Hello,", "world."},
			wantTranscript: "Hello, world.",
			wantLastEnd:    0.8,
		},
		{
			name:           "segments",
			raw:            `{"segments":[{"text":" One two.","words":[{"word":"One","start":0,"end":0.2},{"word":"two.","start":0.2,"end":0.5}]},{"text":"Three.","words":[{"word":"Three.","start":1,"end":1.4}]}]}`,
			wantWords:      []string{"One", "two.", "Three."},
			wantTranscript: "One two. Three.",
			wantLastEnd:    1.4,
		},
		{
			name:           "google json with duration strings",
			raw:            `{"results":[{"alternatives":[{"transcript":"good morning","words":[{"word":"good","startTime":"0s","endTime":"0.400s"},{"word":"morning","startTime":"0.400s","endTime":"1.100s"}]}]}]}`,
			wantWords:      []string{"good", "morning"},
			wantTranscript: "good morning",
			wantLastEnd:    1.1,
		},
		{
			name:           "channels with punctuated words",
			raw:            `{"results":{"channels":[{"alternatives":[{"transcript":"hi there","words":[{"word":"hi","punctuated_word":"Hi","start":0,"end":0.2},{"word":"there","punctuated_word":"there.","start":0.2,"end":0.6}]}]}]}}`,
			wantWords:      []string{"Hi", "there."},
			wantTranscript: "hi there",
			wantLastEnd:    0.6,
		},
		{
			name:           "transcript only",
			raw:            `{"text":"no timings at all"}`,
			wantTranscript: "no timings at all",
		},
		{
			name:           "empty words skipped",
			raw:            `{"words":[{"word":"","start":0,"end":0.1},{"word":"kept","start":0.1,"end":0.3}]}`,
			wantWords:      []string{"kept"},
			wantTranscript: "kept",
			wantLastEnd:    0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, transcript, err := ParseWords([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(words) != len(tt.wantWords) {
				t.Fatalf("got %d words %v, want %v", len(words), words, tt.wantWords)
			}
			for i, w := range words {
				if w.Text != tt.wantWords[i] {
					t.Errorf("word %d = %q, want %q", i, w.Text, tt.wantWords[i])
				}
			}
			if transcript != tt.wantTranscript {
				t.Errorf("transcript = %q, want %q", transcript, tt.wantTranscript)
			}
			if len(words) > 0 && math.Abs(words[len(words)-1].End-tt.wantLastEnd) > 1e-9 {
				t.Errorf("last end = %v, want %v", words[len(words)-1].End, tt.wantLastEnd)
			}
		})
	}
}

func TestParseWords_Invalid(t *testing.T) {
	if _, _, err := ParseWords([]byte(`{"words": [`)); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}
