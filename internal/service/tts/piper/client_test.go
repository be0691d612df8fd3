package piper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/tts"
)

var pcm = audio.Format{AudioFormat: audio.FormatPCM, Channels: 1, SampleRate: 22050, BitsPerSample: 16}

func TestSynthesize(t *testing.T) {
	wav := audio.Silence(pcm, 0.5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/text-to-speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("text") != "Hello, world." || r.URL.Query().Get("voice") != "en_US-amy" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Voice: "en_US-amy"}, WithMetrics(nil))
	got, err := c.Synthesize(context.Background(), "Hello, world.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(wav) {
		t.Error("expected the server body unchanged")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:1"}, WithMetrics(nil))
	if _, err := c.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"unavailable", http.StatusServiceUnavailable, "loading voice", true},
		{"rate limited", http.StatusTooManyRequests, "slow down", true},
		{"bad request", http.StatusBadRequest, "unknown voice", false},
		{"not wav", http.StatusOK, "<html>proxy error</html>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Config{BaseURL: srv.URL}, WithMetrics(nil)).Synthesize(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error")
			}
			if retry.IsTransient(err) != tt.transient {
				t.Errorf("IsTransient=%v, want %v (%v)", retry.IsTransient(err), tt.transient, err)
			}
		})
	}
}
