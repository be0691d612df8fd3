package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-course-media-service/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Service:       config.ServiceConfig{Principal: "svc-test"},
		Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
		LLM:           config.LLMConfig{Provider: "mock", Timeout: time.Second},
		TTS:           config.TTSConfig{Provider: "mock", Timeout: time.Second, MaxChunkChars: 2500},
		STT:           config.STTConfig{Provider: "mock", Timeout: time.Second, FallbackWordSeconds: 0.4},
		Retry:         config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Pipeline:      config.PipelineConfig{Concurrency: 2, ChunkDelay: -1},
	}
}

func TestNew_MockProviders(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Chapters == nil || a.Pipeline == nil || a.Publisher == nil || a.Parser == nil {
		t.Fatal("application not fully wired")
	}
	if err := a.Ready(); err == nil {
		t.Error("expected not ready before Start")
	}
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if err := a.Ready(); err != nil {
		t.Errorf("expected ready after Start, got %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"llm", func(c *config.Config) { c.LLM.Provider = "bard" }},
		{"tts", func(c *config.Config) { c.TTS.Provider = "espeak" }},
		{"stt", func(c *config.Config) { c.STT.Provider = "whisper-cpp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg); !errors.Is(err, ErrUnknownProvider) {
				t.Errorf("err=%v, want ErrUnknownProvider", err)
			}
		})
	}
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "openai"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error without an API key")
	}
}

func TestGenerateAndNarrate(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.GenerateAndNarrate(context.Background(), ChapterRequest{
		CourseID:  "c1",
		ChapterID: "ch1",
		Title:     "Caching",
		Topics:    []string{"Why cache", "Eviction"},
	})
	if err != nil {
		t.Fatalf("GenerateAndNarrate: %v", err)
	}
	if len(res.Slides) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(res.Slides))
	}
	if res.Report.Total() != 2 {
		t.Errorf("report total=%d, want 2", res.Report.Total())
	}
	if len(res.Media) != res.Report.Succeeded {
		t.Errorf("media=%d, succeeded=%d", len(res.Media), res.Report.Succeeded)
	}
	for _, m := range res.Media {
		if len(m.Timeline) == 0 || m.Timeline[0].RevealID != "r1" {
			t.Errorf("slide %s: timeline should start at the heading, got %+v", m.SlideID, m.Timeline)
		}
		if _, ok := a.Store.Get(m.AudioURI); !ok {
			t.Errorf("slide %s: audio %s not stored", m.SlideID, m.AudioURI)
		}
	}
}
