package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/stt"
	sttmock "ai-course-media-service/internal/service/stt/mock"
	"ai-course-media-service/internal/service/tts"
	ttsmock "ai-course-media-service/internal/service/tts/mock"
)

var narrowFormat = audio.Format{AudioFormat: audio.FormatPCM, Channels: 1, SampleRate: 16000, BitsPerSample: 16}

type recordedEvents struct {
	mu       sync.Mutex
	captions []models.CaptionsReady
	failures []models.SlideFailed
}

func (r *recordedEvents) PublishCaptions(_ context.Context, e models.CaptionsReady) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captions = append(r.captions, e)
	return nil
}

func (r *recordedEvents) PublishFailure(_ context.Context, e models.SlideFailed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, e)
	return nil
}

func slide(id, text string) models.SlideRecord {
	return models.SlideRecord{
		SlideID:    id,
		SlideIndex: 1,
		HTML:       "<h2 data-reveal='r1'>T</h2><p data-reveal='r2'>x</p>",
		Narration:  models.Narration{FullText: text},
		RevealData: []string{"r1", "r2"},
	}
}

func newTestPipeline(s tts.Synthesizer, tr stt.Transcriber, cfg Config, opts ...Option) *Pipeline {
	base := []Option{
		WithRetry(retry.New(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, retry.WithMetrics(nil))),
		WithMetrics(nil),
		WithConfig(cfg),
	}
	p := New(s, tr, append(base, opts...)...)
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestRun_PartialFailure(t *testing.T) {
	voice := ttsmock.New()
	synth := tts.SynthesizerFunc(func(ctx context.Context, text string) ([]byte, error) {
		switch {
		case strings.Contains(text, "FAIL"):
			return nil, retry.StatusError("tts.test", 400, "unsupported text")
		case strings.Contains(text, "Second"):
			return audio.Silence(narrowFormat, 1), nil
		}
		return voice.Synthesize(ctx, text)
	})
	events := &recordedEvents{}
	store := NewMemoryStore()
	p := newTestPipeline(synth, sttmock.New(), Config{Concurrency: 2, MaxChunkChars: 20},
		WithEvents(events), WithStore(store))

	ch := Chapter{CourseID: "c1", ChapterID: "ch1", Slides: []models.SlideRecord{
		slide("a", "Welcome to the **lesson**. Channels connect goroutines."),
		slide("b", "<br/>  "),
		slide("c", "This will FAIL."),
		slide("d", "First part here. Second part here."),
	}}

	res, err := p.Run(context.Background(), ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := res.Report
	if r.Succeeded != 1 || r.Skipped != 1 || r.Failed != 2 || r.Total() != 4 {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.RunID == "" {
		t.Error("expected a run id")
	}
	if len(r.SkippedIDs) != 1 || r.SkippedIDs[0] != "b" {
		t.Errorf("expected b skipped, got %v", r.SkippedIDs)
	}

	if r.Failures[0].SlideID != "c" || r.Failures[0].Stage != StageSynthesis {
		t.Errorf("unexpected first failure %+v", r.Failures[0])
	}
	if r.Failures[1].SlideID != "d" || r.Failures[1].Stage != StageMerge {
		t.Errorf("unexpected second failure %+v", r.Failures[1])
	}
	var mismatch *audio.FormatMismatchError
	if !errors.As(r.Failures[1].Err, &mismatch) || mismatch.Index != 1 {
		t.Errorf("expected format mismatch at chunk 1, got %v", r.Failures[1].Err)
	}

	if len(res.Media) != 1 || res.Media[0].SlideID != "a" {
		t.Fatalf("only slide a should complete, got %+v", res.Media)
	}
	m := res.Media[0]
	if !strings.HasPrefix(m.AudioURI, "mem://") {
		t.Errorf("unexpected audio uri %s", m.AudioURI)
	}
	if _, ok := store.Get(m.AudioURI); !ok {
		t.Error("merged audio should be in the store")
	}
	// Seven words at the mock voice rate.
	if math.Abs(m.Duration-7*ttsmock.DefaultWordSeconds) > 0.001 {
		t.Errorf("duration=%v, want %v", m.Duration, 7*ttsmock.DefaultWordSeconds)
	}
	if len(m.Words) != 7 || len(m.Captions) == 0 {
		t.Errorf("expected 7 words and some captions, got %d words, %d captions", len(m.Words), len(m.Captions))
	}
	if len(m.Timeline) != 2 || m.Timeline[0].RevealID != "r1" {
		t.Errorf("unexpected timeline %+v", m.Timeline)
	}

	if len(events.captions) != 1 || events.captions[0].SlideID != "a" || events.captions[0].RunID != r.RunID {
		t.Errorf("unexpected captions events %+v", events.captions)
	}
	if len(events.failures) != 2 {
		t.Errorf("expected 2 failure events, got %+v", events.failures)
	}
}

func TestRun_RetriesTransientSynthesis(t *testing.T) {
	voice := ttsmock.New(ttsmock.FailFirst(2))
	p := newTestPipeline(voice, sttmock.New(), Config{})

	res, err := p.Run(context.Background(), Chapter{ChapterID: "ch", Slides: []models.SlideRecord{slide("a", "Short line.")}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Succeeded != 1 {
		t.Fatalf("expected success after retries, got %+v", res.Report)
	}
	if len(voice.Texts()) != 3 {
		t.Errorf("expected 3 synthesis attempts, got %d", len(voice.Texts()))
	}
}

func TestRun_ChunkDelayIncreases(t *testing.T) {
	p := newTestPipeline(ttsmock.New(), sttmock.New(), Config{MaxChunkChars: 12, ChunkDelay: 100 * time.Millisecond})
	var delays []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := p.Run(context.Background(), Chapter{Slides: []models.SlideRecord{slide("a", "One two. Three four. Five six.")}})
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays=%v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRun_NoSpeechFallsBackToUniformTimings(t *testing.T) {
	silent := stt.TranscriberFunc(func(context.Context, stt.Audio) ([]models.WordTiming, error) {
		return nil, stt.ErrNoSpeech
	})
	p := newTestPipeline(ttsmock.New(), silent, Config{FallbackWordSeconds: 0.5})

	res, err := p.Run(context.Background(), Chapter{Slides: []models.SlideRecord{slide("a", "Alpha beta gamma.")}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Succeeded != 1 {
		t.Fatalf("expected success, got %+v", res.Report)
	}
	words := res.Media[0].Words
	if len(words) != 3 || words[0].Text != "Alpha" || words[2].End != 1.5 {
		t.Errorf("expected uniform timings over the narration, got %+v", words)
	}
}

func TestRun_TranscriptionFailureDiscardsAudio(t *testing.T) {
	var seen stt.Audio
	broken := stt.TranscriberFunc(func(_ context.Context, a stt.Audio) ([]models.WordTiming, error) {
		seen = a
		return nil, retry.StatusError("stt.test", 403, "forbidden")
	})
	store := NewMemoryStore()
	p := newTestPipeline(ttsmock.New(), broken, Config{}, WithStore(store))

	res, err := p.Run(context.Background(), Chapter{ChapterID: "ch", Slides: []models.SlideRecord{slide("a", "Hello there.")}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Failed != 1 || res.Report.Failures[0].Stage != StageTranscription {
		t.Fatalf("expected transcription failure, got %+v", res.Report)
	}
	if store.Len() != 0 {
		t.Error("audio of a failed slide must not be kept")
	}
	if !strings.HasPrefix(seen.URI, "mem://") || len(seen.Content) == 0 || seen.SampleRateHz != int(ttsmock.DefaultFormat.SampleRate) {
		t.Errorf("transcriber got unexpected audio %+v", seen.URI)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newTestPipeline(ttsmock.New(), sttmock.New(), Config{})

	res, err := p.Run(ctx, Chapter{Slides: []models.SlideRecord{slide("a", "Hello."), slide("b", "World.")}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Report.Failed != 2 || res.Report.Failures[0].Stage != StageCanceled {
		t.Errorf("unexpected report %+v", res.Report)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("RIFF")

	uri, err := s.Put(ctx, "run/ch/a.wav", buf)
	if err != nil || uri != "mem://run/ch/a.wav" {
		t.Fatalf("Put = %q, %v", uri, err)
	}
	buf[0] = 'X'
	if got, ok := s.Get(uri); !ok || string(got) != "RIFF" {
		t.Errorf("stored object should be a copy, got %q", got)
	}
	if err := s.Delete(ctx, uri); err != nil || s.Len() != 0 {
		t.Errorf("Delete: %v, len=%d", err, s.Len())
	}
}
