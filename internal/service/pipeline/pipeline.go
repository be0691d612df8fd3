// Package pipeline turns the narration of each slide into audio, word
// timings, captions and a reveal timeline.
//
// Per slide the chain is:
//
//	sanitize → chunk → synthesize (per chunk) → merge → store → transcribe → segment → plan
//
// Slides run concurrently and independently. A failing slide is reported and
// never cancels its siblings; only slides that complete the whole chain are
// returned.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/observability/logging"
	"ai-course-media-service/internal/observability/metrics"
	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/caption"
	"ai-course-media-service/internal/service/narration"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/reveal"
	"ai-course-media-service/internal/service/stt"
	"ai-course-media-service/internal/service/tts"
)

// Events receives pipeline outcomes, typically a Kafka publisher.
type Events interface {
	PublishCaptions(ctx context.Context, event models.CaptionsReady) error
	PublishFailure(ctx context.Context, event models.SlideFailed) error
}

// Config tunes a Pipeline. Zero fields take the defaults of DefaultConfig; a
// negative ChunkDelay disables the pause between chunk calls.
type Config struct {
	Concurrency          int
	ChunkDelay           time.Duration
	MaxChunkChars        int
	SynthesisTimeout     time.Duration
	TranscriptionTimeout time.Duration
	FallbackWordSeconds  float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:          4,
		ChunkDelay:           250 * time.Millisecond,
		MaxChunkChars:        narration.DefaultMaxChars,
		SynthesisTimeout:     30 * time.Second,
		TranscriptionTimeout: 60 * time.Second,
		FallbackWordSeconds:  stt.DefaultWordSeconds,
	}
}

// Chapter is the unit of work of one run.
type Chapter struct {
	CourseID  string
	ChapterID string
	Slides    []models.SlideRecord
}

// Result holds the completed slides, in chapter order, and the run report.
type Result struct {
	Media  []models.SlideMedia `json:"media"`
	Report Report              `json:"report"`
}

// Pipeline processes chapters. It is safe for concurrent use.
type Pipeline struct {
	synth     tts.Synthesizer
	trans     stt.Transcriber
	store     AudioStore
	events    Events
	retry     *retry.Executor
	segmenter *caption.Segmenter
	cfg       Config
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the tuning.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithStore sets where merged audio is kept. Defaults to a MemoryStore.
func WithStore(s AudioStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithEvents sets the outcome publisher.
func WithEvents(e Events) Option {
	return func(p *Pipeline) { p.events = e }
}

// WithRetry sets the executor for external calls.
func WithRetry(e *retry.Executor) Option {
	return func(p *Pipeline) { p.retry = e }
}

// WithSegmenter replaces the default caption segmenter.
func WithSegmenter(s *caption.Segmenter) Option {
	return func(p *Pipeline) { p.segmenter = s }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline from its two external capabilities.
func New(synth tts.Synthesizer, trans stt.Transcriber, opts ...Option) *Pipeline {
	p := &Pipeline{
		synth:     synth,
		trans:     trans,
		store:     NewMemoryStore(),
		retry:     retry.New(retry.DefaultPolicy()),
		segmenter: caption.NewSegmenter(caption.DefaultConfig()),
		cfg:       DefaultConfig(),
		metrics:   metrics.DefaultMetrics,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cfg = withDefaults(p.cfg)
	return p
}

func withDefaults(c Config) Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	switch {
	case c.ChunkDelay == 0:
		c.ChunkDelay = def.ChunkDelay
	case c.ChunkDelay < 0:
		c.ChunkDelay = 0
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = def.MaxChunkChars
	}
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = def.SynthesisTimeout
	}
	if c.TranscriptionTimeout <= 0 {
		c.TranscriptionTimeout = def.TranscriptionTimeout
	}
	if c.FallbackWordSeconds <= 0 {
		c.FallbackWordSeconds = def.FallbackWordSeconds
	}
	return c
}

type outcome struct {
	media   *models.SlideMedia
	skipped bool
	failure *SlideFailure
}

// Run processes every slide of ch. It returns an error only when ctx ended
// before the run finished; the partial result is returned with it.
func (p *Pipeline) Run(ctx context.Context, ch Chapter) (*Result, error) {
	runID := uuid.NewString()
	logger := logging.WithChapter(ch.CourseID, ch.ChapterID)
	start := time.Now()

	if p.metrics != nil {
		p.metrics.RecordPipelineStart()
		defer p.metrics.RecordPipelineEnd()
	}
	logger.Info().
		Str("runId", runID).
		Int("slides", len(ch.Slides)).
		Int("concurrency", p.cfg.Concurrency).
		Msg("Narration pipeline started")

	outcomes := make([]outcome, len(ch.Slides))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, slide := range ch.Slides {
		g.Go(func() error {
			outcomes[i] = p.processSlide(gctx, runID, ch, slide)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Media: []models.SlideMedia{}, Report: Report{RunID: runID}}
	for i, o := range outcomes {
		switch {
		case o.skipped:
			res.Report.Skipped++
			res.Report.SkippedIDs = append(res.Report.SkippedIDs, ch.Slides[i].SlideID)
		case o.failure != nil:
			res.Report.Failed++
			res.Report.Failures = append(res.Report.Failures, *o.failure)
		default:
			res.Report.Succeeded++
			res.Media = append(res.Media, *o.media)
		}
	}

	logger.Info().
		Str("runId", runID).
		Int("succeeded", res.Report.Succeeded).
		Int("skipped", res.Report.Skipped).
		Int("failed", res.Report.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Narration pipeline finished")
	return res, ctx.Err()
}

func (p *Pipeline) processSlide(ctx context.Context, runID string, ch Chapter, slide models.SlideRecord) outcome {
	start := time.Now()
	logger := logging.WithSlide(ch.ChapterID, slide.SlideID)

	o := p.runChain(ctx, runID, ch, slide)
	switch {
	case o.skipped:
		logger.Info().Msg("Slide has no narration, skipped")
		p.recordSlide("skipped", start)
	case o.failure != nil:
		logger.Error().
			Err(o.failure.Err).
			Str("stage", string(o.failure.Stage)).
			Int("chunkIndex", o.failure.ChunkIndex).
			Msg("Slide pipeline failed")
		p.recordSlide("failed", start)
		p.publishFailure(ctx, runID, ch, o.failure)
	default:
		logger.Info().
			Float64("duration", o.media.Duration).
			Int("captions", len(o.media.Captions)).
			Msg("Slide narrated")
		p.recordSlide("succeeded", start)
		p.publishCaptions(ctx, runID, ch, o.media)
	}
	return o
}

func (p *Pipeline) runChain(ctx context.Context, runID string, ch Chapter, slide models.SlideRecord) outcome {
	fail := func(stage Stage, chunk int, err error) outcome {
		return outcome{failure: &SlideFailure{
			SlideID: slide.SlideID, Stage: stage, ChunkIndex: chunk, Message: err.Error(), Err: err,
		}}
	}

	text := narration.Sanitize(slide.Narration.FullText)
	if text == "" {
		return outcome{skipped: true}
	}
	if err := ctx.Err(); err != nil {
		return fail(StageCanceled, 0, err)
	}

	chunks := narration.Chunk(text, p.cfg.MaxChunkChars)
	buffers := make([][]byte, 0, len(chunks))
	for i, c := range chunks {
		if i > 0 && p.cfg.ChunkDelay > 0 {
			if err := p.sleep(ctx, p.cfg.ChunkDelay*time.Duration(i)); err != nil {
				return fail(StageCanceled, i, err)
			}
		}
		buf, err := retry.DoValue(ctx, p.retry, "tts.synthesize", func(ctx context.Context) ([]byte, error) {
			cctx, cancel := p.callContext(ctx, p.cfg.SynthesisTimeout)
			defer cancel()
			return p.synth.Synthesize(cctx, c)
		})
		if err != nil {
			return fail(StageSynthesis, i, err)
		}
		chunkLogger := logging.WithChunk(slide.SlideID, i)
		chunkLogger.Debug().Int("chars", len(c)).Msg("Chunk synthesized")
		buffers = append(buffers, buf)
	}

	merged, err := audio.Merge(buffers)
	if err != nil {
		return fail(StageMerge, 0, err)
	}
	format, data, err := audio.ParseWAV(merged)
	if err != nil {
		return fail(StageMerge, 0, err)
	}
	duration := format.Duration(len(data))

	key := fmt.Sprintf("%s/%s/%s.wav", runID, ch.ChapterID, slide.SlideID)
	uri, err := p.store.Put(ctx, key, merged)
	if err != nil {
		return fail(StageStore, 0, err)
	}

	words, err := retry.DoValue(ctx, p.retry, "stt.transcribe", func(ctx context.Context) ([]models.WordTiming, error) {
		cctx, cancel := p.callContext(ctx, p.cfg.TranscriptionTimeout)
		defer cancel()
		return p.trans.Transcribe(cctx, stt.Audio{URI: uri, Content: merged, SampleRateHz: int(format.SampleRate)})
	})
	if errors.Is(err, stt.ErrNoSpeech) {
		log.Warn().Str("slideId", slide.SlideID).Msg("No words recognized, using uniform timings")
		words, err = stt.UniformTimings(text, p.cfg.FallbackWordSeconds), nil
	}
	if err != nil {
		if derr := p.store.Delete(context.WithoutCancel(ctx), uri); derr != nil {
			log.Warn().Err(derr).Str("uri", uri).Msg("Failed to delete audio of failed slide")
		}
		return fail(StageTranscription, 0, err)
	}

	captions := p.segmenter.Segment(words)
	if p.metrics != nil {
		p.metrics.RecordCaptions(len(captions), len(words))
	}
	return outcome{media: &models.SlideMedia{
		SlideID:  slide.SlideID,
		AudioURI: uri,
		Duration: duration,
		Words:    words,
		Captions: captions,
		Timeline: reveal.Plan(slide.RevealData, captions),
	}}
}

// callContext bounds one external call. The call is detached from run
// cancellation so an in-flight request finishes or times out on its own;
// cancellation stops the chain between calls.
func (p *Pipeline) callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (p *Pipeline) recordSlide(result string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordSlide(result, time.Since(start).Seconds())
	}
}

func (p *Pipeline) publishCaptions(ctx context.Context, runID string, ch Chapter, m *models.SlideMedia) {
	if p.events == nil {
		return
	}
	err := p.events.PublishCaptions(context.WithoutCancel(ctx), models.CaptionsReady{
		EventType: models.EventCaptionsReady,
		RunID:     runID,
		CourseID:  ch.CourseID,
		ChapterID: ch.ChapterID,
		SlideID:   m.SlideID,
		AudioURI:  m.AudioURI,
		Captions:  m.Captions,
		Timeline:  m.Timeline,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Warn().Err(err).Str("slideId", m.SlideID).Msg("Failed to publish captions event")
	}
}

func (p *Pipeline) publishFailure(ctx context.Context, runID string, ch Chapter, f *SlideFailure) {
	if p.events == nil {
		return
	}
	err := p.events.PublishFailure(context.WithoutCancel(ctx), models.SlideFailed{
		EventType: models.EventSlideFailed,
		RunID:     runID,
		ChapterID: ch.ChapterID,
		SlideID:   f.SlideID,
		Stage:     string(f.Stage),
		Error:     f.Message,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Warn().Err(err).Str("slideId", f.SlideID).Msg("Failed to publish failure event")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
