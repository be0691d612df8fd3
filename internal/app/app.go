package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/config"
	"ai-course-media-service/internal/events"
	"ai-course-media-service/internal/observability/logging"
	"ai-course-media-service/internal/observability/metrics"
	"ai-course-media-service/internal/service/caption"
	"ai-course-media-service/internal/service/chapter"
	"ai-course-media-service/internal/service/llm"
	llmmock "ai-course-media-service/internal/service/llm/mock"
	llmopenai "ai-course-media-service/internal/service/llm/openai"
	"ai-course-media-service/internal/service/pipeline"
	"ai-course-media-service/internal/service/recovery"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/reveal"
	"ai-course-media-service/internal/service/stt"
	sttgoogle "ai-course-media-service/internal/service/stt/google"
	"ai-course-media-service/internal/service/stt/httpstt"
	sttmock "ai-course-media-service/internal/service/stt/mock"
	"ai-course-media-service/internal/service/tts"
	ttsmock "ai-course-media-service/internal/service/tts/mock"
	"ai-course-media-service/internal/service/tts/piper"
)

// ErrUnknownProvider is returned when configuration names a backend that does not exist.
var ErrUnknownProvider = errors.New("unknown provider")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	Parser    *recovery.Parser
	Segmenter *caption.Segmenter
	Chapters  *chapter.Generator
	Pipeline  *pipeline.Pipeline
	Store     *pipeline.MemoryStore
	Publisher *events.Publisher
	LoadIDs   *reveal.LoadIDGenerator

	closers []io.Closer
}

// New constructs the Application, choosing the language model, speech
// synthesis and transcription backends from cfg.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	a := &Application{
		Cfg:     cfg,
		Logger:  logging.WithComponent("application"),
		Metrics: metrics.DefaultMetrics,
		LoadIDs: reveal.NewLoadIDGenerator(),
		Store:   pipeline.NewMemoryStore(),
	}

	executor := retry.New(retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	})

	completer, err := newCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}
	synth, err := newSynthesizer(cfg.TTS)
	if err != nil {
		return nil, err
	}
	trans, err := a.newTranscriber(ctx, cfg.STT)
	if err != nil {
		return nil, err
	}

	a.Publisher = events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicCaptions: cfg.Kafka.TopicCaptions,
		TopicReveals:  cfg.Kafka.TopicReveals,
		TopicFailures: cfg.Kafka.TopicFailures,
		Principal:     cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher)

	a.Parser = recovery.NewSlideParser()
	a.Segmenter = caption.NewSegmenter(caption.DefaultConfig())
	a.Chapters = chapter.NewGenerator(completer,
		chapter.WithParser(a.Parser),
		chapter.WithRetry(executor),
		chapter.WithTimeout(cfg.LLM.Timeout),
	)
	a.Pipeline = pipeline.New(synth, trans,
		pipeline.WithConfig(pipeline.Config{
			Concurrency:          cfg.Pipeline.Concurrency,
			ChunkDelay:           cfg.Pipeline.ChunkDelay,
			MaxChunkChars:        cfg.TTS.MaxChunkChars,
			SynthesisTimeout:     cfg.TTS.Timeout,
			TranscriptionTimeout: cfg.STT.Timeout,
			FallbackWordSeconds:  cfg.STT.FallbackWordSeconds,
		}),
		pipeline.WithStore(a.Store),
		pipeline.WithEvents(a.Publisher),
		pipeline.WithRetry(executor),
		pipeline.WithSegmenter(a.Segmenter),
	)

	a.Logger.Info().
		Str("llm", cfg.LLM.Provider).
		Str("tts", cfg.TTS.Provider).
		Str("stt", cfg.STT.Provider).
		Msg("Course media application created")
	return a, nil
}

func newCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "openai":
		c, err := llmopenai.New(llmopenai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "mock", "":
		return llmmock.New(), nil
	default:
		return nil, fmt.Errorf("llm %q: %w", cfg.Provider, ErrUnknownProvider)
	}
}

func newSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	switch cfg.Provider {
	case "piper":
		return piper.New(piper.Config{
			BaseURL: cfg.BaseURL,
			Voice:   cfg.Voice,
			Timeout: cfg.Timeout,
		}), nil
	case "mock", "":
		return ttsmock.New(), nil
	default:
		return nil, fmt.Errorf("tts %q: %w", cfg.Provider, ErrUnknownProvider)
	}
}

func (a *Application) newTranscriber(ctx context.Context, cfg config.STTConfig) (stt.Transcriber, error) {
	switch cfg.Provider {
	case "google":
		gcfg := sttgoogle.DefaultConfig()
		gcfg.LanguageCode = cfg.LanguageCode
		gcfg.SampleRateHz = cfg.SampleRateHz
		gcfg.AudioEncoding = cfg.AudioEncoding
		gcfg.FallbackWordSeconds = cfg.FallbackWordSeconds
		t, err := sttgoogle.New(ctx, gcfg)
		if err != nil {
			return nil, fmt.Errorf("google speech client: %w", err)
		}
		a.closers = append(a.closers, t)
		return t, nil
	case "http":
		return httpstt.New(httpstt.Config{
			BaseURL:             cfg.BaseURL,
			LanguageCode:        cfg.LanguageCode,
			Timeout:             cfg.Timeout,
			FallbackWordSeconds: cfg.FallbackWordSeconds,
		}), nil
	case "mock", "":
		return sttmock.New(sttmock.WithWordSeconds(cfg.FallbackWordSeconds)), nil
	default:
		return nil, fmt.Errorf("stt %q: %w", cfg.Provider, ErrUnknownProvider)
	}
}

// Ready reports whether the application has started.
func (a *Application) Ready() error {
	if a.StartupTime.IsZero() {
		return errors.New("application not started")
	}
	return nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Course media service starting")

	return nil
}

// Shutdown closes the external clients. Errors are logged and joined.
func (a *Application) Shutdown() error {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Course media service shutting down")

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Close failed during shutdown")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
