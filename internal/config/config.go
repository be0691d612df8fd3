// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	Observability ObservabilityConfig
	LLM           LLMConfig
	TTS           TTSConfig
	STT           STTConfig
	Retry         RetryConfig
	Pipeline      PipelineConfig
	Kafka         KafkaConfig
}

// ServiceConfig identifies the service and its listeners.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
}

// ObservabilityConfig controls logging and the metrics listener.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// LLMConfig selects the language model used to draft slides.
type LLMConfig struct {
	Provider string // openai, mock
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// TTSConfig selects the speech synthesis backend.
type TTSConfig struct {
	Provider      string // piper, mock
	BaseURL       string
	Voice         string
	Timeout       time.Duration
	MaxChunkChars int
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	Provider            string // google, http, mock
	BaseURL             string
	LanguageCode        string
	SampleRateHz        int
	AudioEncoding       string
	Timeout             time.Duration
	FallbackWordSeconds float64
}

// RetryConfig bounds retries of external calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// PipelineConfig controls slide fan-out.
type PipelineConfig struct {
	Concurrency int
	ChunkDelay  time.Duration
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicCaptions string
	TopicReveals  string
	TopicFailures string
	Principal     string
}

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-course-media")

	cfg := &Config{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		LLM: LLMConfig{
			Provider: envOrDefault("LLM_PROVIDER", "mock"),
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			Model:    envOrDefault("LLM_MODEL", "gpt-4.1-mini"),
			Timeout:  envOrDefaultDuration("LLM_TIMEOUT", 90*time.Second),
		},
		TTS: TTSConfig{
			Provider:      envOrDefault("TTS_PROVIDER", "mock"),
			BaseURL:       envOrDefault("TTS_BASE_URL", "http://localhost:5000"),
			Voice:         os.Getenv("TTS_VOICE"),
			Timeout:       envOrDefaultDuration("TTS_TIMEOUT", 30*time.Second),
			MaxChunkChars: envOrDefaultInt("TTS_MAX_CHUNK_CHARS", 2500),
		},
		STT: STTConfig{
			Provider:            envOrDefault("STT_PROVIDER", "mock"),
			BaseURL:             envOrDefault("STT_BASE_URL", "http://localhost:9000"),
			LanguageCode:        envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:        envOrDefaultInt("STT_SAMPLE_RATE_HZ", 22050),
			AudioEncoding:       envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			Timeout:             envOrDefaultDuration("STT_TIMEOUT", 60*time.Second),
			FallbackWordSeconds: envOrDefaultFloat("STT_FALLBACK_WORD_SECONDS", 0.4),
		},
		Retry: RetryConfig{
			MaxAttempts: envOrDefaultInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   envOrDefaultDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:    envOrDefaultDuration("RETRY_MAX_DELAY", 10*time.Second),
		},
		Pipeline: PipelineConfig{
			Concurrency: envOrDefaultInt("PIPELINE_CONCURRENCY", 4),
			ChunkDelay:  envOrDefaultDuration("PIPELINE_CHUNK_DELAY", 250*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicCaptions: envOrDefault("KAFKA_TOPIC_CAPTIONS", "course.slide.captions"),
			TopicReveals:  envOrDefault("KAFKA_TOPIC_REVEALS", "course.slide.reveals"),
			TopicFailures: envOrDefault("KAFKA_TOPIC_FAILURES", "course.slide.failures"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
	}

	log.Info().
		Str("principal", cfg.Service.Principal).
		Str("llmProvider", cfg.LLM.Provider).
		Str("ttsProvider", cfg.TTS.Provider).
		Str("sttProvider", cfg.STT.Provider).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Bool("llmKeySet", cfg.LLM.APIKey != "").
		Msg("Configuration loaded")

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer, using default")
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid number, using default")
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
