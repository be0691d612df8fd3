package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_PRINCIPAL", "GRPC_PORT", "HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT",
	"LLM_PROVIDER", "LLM_MODEL", "LLM_TIMEOUT",
	"TTS_PROVIDER", "TTS_TIMEOUT", "TTS_MAX_CHUNK_CHARS",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ", "STT_AUDIO_ENCODING",
	"STT_FALLBACK_WORD_SECONDS",
	"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY", "RETRY_MAX_DELAY",
	"PIPELINE_CONCURRENCY", "PIPELINE_CHUNK_DELAY",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv() {
	for _, v := range configEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-course-media" {
		t.Errorf("expected default principal 'svc-course-media', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default http port '8080', got %s", cfg.Service.HTTPPort)
	}

	// Provider defaults
	if cfg.LLM.Provider != "mock" || cfg.TTS.Provider != "mock" || cfg.STT.Provider != "mock" {
		t.Errorf("expected mock providers by default, got llm=%s tts=%s stt=%s",
			cfg.LLM.Provider, cfg.TTS.Provider, cfg.STT.Provider)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("expected default llm timeout 90s, got %v", cfg.LLM.Timeout)
	}
	if cfg.TTS.Timeout != 30*time.Second {
		t.Errorf("expected default tts timeout 30s, got %v", cfg.TTS.Timeout)
	}
	if cfg.TTS.MaxChunkChars != 2500 {
		t.Errorf("expected default max chunk chars 2500, got %d", cfg.TTS.MaxChunkChars)
	}

	// STT defaults
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.STT.AudioEncoding)
	}
	if cfg.STT.FallbackWordSeconds != 0.4 {
		t.Errorf("expected default fallback word seconds 0.4, got %v", cfg.STT.FallbackWordSeconds)
	}

	// Retry and pipeline defaults
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.MaxDelay != 10*time.Second {
		t.Errorf("expected default max delay 10s, got %v", cfg.Retry.MaxDelay)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.ChunkDelay != 250*time.Millisecond {
		t.Errorf("expected default chunk delay 250ms, got %v", cfg.Pipeline.ChunkDelay)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no brokers by default, got %v", cfg.Kafka.Brokers)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("GRPC_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_LANGUAGE_CODE", "es-ES")
	os.Setenv("STT_SAMPLE_RATE_HZ", "16000")
	os.Setenv("RETRY_MAX_ATTEMPTS", "5")
	os.Setenv("RETRY_BASE_DELAY", "2s")
	os.Setenv("PIPELINE_CONCURRENCY", "8")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("expected base delay 2s, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Pipeline.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Pipeline.Concurrency)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("STT_FALLBACK_WORD_SECONDS", "slow")
	os.Setenv("TTS_TIMEOUT", "invalid")
	os.Setenv("PIPELINE_CONCURRENCY", "invalid")
	os.Setenv("KAFKA_ENABLED", "invalid")
	defer clearEnv()

	cfg := Load()

	if cfg.STT.SampleRateHz != 22050 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.FallbackWordSeconds != 0.4 {
		t.Errorf("expected default fallback word seconds on invalid input, got %v", cfg.STT.FallbackWordSeconds)
	}
	if cfg.TTS.Timeout != 30*time.Second {
		t.Errorf("expected default tts timeout on invalid input, got %v", cfg.TTS.Timeout)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("expected default concurrency on invalid input, got %d", cfg.Pipeline.Concurrency)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled on invalid input")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{"single", "a:1", []string{"a:1"}},
		{"spaces and empties", " a:1 , ,b:2 ", []string{"a:1", "b:2"}},
		{"unset", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_LIST_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultList(key, nil)
			if len(got) != len(tt.expected) {
				t.Fatalf("envOrDefaultList(%q) = %v, want %v", tt.envValue, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("envOrDefaultList(%q)[%d] = %q, want %q", tt.envValue, i, got[i], tt.expected[i])
				}
			}
		})
	}
}
