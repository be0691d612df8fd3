// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_course_media"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// JSON recovery metrics
	RecoveryStrategyHits *prometheus.CounterVec
	RecoveryFailures     prometheus.Counter
	ValidationDropped    *prometheus.CounterVec

	// Caption metrics
	CaptionChunks prometheus.Counter
	CaptionWords  prometheus.Counter

	// External service metrics
	ExternalCalls   *prometheus.CounterVec
	ExternalErrors  *prometheus.CounterVec
	ExternalLatency *prometheus.HistogramVec
	Retries         *prometheus.CounterVec

	// Audio metrics
	AudioMerged         prometheus.Counter
	AudioFormatMismatch prometheus.Counter

	// Pipeline metrics
	SlidesProcessed *prometheus.CounterVec
	SlideDuration   prometheus.Histogram
	PipelinesActive prometheus.Gauge

	// Reveal metrics
	RevealCommands *prometheus.CounterVec
	PlaybackActive prometheus.Gauge
	RevealsDropped prometheus.Counter
	MirrorFailures prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls   *prometheus.CounterVec
	GRPCLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RecoveryStrategyHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "json_recovery_strategy_total",
			Help:      "Number of model responses recovered, by winning strategy",
		}, []string{"strategy"}),
		RecoveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "json_recovery_failures_total",
			Help:      "Number of model responses no strategy could recover",
		}),
		ValidationDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slide_validation_dropped_total",
			Help:      "Recovered slide records dropped by structural validation",
		}, []string{"field"}),

		CaptionChunks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "caption_chunks_total",
			Help:      "Total caption chunks produced",
		}),
		CaptionWords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "caption_words_total",
			Help:      "Total words segmented into captions",
		}),

		ExternalCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls made to external synthesis, transcription and model services",
		}, []string{"service", "provider"}),
		ExternalErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_errors_total",
			Help:      "Failed calls to external services",
		}, []string{"service", "provider", "error_type"}),
		ExternalLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_latency_seconds",
			Help:      "External service call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 90},
		}, []string{"service", "provider"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts after transient failures",
		}, []string{"operation"}),

		AudioMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_merged_total",
			Help:      "Audio buffers merged",
		}),
		AudioFormatMismatch: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_format_mismatch_total",
			Help:      "Merges rejected because input formats diverged",
		}),

		SlidesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slides_processed_total",
			Help:      "Slides processed by the narration pipeline, by outcome",
		}, []string{"outcome"}),
		SlideDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slide_pipeline_duration_seconds",
			Help:      "Wall time of one slide's narration pipeline",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),
		PipelinesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_active",
			Help:      "Number of chapter pipelines currently running",
		}),

		RevealCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveal_commands_total",
			Help:      "Reveal commands emitted to rendering surfaces",
		}, []string{"type"}),
		PlaybackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_sessions_active",
			Help:      "Number of live playback websocket sessions",
		}),
		RevealsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveal_updates_dropped_total",
			Help:      "Clock ticks dropped because the surface was not ready",
		}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveal_mirror_failures_total",
			Help:      "Reveal commands a best-effort mirror failed to deliver",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests",
		}, []string{"route", "code"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "gRPC calls by method, kind and status code",
		}, []string{"method", "kind", "code"}),
		GRPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// RecordRecoveryStrategy records which strategy recovered a model response.
func (m *Metrics) RecordRecoveryStrategy(strategy string) {
	m.RecoveryStrategyHits.WithLabelValues(strategy).Inc()
}

// RecordRecoveryFailure records a response that no strategy could recover.
func (m *Metrics) RecordRecoveryFailure() {
	m.RecoveryFailures.Inc()
}

// RecordValidationDropped records a recovered record dropped by validation.
func (m *Metrics) RecordValidationDropped(field string) {
	m.ValidationDropped.WithLabelValues(field).Inc()
}

// RecordCaptions records a segmentation result.
func (m *Metrics) RecordCaptions(chunks, words int) {
	m.CaptionChunks.Add(float64(chunks))
	m.CaptionWords.Add(float64(words))
}

// RecordExternalCall records one call to an external service.
func (m *Metrics) RecordExternalCall(service, provider, errorType string, latencySeconds float64) {
	m.ExternalCalls.WithLabelValues(service, provider).Inc()
	m.ExternalLatency.WithLabelValues(service, provider).Observe(latencySeconds)
	if errorType != "" {
		m.ExternalErrors.WithLabelValues(service, provider, errorType).Inc()
	}
}

// RecordRetry records a retry attempt.
func (m *Metrics) RecordRetry(operation string) {
	m.Retries.WithLabelValues(operation).Inc()
}

// RecordAudioMerged records a successful merge.
func (m *Metrics) RecordAudioMerged() {
	m.AudioMerged.Inc()
}

// RecordAudioFormatMismatch records a merge rejected for divergent formats.
func (m *Metrics) RecordAudioFormatMismatch() {
	m.AudioFormatMismatch.Inc()
}

// RecordSlide records a slide pipeline outcome (succeeded, skipped, failed).
func (m *Metrics) RecordSlide(outcome string, durationSeconds float64) {
	m.SlidesProcessed.WithLabelValues(outcome).Inc()
	m.SlideDuration.Observe(durationSeconds)
}

// RecordPipelineStart records a chapter pipeline starting.
func (m *Metrics) RecordPipelineStart() {
	m.PipelinesActive.Inc()
}

// RecordPipelineEnd records a chapter pipeline ending.
func (m *Metrics) RecordPipelineEnd() {
	m.PipelinesActive.Dec()
}

// RecordRevealCommand records a reveal command sent to a surface.
func (m *Metrics) RecordRevealCommand(commandType string) {
	m.RevealCommands.WithLabelValues(commandType).Inc()
}

// RecordRevealDropped records a tick dropped before the surface was ready.
func (m *Metrics) RecordRevealDropped() {
	m.RevealsDropped.Inc()
}

// RecordRevealMirrorFailure records a reveal command lost by a mirror sink.
func (m *Metrics) RecordRevealMirrorFailure() {
	m.MirrorFailures.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records an HTTP API request.
func (m *Metrics) RecordHTTPRequest(route, code string, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordGRPCCall records a completed gRPC call. kind is unary or stream.
func (m *Metrics) RecordGRPCCall(method, kind, code string, latencySeconds float64) {
	m.GRPCCalls.WithLabelValues(method, kind, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}

// RecordPlaybackStart records a playback session opening.
func (m *Metrics) RecordPlaybackStart() {
	m.PlaybackActive.Inc()
}

// RecordPlaybackEnd records a playback session closing.
func (m *Metrics) RecordPlaybackEnd() {
	m.PlaybackActive.Dec()
}
