// Package httpstt transcribes audio through a self-hosted HTTP endpoint such
// as a Whisper server. Any response shape understood by stt.ParseWords works.
package httpstt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/observability/metrics"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/stt"
)

const (
	provider = "http"
	service  = "stt.http"

	maxResponseBytes = 8 << 20
)

// Config holds the endpoint settings.
type Config struct {
	BaseURL             string
	LanguageCode        string
	Timeout             time.Duration
	FallbackWordSeconds float64
}

// Transcriber implements stt.Transcriber over HTTP.
type Transcriber struct {
	cfg     Config
	client  *http.Client
	metrics *metrics.Metrics
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) { t.client = c }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transcriber) { t.metrics = m }
}

// New creates a transcriber for cfg.BaseURL.
func New(cfg Config, opts ...Option) *Transcriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	t := &Transcriber{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe posts inline audio as audio/wav, or a remote URI as JSON, to
// <BaseURL>/transcribe and parses the word timings from the response.
func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) ([]models.WordTiming, error) {
	req, err := t.newRequest(ctx, audio)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := t.do(req)
	latency := time.Since(start).Seconds()
	if t.metrics != nil {
		t.metrics.RecordExternalCall("stt", provider, errorType(err), latency)
	}
	if err != nil {
		return nil, err
	}

	words, transcript, err := stt.ParseWords(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	log.Debug().
		Int("words", len(words)).
		Float64("latencySeconds", latency).
		Msg("HTTP transcription complete")
	return stt.Resolve(words, transcript, t.cfg.FallbackWordSeconds)
}

func (t *Transcriber) newRequest(ctx context.Context, audio stt.Audio) (*http.Request, error) {
	endpoint, err := url.Parse(strings.TrimRight(t.cfg.BaseURL, "/") + "/transcribe")
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", service, err)
	}
	q := endpoint.Query()
	if t.cfg.LanguageCode != "" {
		q.Set("language", t.cfg.LanguageCode)
	}
	if audio.SampleRateHz > 0 {
		q.Set("sample_rate", fmt.Sprint(audio.SampleRateHz))
	}
	q.Set("word_timestamps", "true")
	endpoint.RawQuery = q.Encode()

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case len(audio.Content) > 0:
		body, contentType = bytes.NewReader(audio.Content), "audio/wav"
	case audio.URI != "":
		payload, err := json.Marshal(map[string]string{"url": audio.URI})
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	default:
		return nil, stt.ErrNoAudio
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (t *Transcriber) do(req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", service, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.StatusError(service, resp.StatusCode, string(body))
	}
	return body, nil
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case retry.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
