// Package piper synthesizes speech through a Piper HTTP server
// (rhasspy/wyoming-piper: GET /api/text-to-speech?text=...&voice=...).
package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/observability/metrics"
	"ai-course-media-service/internal/service/audio"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/tts"
)

const (
	provider = "piper"
	service  = "tts.piper"

	maxAudioBytes = 64 << 20
)

// Config holds the server settings.
type Config struct {
	BaseURL string        // e.g. "http://tts:5000"
	Voice   string        // server default when empty
	Timeout time.Duration // per chunk
}

// Client implements tts.Synthesizer against a Piper server.
type Client struct {
	cfg     Config
	hc      *http.Client
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Piper client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{cfg: cfg, hc: &http.Client{}, metrics: metrics.DefaultMetrics}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize returns the WAV body for text. 429 and 5xx responses are
// transient; a body that is not a WAV buffer is not.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/api/text-to-speech")
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", service, err)
	}
	q := u.Query()
	q.Set("text", text)
	if c.cfg.Voice != "" {
		q.Set("voice", c.cfg.Voice)
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/wav")

	start := time.Now()
	body, err := c.do(req)
	latency := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordExternalCall("tts", provider, errorType(err), latency.Seconds())
	}
	if err != nil {
		return nil, err
	}

	if _, _, err := audio.ParseWAV(body); err != nil {
		return nil, fmt.Errorf("%s: response is not wav audio: %w", service, err)
	}
	log.Debug().
		Int("chars", len(text)).
		Int("bytes", len(body)).
		Dur("latency", latency).
		Msg("Chunk synthesized")
	return body, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", service, err)
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
