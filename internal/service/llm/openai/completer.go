// Package openai implements llm.Completer with the OpenAI Responses API and a
// strict JSON schema response format.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/observability/metrics"
	"ai-course-media-service/internal/schema"
	"ai-course-media-service/internal/service/retry"
)

const (
	provider = "openai"
	service  = "llm.openai"
)

// Instructions frame every request. The prompt itself carries the chapter.
const Instructions = `You write slide decks for short video lessons.
Return JSON only: an object with a "slides" array. Each slide has slideId, slideIndex (from 1),
html, narration.fullText and revealData. Mark every revealable element in html with a
data-reveal attribute; revealData lists those ids in reveal order and always starts with "r1",
the slide heading. Use single quotes for html attribute values.`

// Config holds the model settings.
type Config struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int64
}

// Completer implements llm.Completer.
type Completer struct {
	client  openai.Client
	cfg     Config
	format  responses.ResponseFormatTextConfigUnionParam
	metrics *metrics.Metrics
}

// Option configures a Completer.
type Option func(*options)

type options struct {
	requestOpts []option.RequestOption
	metrics     *metrics.Metrics
}

// WithRequestOptions passes options to the OpenAI client, e.g. a base URL.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *options) { o.requestOpts = append(o.requestOpts, opts...) }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a Completer. The client's own retries are disabled; callers
// retry through retry.Executor.
func New(cfg Config, opts ...Option) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is empty")
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 16000
	}

	o := options{metrics: metrics.DefaultMetrics}
	for _, opt := range opts {
		opt(&o)
	}

	deck, err := schema.SlidesSchema()
	if err != nil {
		return nil, fmt.Errorf("openai: build response schema: %w", err)
	}

	requestOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, o.requestOpts...)
	if cfg.Timeout > 0 {
		requestOpts = append(requestOpts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Completer{
		client: openai.NewClient(requestOpts...),
		cfg:    cfg,
		format: responses.ResponseFormatTextConfigUnionParam{
			OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
				Name:        "SlideDeck",
				Schema:      deck,
				Strict:      openai.Bool(true),
				Description: openai.String("Slides of one course chapter"),
				Type:        "json_schema",
			},
		},
		metrics: o.metrics,
	}, nil
}

// Complete sends prompt and returns the output text unparsed.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model:           c.cfg.Model,
		MaxOutputTokens: openai.Int(c.cfg.MaxOutputTokens),
		Instructions:    openai.String(Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: c.format,
		},
	}

	start := time.Now()
	resp, err := c.client.Responses.New(ctx, params)
	latency := time.Since(start).Seconds()
	if err != nil {
		err = classify(err)
		if c.metrics != nil {
			c.metrics.RecordExternalCall("llm", provider, errorType(err), latency)
		}
		return "", err
	}
	if c.metrics != nil {
		c.metrics.RecordExternalCall("llm", provider, "", latency)
	}

	text := resp.OutputText()
	log.Debug().
		Str("model", c.cfg.Model).
		Int("chars", len(text)).
		Float64("latencySeconds", latency).
		Msg("Model response received")
	return text, nil
}

// classify maps API status codes onto the retry taxonomy.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.StatusError(service, apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%s: %w", service, err)
}

func errorType(err error) string {
	if retry.IsTransient(err) {
		return "transient"
	}
	return "error"
}
