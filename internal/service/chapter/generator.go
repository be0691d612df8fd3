// Package chapter drafts the slides of a course chapter: it prompts the
// language model, recovers slide records from the reply, and keeps the
// records that validate.
package chapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/observability/logging"
	"ai-course-media-service/internal/schema"
	"ai-course-media-service/internal/service/llm"
	"ai-course-media-service/internal/service/recovery"
	"ai-course-media-service/internal/service/retry"
)

var (
	// ErrNoSlides is returned when no valid slide could be recovered.
	ErrNoSlides = errors.New("no valid slides recovered")

	// ErrInvalidRequest is returned for a request without a title.
	ErrInvalidRequest = errors.New("invalid chapter request")
)

// Request describes the chapter to draft.
type Request struct {
	CourseID  string   `json:"courseId"`
	ChapterID string   `json:"chapterId"`
	Title     string   `json:"title"`
	Topics    []string `json:"topics"`
	Audience  string   `json:"audience,omitempty"`
}

// Result is the drafted deck. Slides are renumbered 1..n in order.
type Result struct {
	Slides   []models.SlideRecord      `json:"slides"`
	Dropped  []*schema.ValidationError `json:"-"`
	Strategy string                    `json:"strategy"`
	Attempts int                       `json:"attempts"`
}

// Generator drafts chapters.
type Generator struct {
	llm           llm.Completer
	parser        *recovery.Parser
	retry         *retry.Executor
	timeout       time.Duration
	regenerations int
}

// Option configures a Generator.
type Option func(*Generator)

// WithParser replaces the slide parser.
func WithParser(p *recovery.Parser) Option {
	return func(g *Generator) { g.parser = p }
}

// WithRetry sets the executor for model calls.
func WithRetry(e *retry.Executor) Option {
	return func(g *Generator) { g.retry = e }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// WithRegenerations sets how many times an unusable reply is requested again.
func WithRegenerations(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.regenerations = n
		}
	}
}

// NewGenerator creates a Generator around a language model.
func NewGenerator(c llm.Completer, opts ...Option) *Generator {
	g := &Generator{
		llm:           c,
		parser:        recovery.NewSlideParser(),
		retry:         retry.New(retry.DefaultPolicy()),
		timeout:       90 * time.Second,
		regenerations: 1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate drafts the chapter. It fails only when no reply yields a single
// valid slide; invalid records are dropped and listed in Result.Dropped.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	logger := logging.WithChapter(req.CourseID, req.ChapterID)
	prompt := BuildPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= g.regenerations+1; attempt++ {
		raw, err := retry.DoValue(ctx, g.retry, "llm.complete", func(ctx context.Context) (string, error) {
			cctx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return g.llm.Complete(cctx, prompt)
		})
		if err != nil {
			return nil, fmt.Errorf("chapter %s: %w", req.ChapterID, err)
		}

		res, err := g.parser.ParseSlides(raw)
		switch {
		case err != nil:
			lastErr = err
		case len(res.Slides) == 0:
			lastErr = fmt.Errorf("%w: %d records dropped", ErrNoSlides, len(res.Dropped))
		default:
			out := &Result{
				Slides:   renumber(res.Slides),
				Dropped:  res.Dropped,
				Strategy: res.Strategy,
				Attempts: attempt,
			}
			out.Dropped = append(out.Dropped, dedupe(&out.Slides)...)
			logger.Info().
				Int("slides", len(out.Slides)).
				Int("dropped", len(out.Dropped)).
				Str("strategy", out.Strategy).
				Int("attempt", attempt).
				Msg("Chapter drafted")
			return out, nil
		}

		if ctx.Err() != nil {
			break
		}
		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Msg("Model reply unusable")
	}

	log.Error().Err(lastErr).Str("chapterId", req.ChapterID).Msg("Chapter drafting failed")
	return nil, fmt.Errorf("chapter %s: %w", req.ChapterID, lastErr)
}

// BuildPrompt renders the user prompt for req. Topics are listed one per
// "- " line.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter: %s\n", strings.TrimSpace(req.Title))
	if req.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", req.Audience)
	}
	if len(req.Topics) > 0 {
		b.WriteString("Topics:\n")
		for _, t := range req.Topics {
			if t = strings.TrimSpace(t); t != "" {
				fmt.Fprintf(&b, "- %s\n", t)
			}
		}
		b.WriteString("Write one slide per topic, in order.\n")
	} else {
		b.WriteString("Choose three to six topics that cover the chapter.\n")
	}
	b.WriteString("Narration is spoken aloud: plain sentences, no markdown, no html.\n")
	return b.String()
}

// renumber orders slides by their model-assigned index and reassigns 1..n.
func renumber(slides []models.SlideRecord) []models.SlideRecord {
	out := append([]models.SlideRecord(nil), slides...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SlideIndex < out[j].SlideIndex })
	for i := range out {
		out[i].SlideIndex = i + 1
	}
	return out
}

// dedupe removes slides whose id repeats an earlier slide and renumbers.
func dedupe(slides *[]models.SlideRecord) []*schema.ValidationError {
	var dropped []*schema.ValidationError
	seen := make(map[string]bool, len(*slides))
	kept := (*slides)[:0]
	for i, s := range *slides {
		if seen[s.SlideID] {
			dropped = append(dropped, &schema.ValidationError{
				Index: i, SlideID: s.SlideID, Field: "slideId", Reason: "duplicate slide id",
			})
			continue
		}
		seen[s.SlideID] = true
		kept = append(kept, s)
	}
	for i := range kept {
		kept[i].SlideIndex = i + 1
	}
	*slides = kept
	return dropped
}
