// Package recovery turns unreliable language-model output into structured JSON.
//
// A Parser runs an ordered cascade of repair strategies over the raw text. Each
// strategy produces a candidate JSON text; the first candidate that is valid
// JSON and passes the parser's structural validator wins. Repairs that fix
// local defects (quoting, commas, escapes) carry their output forward so later
// strategies see the repaired text.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"ai-course-media-service/internal/observability/metrics"
)

// ErrNoStructure is returned when the input holds no bracket characters at all.
var ErrNoStructure = errors.New("no JSON array or object in model output")

// ErrInvalidShape is returned by validators when a candidate parses but has the wrong shape.
var ErrInvalidShape = errors.New("recovered value has unexpected shape")

// StrategyFailure records why one strategy did not produce an accepted value.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// UnrecoverableFormatError means every strategy was attempted and none produced a valid value.
type UnrecoverableFormatError struct {
	Attempts []StrategyFailure
	Preview  string
	cause    error
}

func (e *UnrecoverableFormatError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("unrecoverable model output: %v (preview=%q)", e.cause, e.Preview)
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("unrecoverable model output after %d strategies, last %s: %v (preview=%q)",
		len(e.Attempts), last.Strategy, last.Err, e.Preview)
}

// Unwrap returns the underlying cause, ErrNoStructure for bracket-free input.
func (e *UnrecoverableFormatError) Unwrap() error {
	return e.cause
}

// Validator checks the shape of a syntactically valid candidate.
type Validator func(data []byte) error

// Strategy is one step of the repair cascade.
// Apply returns candidate JSON text, or an error when the strategy does not apply.
// When Carry is set, the candidate becomes the input of the following strategies.
// A Prepare strategy only rewrites the input; its output is not attempted on its own.
type Strategy struct {
	Name    string
	Apply   func(text string) (string, error)
	Carry   bool
	Prepare bool
}

// Parser recovers structured values from raw model text. It is safe for concurrent use.
type Parser struct {
	strategies []Strategy
	validate   Validator
	metrics    *metrics.Metrics
}

// Option configures a Parser.
type Option func(*Parser)

// WithValidator replaces the structural validator. The default accepts any array or object.
func WithValidator(v Validator) Option {
	return func(p *Parser) { p.validate = v }
}

// WithStrategies replaces the strategy cascade.
func WithStrategies(s []Strategy) Option {
	return func(p *Parser) { p.strategies = s }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Parser) { p.metrics = m }
}

// New creates a Parser using the default cascade.
func New(opts ...Option) *Parser {
	p := &Parser{
		strategies: DefaultStrategies(),
		validate:   ValidateContainer,
		metrics:    metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultStrategies returns the standard eight-step cascade.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "fence_strip", Apply: StripFences, Carry: true, Prepare: true},
		{Name: "direct", Apply: Direct},
		{Name: "html_attribute_quotes", Apply: FixHTMLAttributeQuotes, Carry: true},
		{Name: "structural_repair", Apply: RepairStructure, Carry: true},
		{Name: "escape_repair", Apply: RepairEscapes, Carry: true},
		{Name: "bracket_balance", Apply: BalanceBrackets},
		{Name: "boundary_extract", Apply: ExtractFirstValue},
		{Name: "field_extract", Apply: ExtractSlideFields},
	}
}

// ValidateContainer accepts any JSON array or object.
func ValidateContainer(data []byte) error {
	res := gjson.ParseBytes(data)
	if !res.IsArray() && !res.IsObject() {
		return fmt.Errorf("%w: top-level value is %s", ErrInvalidShape, res.Type)
	}
	return nil
}

// Result is an accepted candidate.
type Result struct {
	Data     []byte
	Strategy string
}

// Recover runs the cascade and returns the first accepted candidate text.
func (p *Parser) Recover(raw string) (*Result, error) {
	if !strings.ContainsAny(raw, "[{") {
		p.recordFailure()
		return nil, &UnrecoverableFormatError{Preview: preview(raw), cause: ErrNoStructure}
	}

	var attempts []StrategyFailure
	state := raw
	tried := make(map[string]bool)

	for _, s := range p.strategies {
		candidate, err := s.Apply(state)
		if err != nil {
			attempts = append(attempts, StrategyFailure{Strategy: s.Name, Err: err})
			log.Debug().Str("strategy", s.Name).Err(err).Msg("Recovery strategy not applicable")
			continue
		}
		if s.Carry {
			state = candidate
		}
		if s.Prepare {
			continue
		}
		if tried[candidate] {
			attempts = append(attempts, StrategyFailure{Strategy: s.Name, Err: errUnchanged})
			continue
		}
		tried[candidate] = true

		if err := p.accept(candidate); err != nil {
			attempts = append(attempts, StrategyFailure{Strategy: s.Name, Err: err})
			log.Debug().Str("strategy", s.Name).Err(err).Msg("Recovery candidate rejected")
			continue
		}

		if p.metrics != nil {
			p.metrics.RecordRecoveryStrategy(s.Name)
		}
		log.Debug().Str("strategy", s.Name).Int("attempts", len(attempts)+1).Msg("Model output recovered")
		return &Result{Data: []byte(candidate), Strategy: s.Name}, nil
	}

	p.recordFailure()
	return nil, &UnrecoverableFormatError{Attempts: attempts, Preview: preview(raw), cause: lastErr(attempts)}
}

// Parse recovers raw into a generic value: []any or map[string]any.
func (p *Parser) Parse(raw string) (any, error) {
	res, err := p.Recover(raw)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(res.Data, &v); err != nil {
		return nil, fmt.Errorf("decode recovered value: %w", err)
	}
	return v, nil
}

// ParseInto recovers raw and decodes it into v.
func (p *Parser) ParseInto(raw string, v any) error {
	res, err := p.Recover(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Data, v); err != nil {
		return fmt.Errorf("decode recovered value: %w", err)
	}
	return nil
}

func (p *Parser) accept(candidate string) error {
	if !json.Valid([]byte(candidate)) {
		return errInvalidJSON
	}
	if p.validate != nil {
		return p.validate([]byte(candidate))
	}
	return nil
}

func (p *Parser) recordFailure() {
	if p.metrics != nil {
		p.metrics.RecordRecoveryFailure()
	}
}

var (
	errInvalidJSON = errors.New("candidate is not valid JSON")
	errUnchanged   = errors.New("candidate identical to an earlier attempt")
)

func lastErr(attempts []StrategyFailure) error {
	if len(attempts) == 0 {
		return errInvalidJSON
	}
	return attempts[len(attempts)-1].Err
}

func preview(s string) string {
	const previewLen = 120
	s = strings.TrimSpace(s)
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "..."
}
