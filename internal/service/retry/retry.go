// Package retry runs calls to external services with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/observability/metrics"
)

// TransientServiceError is a failure of an external service that may succeed on retry.
type TransientServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *TransientServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Service, e.Err)
}

func (e *TransientServiceError) Unwrap() error {
	return e.Err
}

// StatusError classifies a non-success HTTP response. 429 and 5xx produce a
// TransientServiceError; every other status is permanent.
func StatusError(service string, statusCode int, body string) error {
	err := fmt.Errorf("status %d: %s", statusCode, body)
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return &TransientServiceError{Service: service, StatusCode: statusCode, Err: err}
	}
	return fmt.Errorf("%s: %w", service, err)
}

// IsTransient reports whether err is worth retrying: timeouts, dropped
// connections, 429 and 5xx responses. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var tse *TransientServiceError
	if errors.As(err, &tse) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy returns three attempts starting at 500ms, doubling, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
	}
}

// Executor retries transient failures under a Policy. It is safe for concurrent use.
type Executor struct {
	policy  Policy
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an Executor. Zero policy fields take their defaults.
func New(p Policy, opts ...Option) *Executor {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}

	e := &Executor{policy: p, metrics: metrics.DefaultMetrics, sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Delay returns the wait before the given retry, 1 being the first retry.
func (e *Executor) Delay(retry int) time.Duration {
	d := float64(e.policy.BaseDelay)
	for i := 1; i < retry; i++ {
		d *= e.policy.Multiplier
		if d >= float64(e.policy.MaxDelay) {
			return e.policy.MaxDelay
		}
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, fails permanently, or the attempt budget is
// spent. Permanent errors are returned unchanged.
func (e *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}

		delay := e.Delay(attempt)
		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Transient failure, retrying")
		if e.metrics != nil {
			e.metrics.RecordRetry(operation)
		}
		if serr := e.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, e.policy.MaxAttempts, err)
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, e *Executor, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
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
