package reveal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/observability/metrics"
)

// CommandType is the kind of a reveal command.
type CommandType string

const (
	CommandResetAllHidden     CommandType = "reset-all-hidden"
	CommandRevealOneImmediate CommandType = "reveal-one-immediate"
	CommandRevealOneAnimated  CommandType = "reveal-one-animated"
	CommandRevealManyAnimated CommandType = "reveal-many-animated"
)

// Command is one message to a rendering surface. ID is set for the
// reveal-one kinds and IDs for reveal-many.
type Command struct {
	Type    CommandType `json:"type"`
	ID      string      `json:"id,omitempty"`
	IDs     []string    `json:"ids,omitempty"`
	SlideID string      `json:"slideId"`
	LoadID  string      `json:"loadId"`
}

// Sink delivers reveal commands to a rendering surface. Activating an id that
// is already active must be a no-op on the surface.
type Sink interface {
	Send(ctx context.Context, cmd Command) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, cmd Command) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// Tee returns a Sink that sends every command to all sinks in order. All
// sinks are attempted; their errors are joined. Use Mirror when only one of
// the sinks is the rendering surface.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, cmd Command) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Send(ctx, cmd); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Mirror returns a Sink whose result is the primary's alone. Each mirror
// still receives every command; a mirror failure is logged and counted but
// never reaches the controller, so a broken mirror cannot stall the surface.
func Mirror(primary Sink, mirrors ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, cmd Command) error {
		err := primary.Send(ctx, cmd)
		for _, m := range mirrors {
			if merr := m.Send(ctx, cmd); merr != nil {
				log.Warn().Err(merr).
					Str("slideId", cmd.SlideID).
					Str("type", string(cmd.Type)).
					Msg("Reveal mirror failed")
				if metrics.DefaultMetrics != nil {
					metrics.DefaultMetrics.RecordRevealMirrorFailure()
				}
			}
		}
		return err
	})
}

var (
	// ErrSinkClosed is returned by an AsyncSink after Close.
	ErrSinkClosed = errors.New("reveal: sink closed")
	// ErrSinkFull is returned when an AsyncSink queue has no room.
	ErrSinkFull = errors.New("reveal: sink queue full")
)

// DefaultAsyncTimeout bounds one forwarded send of an AsyncSink.
const DefaultAsyncTimeout = 2 * time.Second

// AsyncSink forwards commands to next from a single worker goroutine, in the
// order they were sent. Send only enqueues, so a slow next never blocks the
// caller; when the queue is full the command is rejected with ErrSinkFull.
type AsyncSink struct {
	next    Sink
	timeout time.Duration
	queue   chan Command
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts the worker. A non-positive timeout uses
// DefaultAsyncTimeout.
func NewAsyncSink(next Sink, buffer int, timeout time.Duration) *AsyncSink {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	if buffer < 1 {
		buffer = 1
	}
	a := &AsyncSink{
		next:    next,
		timeout: timeout,
		queue:   make(chan Command, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Send enqueues cmd.
func (a *AsyncSink) Send(_ context.Context, cmd Command) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrSinkClosed
	}
	select {
	case a.queue <- cmd:
		return nil
	default:
		return ErrSinkFull
	}
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for cmd := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Send(ctx, cmd); err != nil {
			log.Warn().Err(err).
				Str("slideId", cmd.SlideID).
				Str("type", string(cmd.Type)).
				Msg("Queued reveal command not delivered")
			if metrics.DefaultMetrics != nil {
				metrics.DefaultMetrics.RecordRevealMirrorFailure()
			}
		}
		cancel()
	}
}

// Close stops accepting commands and waits for the queued ones to be
// forwarded. It is safe to call more than once.
func (a *AsyncSink) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

// RecorderSink keeps the commands it receives and the resulting set of active
// ids. It is the in-memory rendering surface used by tests and dry runs.
type RecorderSink struct {
	mu       sync.Mutex
	commands []Command
	active   map[string]bool
}

// NewRecorderSink creates an empty RecorderSink.
func NewRecorderSink() *RecorderSink {
	return &RecorderSink{active: make(map[string]bool)}
}

// Send records cmd and applies it to the active set.
func (r *RecorderSink) Send(_ context.Context, cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)
	switch cmd.Type {
	case CommandResetAllHidden:
		clear(r.active)
	case CommandRevealOneImmediate, CommandRevealOneAnimated:
		r.active[cmd.ID] = true
	case CommandRevealManyAnimated:
		for _, id := range cmd.IDs {
			r.active[id] = true
		}
	}
	return nil
}

// Commands returns a copy of every command received.
func (r *RecorderSink) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Active returns the active ids, sorted.
func (r *RecorderSink) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset forgets all recorded commands.
func (r *RecorderSink) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
	clear(r.active)
}

// DefaultWriteTimeout bounds a websocket frame write when ctx has no deadline.
const DefaultWriteTimeout = 5 * time.Second

// WebsocketSink writes each command as a JSON text frame.
type WebsocketSink struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWebsocketSink wraps an established connection.
func NewWebsocketSink(conn *websocket.Conn) *WebsocketSink {
	return &WebsocketSink{conn: conn, writeTimeout: DefaultWriteTimeout}
}

// Send writes cmd to the connection. Writes are serialized.
func (s *WebsocketSink) Send(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.writeTimeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(cmd)
}

// WriteJSON writes an arbitrary frame under the same lock as commands.
func (s *WebsocketSink) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}
