package reveal

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/observability/metrics"
)

// Controller drives the reveals of one displayed slide from a playback clock.
//
// State transitions:
//
//	LOADING → READY → UNLOADED
//	   ↑        │
//	   └─ Load ─┘
//
// Rules:
//   - LOADING: ticks are dropped; Ready() shows the heading and starts the clock
//   - READY: every Update(t) reconciles the surface with the timeline
//   - UNLOADED: terminal, all operations return ErrUnloaded
//
// A Controller is owned by one playback session. The mutex only keeps misuse
// from corrupting state.
type Controller struct {
	mu       sync.Mutex
	slideID  string
	firstID  string
	timeline []models.TimelineEntry
	sink     Sink
	loadIDs  *LoadIDGenerator
	metrics  *metrics.Metrics

	state    State
	loadID   string
	playback models.PlaybackState
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLoadIDs shares a load id generator between controllers.
func WithLoadIDs(g *LoadIDGenerator) ControllerOption {
	return func(c *Controller) { c.loadIDs = g }
}

// WithControllerMetrics sets the metrics sink. Nil disables metrics.
func WithControllerMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller in LOADING state. The timeline is
// ordered by activation time with ties kept in reveal order; its first entry
// names the heading reveal.
func NewController(slideID string, timeline []models.TimelineEntry, sink Sink, opts ...ControllerOption) *Controller {
	c := &Controller{
		slideID: slideID,
		sink:    sink,
		loadIDs: NewLoadIDGenerator(),
		metrics: metrics.DefaultMetrics,
		state:   StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.setTimeline(timeline)
	return c
}

func (c *Controller) setTimeline(timeline []models.TimelineEntry) {
	c.firstID = ""
	if len(timeline) > 0 {
		c.firstID = timeline[0].RevealID
	}
	c.timeline = Sorted(timeline)
	c.playback = models.PlaybackState{LastActivatedIndex: -1}
}

// SlideID returns the slide id.
func (c *Controller) SlideID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slideID
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoadID returns the id of the current load, empty before the first Ready.
func (c *Controller) LoadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadID
}

// PlaybackState returns a copy of the clock position.
func (c *Controller) PlaybackState() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

// Load returns the controller to LOADING with a new slide and timeline.
func (c *Controller) Load(slideID string, timeline []models.TimelineEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsTerminal() {
		return ErrUnloaded
	}
	c.slideID = slideID
	c.setTimeline(timeline)
	c.state = StateLoading
	return nil
}

// Ready moves LOADING to READY. It hides every reveal, shows the heading
// without animation, and rewinds the clock.
func (c *Controller) Ready(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateUnloaded:
		return ErrUnloaded
	case StateReady:
		return ErrAlreadyReady
	}

	c.loadID = c.loadIDs.Next(c.slideID)
	c.playback = models.PlaybackState{LastActivatedIndex: -1}
	if err := c.showHeading(ctx); err != nil {
		return err
	}
	c.state = StateReady

	log.Debug().
		Str("slideId", c.slideID).
		Str("loadId", c.loadID).
		Int("entries", len(c.timeline)).
		Msg("Slide ready")
	return nil
}

// Update reconciles the surface with playback time t. Moving forward reveals
// each newly due entry in order; moving backward past a revealed entry hides
// everything and re-reveals the due entries in one batch. Repeating a tick
// sends nothing. Before Ready the tick is dropped and ErrNotReady returned.
func (c *Controller) Update(ctx context.Context, t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateLoading:
		if c.metrics != nil {
			c.metrics.RecordRevealDropped()
		}
		return ErrNotReady
	case StateUnloaded:
		return ErrUnloaded
	}

	c.playback.CurrentTime = t
	due := c.highestDue(t)
	last := c.playback.LastActivatedIndex

	switch {
	case due < last:
		if err := c.showHeading(ctx); err != nil {
			return err
		}
		var ids []string
		for _, e := range c.timeline[:due+1] {
			if e.RevealID != c.firstID {
				ids = append(ids, e.RevealID)
			}
		}
		if len(ids) > 0 {
			if err := c.send(ctx, Command{Type: CommandRevealManyAnimated, IDs: ids}); err != nil {
				return err
			}
		}
		log.Debug().
			Str("slideId", c.slideID).
			Float64("t", t).
			Int("from", last).
			Int("to", due).
			Msg("Playback seeked backward")
	case due > last:
		for _, e := range c.timeline[last+1 : due+1] {
			if e.RevealID == c.firstID {
				continue
			}
			if err := c.send(ctx, Command{Type: CommandRevealOneAnimated, ID: e.RevealID}); err != nil {
				return err
			}
		}
	default:
		return nil
	}

	c.playback.LastActivatedIndex = due
	return nil
}

// Unload tears the slide down. Idempotent; returns false if already unloaded.
func (c *Controller) Unload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsTerminal() {
		return false
	}
	c.state = StateUnloaded
	return true
}

func (c *Controller) showHeading(ctx context.Context) error {
	if err := c.send(ctx, Command{Type: CommandResetAllHidden}); err != nil {
		return err
	}
	if c.firstID == "" {
		return nil
	}
	return c.send(ctx, Command{Type: CommandRevealOneImmediate, ID: c.firstID})
}

// highestDue returns the largest index whose activation time is at or before t, or -1.
func (c *Controller) highestDue(t float64) int {
	due := -1
	for i, e := range c.timeline {
		if e.ActivationTime > t {
			break
		}
		due = i
	}
	return due
}

func (c *Controller) send(ctx context.Context, cmd Command) error {
	cmd.SlideID = c.slideID
	cmd.LoadID = c.loadID
	if err := c.sink.Send(ctx, cmd); err != nil {
		log.Warn().
			Err(err).
			Str("slideId", c.slideID).
			Str("type", string(cmd.Type)).
			Msg("Reveal command not delivered")
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordRevealCommand(string(cmd.Type))
	}
	return nil
}
