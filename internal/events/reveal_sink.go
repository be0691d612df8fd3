package events

import (
	"context"
	"time"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/service/reveal"
)

// RevealSink mirrors reveal commands onto the reveals topic, for renderers
// that follow playback from the message bus.
type RevealSink struct {
	p *Publisher
}

// NewRevealSink returns a reveal.Sink backed by p.
func NewRevealSink(p *Publisher) *RevealSink {
	return &RevealSink{p: p}
}

// Send publishes cmd.
func (s *RevealSink) Send(ctx context.Context, cmd reveal.Command) error {
	return s.p.PublishReveal(ctx, models.RevealCommandEvent{
		EventType: models.EventRevealCommand,
		SlideID:   cmd.SlideID,
		LoadID:    cmd.LoadID,
		Type:      string(cmd.Type),
		ID:        cmd.ID,
		IDs:       cmd.IDs,
		Timestamp: time.Now().UnixMilli(),
	})
}
