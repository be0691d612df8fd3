package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/events"
	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/service/reveal"
)

const (
	playbackReadLimit   = 1 << 20
	playbackIdleTimeout = 2 * time.Minute

	revealMirrorQueue   = 256
	revealMirrorTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client messages of a playback session.
const (
	msgLoad   = "load"
	msgReady  = "ready"
	msgTick   = "tick"
	msgUnload = "unload"
)

type playbackMessage struct {
	Type     string                 `json:"type"`
	SlideID  string                 `json:"slideId,omitempty"`
	Timeline []models.TimelineEntry `json:"timeline,omitempty"`
	T        float64                `json:"t,omitempty"`
}

type playbackStatus struct {
	Type     string               `json:"type"` // state, error
	State    string               `json:"state,omitempty"`
	SlideID  string               `json:"slideId,omitempty"`
	LoadID   string               `json:"loadId,omitempty"`
	Playback models.PlaybackState `json:"playback"`
	Error    string               `json:"error,omitempty"`
}

// playback runs one rendering surface over a websocket. The client sends
// load, ready, tick and unload messages; reveal commands come back as JSON
// frames and are mirrored to the reveals topic.
func (h *handlers) playback(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Playback upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(playbackReadLimit)

	m := h.app.Metrics
	if m != nil {
		m.RecordPlaybackStart()
		defer m.RecordPlaybackEnd()
	}

	// The websocket is the surface. The bus copy is published off the tick
	// path and its failures never reach the controller.
	ws := reveal.NewWebsocketSink(conn)
	bus := reveal.NewAsyncSink(events.NewRevealSink(h.app.Publisher), revealMirrorQueue, revealMirrorTimeout)
	defer bus.Close()
	sink := reveal.Mirror(ws, bus)
	s := &playbackSession{ws: ws, sink: sink, loadIDs: h.app.LoadIDs, h: h}

	// Commands already sent are not rolled back when the client leaves.
	ctx := context.WithoutCancel(r.Context())
	for {
		if err := conn.SetReadDeadline(time.Now().Add(playbackIdleTimeout)); err != nil {
			return
		}
		var msg playbackMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("Playback connection closed")
			}
			s.unload()
			return
		}
		if done := s.handle(ctx, msg); done {
			return
		}
	}
}

type playbackSession struct {
	h       *handlers
	ws      *reveal.WebsocketSink
	sink    reveal.Sink
	loadIDs *reveal.LoadIDGenerator
	ctrl    *reveal.Controller
}

// handle applies one client message and reports whether the session ended.
func (s *playbackSession) handle(ctx context.Context, msg playbackMessage) bool {
	var err error
	switch msg.Type {
	case msgLoad:
		if msg.SlideID == "" {
			err = errors.New("load requires slideId")
			break
		}
		if s.ctrl == nil {
			s.ctrl = reveal.NewController(msg.SlideID, msg.Timeline, s.sink,
				reveal.WithLoadIDs(s.loadIDs),
				reveal.WithControllerMetrics(s.h.app.Metrics),
			)
		} else {
			err = s.ctrl.Load(msg.SlideID, msg.Timeline)
		}
	case msgReady:
		if s.ctrl == nil {
			err = reveal.ErrNotReady
			break
		}
		err = s.ctrl.Ready(ctx)
	case msgTick:
		if s.ctrl == nil {
			return false
		}
		err = s.ctrl.Update(ctx, msg.T)
		if errors.Is(err, reveal.ErrNotReady) {
			// Ticks before ready are dropped without a reply.
			return false
		}
		if err == nil {
			return false
		}
	case msgUnload:
		s.unload()
		s.status("")
		return true
	default:
		err = errors.New("unknown message type " + msg.Type)
	}

	if err != nil {
		s.status(err.Error())
		return false
	}
	s.status("")
	return false
}

func (s *playbackSession) unload() {
	if s.ctrl != nil {
		s.ctrl.Unload()
	}
}

func (s *playbackSession) status(errMsg string) {
	st := playbackStatus{Type: "state", Error: errMsg}
	if errMsg != "" {
		st.Type = "error"
	}
	if s.ctrl != nil {
		st.State = s.ctrl.State().String()
		st.SlideID = s.ctrl.SlideID()
		st.LoadID = s.ctrl.LoadID()
		st.Playback = s.ctrl.PlaybackState()
	}
	if err := s.ws.WriteJSON(st); err != nil {
		log.Debug().Err(err).Msg("Playback status not delivered")
	}
}
