package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/app"
	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/schema"
	"ai-course-media-service/internal/service/caption"
	"ai-course-media-service/internal/service/chapter"
	"ai-course-media-service/internal/service/recovery"
	"ai-course-media-service/internal/service/reveal"
)

const maxBodyBytes = 4 << 20

type handlers struct {
	app *app.Application
}

type errorResponse struct {
	Error     string            `json:"error"`
	RequestID string            `json:"requestId,omitempty"`
	Attempts  []attemptResponse `json:"attempts,omitempty"`
}

type attemptResponse struct {
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := errorResponse{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())}
	var unrecoverable *recovery.UnrecoverableFormatError
	if errors.As(err, &unrecoverable) {
		for _, a := range unrecoverable.Attempts {
			resp.Attempts = append(resp.Attempts, attemptResponse{Strategy: a.Strategy, Error: a.Err.Error()})
		}
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return false
	}
	return true
}

type slidesResponse struct {
	Slides   []models.SlideRecord      `json:"slides"`
	Dropped  []*schema.ValidationError `json:"dropped,omitempty"`
	Strategy string                    `json:"strategy"`
}

// recoverSlides parses raw model output into slide records.
func (h *handlers) recoverSlides(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := h.app.Parser.ParseSlides(string(raw))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, slidesResponse{Slides: res.Slides, Dropped: res.Dropped, Strategy: res.Strategy})
}

type captionsRequest struct {
	Words []models.WordTiming `json:"words"`
}

type captionsResponse struct {
	Captions []models.CaptionChunk `json:"captions"`
}

// captions segments word timings. ?format=vtt returns WebVTT.
func (h *handlers) captions(w http.ResponseWriter, r *http.Request) {
	var req captionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chunks := h.app.Segmenter.Segment(req.Words)
	if r.URL.Query().Get("format") == "vtt" {
		w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, caption.ToWebVTT(chunks))
		return
	}
	writeJSON(w, http.StatusOK, captionsResponse{Captions: chunks})
}

type timelineRequest struct {
	RevealIDs []string              `json:"revealIds"`
	Captions  []models.CaptionChunk `json:"captions"`
}

type timelineResponse struct {
	Timeline []models.TimelineEntry `json:"timeline"`
	Ordered  []models.TimelineEntry `json:"ordered"`
}

// timeline plans activation times for reveal ids against caption chunks.
func (h *handlers) timeline(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan := reveal.Plan(req.RevealIDs, req.Captions)
	writeJSON(w, http.StatusOK, timelineResponse{Timeline: plan, Ordered: reveal.Sorted(plan)})
}

// generateChapter drafts a chapter and narrates its slides.
func (h *handlers) generateChapter(w http.ResponseWriter, r *http.Request) {
	var req app.ChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.app.GenerateAndNarrate(r.Context(), req)
	var unrecoverable *recovery.UnrecoverableFormatError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, chapter.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, chapter.ErrNoSlides), errors.As(err, &unrecoverable):
		writeError(w, r, http.StatusUnprocessableEntity, err)
	case r.Context().Err() != nil:
		log.Info().Err(err).Str("chapterId", req.ChapterID).Msg("Chapter request canceled by client")
	default:
		writeError(w, r, http.StatusBadGateway, err)
	}
}

// audio serves merged narration audio from the in-memory store.
func (h *handlers) audio(w http.ResponseWriter, r *http.Request) {
	wav, ok := h.app.Store.Get("mem://" + chi.URLParam(r, "*"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
