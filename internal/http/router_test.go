package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-course-media-service/internal/app"
	"ai-course-media-service/internal/config"
	"ai-course-media-service/internal/models"
)

func newTestApp(t *testing.T) *app.Application {
	t.Helper()
	cfg := &config.Config{
		Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
		LLM:           config.LLMConfig{Provider: "mock", Timeout: time.Second},
		TTS:           config.TTSConfig{Provider: "mock", Timeout: time.Second, MaxChunkChars: 2500},
		STT:           config.STTConfig{Provider: "mock", Timeout: time.Second, FallbackWordSeconds: 0.4},
		Retry:         config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Pipeline:      config.PipelineConfig{Concurrency: 2, ChunkDelay: -1},
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestApp(t)
	r := NewRouter(a)

	if rec := do(t, r, http.MethodGet, "/v1/liveness", ""); rec.Code != http.StatusOK {
		t.Errorf("liveness=%d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/v1/readiness", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness before start=%d, want 503", rec.Code)
	}
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if rec := do(t, r, http.MethodGet, "/v1/readiness", ""); rec.Code != http.StatusOK {
		t.Errorf("readiness after start=%d, want 200", rec.Code)
	}
}

func TestRecoverSlides(t *testing.T) {
	r := NewRouter(newTestApp(t))

	body := "Sure! Here you go:\n```json\n" +
		`[{"slideId":"s1","slideIndex":1,"html":"<h2 data-reveal=\"r1\">Hi</h2>","narration":{"fullText":"Hello there."},"revealData":["r1"]}]` +
		"\n```"
	rec := do(t, r, http.MethodPost, "/v1/slides/recover", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp slidesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Slides) != 1 || resp.Slides[0].SlideID != "s1" {
		t.Errorf("unexpected slides %+v", resp.Slides)
	}
	if resp.Strategy == "" {
		t.Error("expected the winning strategy to be reported")
	}

	rec = do(t, r, http.MethodPost, "/v1/slides/recover", "I could not produce slides this time.")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unrecoverable input status=%d, want 422", rec.Code)
	}
	var errResp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil || errResp.Error == "" {
		t.Errorf("expected error body, got %s", rec.Body)
	}
}

func TestCaptions(t *testing.T) {
	r := NewRouter(newTestApp(t))
	body := `{"words":[
		{"text":"Welcome","start":0,"end":0.4},
		{"text":"to","start":0.4,"end":0.6},
		{"text":"the","start":0.6,"end":0.8},
		{"text":"course.","start":0.8,"end":1.2}]}`

	rec := do(t, r, http.MethodPost, "/v1/captions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp captionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	words := 0
	for _, c := range resp.Captions {
		words += c.WordCount
	}
	if words != 4 {
		t.Errorf("captions cover %d words, want 4", words)
	}

	rec = do(t, r, http.MethodPost, "/v1/captions?format=vtt", body)
	if !strings.HasPrefix(rec.Body.String(), "WEBVTT") {
		t.Errorf("expected WebVTT body, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vtt") {
		t.Errorf("content-type=%s", ct)
	}

	if rec := do(t, r, http.MethodPost, "/v1/captions", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status=%d, want 400", rec.Code)
	}
}

func TestTimeline_Fallback(t *testing.T) {
	r := NewRouter(newTestApp(t))

	rec := do(t, r, http.MethodPost, "/v1/timeline", `{"revealIds":["r1","r2","r3"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp timelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Timeline) != 3 || resp.Timeline[0].ActivationTime != 0 {
		t.Errorf("unexpected timeline %+v", resp.Timeline)
	}
	if resp.Timeline[2].ActivationTime <= resp.Timeline[1].ActivationTime {
		t.Errorf("fallback times should increase, got %+v", resp.Timeline)
	}
}

func TestGenerateChapter(t *testing.T) {
	r := NewRouter(newTestApp(t))

	rec := do(t, r, http.MethodPost, "/v1/chapters/generate",
		`{"courseId":"c1","chapterId":"ch1","title":"Queues","topics":["Producers","Consumers"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var res app.ChapterResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Slides) != 2 || res.Report.Succeeded != 2 || len(res.Media) != 2 {
		t.Fatalf("unexpected result: slides=%d report=%+v media=%d", len(res.Slides), res.Report, len(res.Media))
	}

	audio := do(t, r, http.MethodGet, "/v1/audio/"+strings.TrimPrefix(res.Media[0].AudioURI, "mem://"), "")
	if audio.Code != http.StatusOK || !bytes.HasPrefix(audio.Body.Bytes(), []byte("RIFF")) {
		t.Errorf("audio status=%d, want a WAV body", audio.Code)
	}
	if rec := do(t, r, http.MethodGet, "/v1/audio/missing.wav", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing audio status=%d, want 404", rec.Code)
	}

	if rec := do(t, r, http.MethodPost, "/v1/chapters/generate", `{"chapterId":"ch2"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title status=%d, want 400", rec.Code)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestPlaybackWebsocket(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestApp(t)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/playback/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(msg playbackMessage) {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// A tick before anything is loaded is ignored.
	send(playbackMessage{Type: msgTick, T: 1})
	send(playbackMessage{Type: msgLoad, SlideID: "s1", Timeline: []models.TimelineEntry{
		{RevealID: "r1", ActivationTime: 0},
		{RevealID: "r2", ActivationTime: 1},
		{RevealID: "r3", ActivationTime: 2},
	}})
	if f := readFrame(t, conn); f["type"] != "state" || f["state"] != "LOADING" {
		t.Fatalf("after load got %v", f)
	}

	send(playbackMessage{Type: msgReady})
	wantTypes := []string{"reset-all-hidden", "reveal-one-immediate", "state"}
	for _, want := range wantTypes {
		if f := readFrame(t, conn); f["type"] != want {
			t.Fatalf("got frame %v, want type %s", f, want)
		}
	}

	send(playbackMessage{Type: msgTick, T: 1.5})
	f := readFrame(t, conn)
	if f["type"] != "reveal-one-animated" || f["id"] != "r2" {
		t.Fatalf("after tick got %v", f)
	}
	if lid, _ := f["loadId"].(string); !strings.HasPrefix(lid, "s1-load-") {
		t.Errorf("command not tagged with load id: %v", f)
	}

	send(playbackMessage{Type: "rewind"})
	if f := readFrame(t, conn); f["type"] != "error" {
		t.Errorf("unknown message got %v, want error", f)
	}

	send(playbackMessage{Type: msgUnload})
	if f := readFrame(t, conn); f["state"] != "UNLOADED" {
		t.Errorf("after unload got %v", f)
	}
}
