package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"

	"ai-course-media-service/internal/service/retry"
)

const responseBody = `{
  "id": "resp_1",
  "object": "response",
  "created_at": 1700000000,
  "status": "completed",
  "model": "gpt-4.1-mini",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "status": "completed",
    "role": "assistant",
    "content": [{"type": "output_text", "text": "{\"slides\":[]}", "annotations": []}]
  }]
}`

func newTestCompleter(t *testing.T, url string) *Completer {
	t.Helper()
	c, err := New(Config{APIKey: "sk-test", Model: "gpt-4.1-mini"},
		WithRequestOptions(option.WithBaseURL(url+"/")),
		WithMetrics(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(responseBody))
	}))
	defer srv.Close()

	got, err := newTestCompleter(t, srv.URL).Complete(context.Background(), "Chapter: Go channels")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"slides":[]}` {
		t.Errorf("unexpected output %q", got)
	}

	if body["model"] != "gpt-4.1-mini" {
		t.Errorf("unexpected model %v", body["model"])
	}
	format, _ := body["text"].(map[string]any)["format"].(map[string]any)
	if format["type"] != "json_schema" || format["name"] != "SlideDeck" || format["strict"] != true {
		t.Errorf("expected strict json_schema format, got %v", format)
	}
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			}))
			defer srv.Close()

			_, err := newTestCompleter(t, srv.URL).Complete(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if retry.IsTransient(err) != tt.transient {
				t.Errorf("IsTransient=%v, want %v (%v)", retry.IsTransient(err), tt.transient, err)
			}
			if calls != 1 {
				t.Errorf("client retries must be disabled, got %d calls", calls)
			}
		})
	}
}

func TestNew_RequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
}
