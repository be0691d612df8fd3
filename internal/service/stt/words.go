package stt

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"ai-course-media-service/internal/models"
)

// ErrInvalidResponse is returned when a transcription response is not JSON.
var ErrInvalidResponse = errors.New("transcription response is not valid JSON")

var (
	textKeys  = []string{"punctuated_word", "word", "text"}
	startKeys = []string{"start", "startTime", "start_time", "startOffset"}
	endKeys   = []string{"end", "endTime", "end_time", "endOffset"}
)

// ParseWords reads word timings and the transcript text out of a provider
// response. It understands the common shapes:
//
//	[{"word","start","end"}, ...]
//	{"words": [...], "text": "..."}
//	{"segments": [{"text", "words": [...]}]}
//	{"results": [{"alternatives": [{"transcript", "words": [...]}]}]}
//	{"results": {"channels": [{"alternatives": [{"transcript", "words": [...]}]}]}}
//
// Times may be numbers of seconds or duration strings such as "1.500s".
// Words without text are skipped. Either return value may be empty.
func ParseWords(raw []byte) ([]models.WordTiming, string, error) {
	if !gjson.ValidBytes(raw) {
		return nil, "", ErrInvalidResponse
	}
	root := gjson.ParseBytes(raw)

	if root.IsArray() {
		words := collectWords(root)
		return words, joinWords(words), nil
	}

	var (
		words []models.WordTiming
		texts []string
	)
	switch {
	case root.Get("words").IsArray():
		words = collectWords(root.Get("words"))
	case root.Get("segments").IsArray():
		root.Get("segments").ForEach(func(_, seg gjson.Result) bool {
			words = append(words, collectWords(seg.Get("words"))...)
			texts = appendText(texts, seg.Get("text"))
			return true
		})
	case root.Get("results").IsArray():
		root.Get("results").ForEach(func(_, res gjson.Result) bool {
			alt := res.Get("alternatives.0")
			words = append(words, collectWords(alt.Get("words"))...)
			texts = appendText(texts, alt.Get("transcript"))
			return true
		})
	case root.Get("results.channels").IsArray():
		alt := root.Get("results.channels.0.alternatives.0")
		words = collectWords(alt.Get("words"))
		texts = appendText(texts, alt.Get("transcript"))
	}

	transcript := firstString(root, "text", "transcript")
	if transcript == "" {
		transcript = strings.Join(texts, " ")
	}
	if transcript == "" {
		transcript = joinWords(words)
	}
	return words, transcript, nil
}

func collectWords(arr gjson.Result) []models.WordTiming {
	var words []models.WordTiming
	arr.ForEach(func(_, w gjson.Result) bool {
		text := strings.TrimSpace(firstString(w, textKeys...))
		if text == "" {
			return true
		}
		words = append(words, models.WordTiming{
			Text:  text,
			Start: firstSeconds(w, startKeys...),
			End:   firstSeconds(w, endKeys...),
		})
		return true
	})
	return words
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func firstSeconds(r gjson.Result, keys ...string) float64 {
	for _, k := range keys {
		v := r.Get(k)
		switch v.Type {
		case gjson.Number:
			return v.Float()
		case gjson.String:
			if s, err := strconv.ParseFloat(strings.TrimSuffix(v.Str, "s"), 64); err == nil {
				return s
			}
		}
	}
	return 0
}

func appendText(texts []string, v gjson.Result) []string {
	if s := strings.TrimSpace(v.String()); s != "" {
		return append(texts, s)
	}
	return texts
}

func joinWords(words []models.WordTiming) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
