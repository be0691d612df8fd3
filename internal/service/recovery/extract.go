package recovery

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
)

var errNoRecords = errors.New("no complete slide records found")

var (
	slideIDKeyRe  = regexp.MustCompile(`"slideId"\s*:`)
	slideIDRe     = regexp.MustCompile(`"slideId"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	slideIndexRe  = regexp.MustCompile(`"slideIndex"\s*:\s*"?(\d+)"?`)
	fullTextRe    = regexp.MustCompile(`"fullText"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	revealDataRe  = regexp.MustCompile(`"revealData"\s*:\s*\[([^\]]*)\]`)
	quotedValueRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// ExtractSlideFields is the last-resort strategy. It locates slide-shaped
// records by their slideId marker, pulls each required field out with a
// targeted expression, and rebuilds the records. Records missing any of
// slideId, slideIndex, html, narration.fullText or revealData are skipped.
func ExtractSlideFields(text string) (string, error) {
	spans := recordSpans(text)
	if len(spans) == 0 {
		return "", errNoRecords
	}

	out := []byte("[]")
	kept := 0
	for _, span := range spans {
		rec, ok := extractRecord(text[span[0]:span[1]])
		if !ok {
			continue
		}
		var err error
		out, err = sjson.SetRawBytes(out, "-1", rec)
		if err != nil {
			continue
		}
		kept++
	}
	if kept == 0 {
		return "", errNoRecords
	}
	return string(out), nil
}

// recordSpans splits text into one span per slideId marker. Each span starts
// at the object brace preceding its marker, so fields listed before slideId
// stay with their record.
func recordSpans(text string) [][2]int {
	markers := slideIDKeyRe.FindAllStringIndex(text, -1)
	if len(markers) == 0 {
		return nil
	}

	starts := make([]int, len(markers))
	floor := 0
	for i, m := range markers {
		start := m[0]
		if brace := strings.LastIndexByte(text[floor:m[0]], '{'); brace >= 0 {
			start = floor + brace
		}
		starts[i] = start
		floor = m[1]
	}

	spans := make([][2]int, len(starts))
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		spans[i] = [2]int{start, end}
	}
	return spans
}

func extractRecord(span string) ([]byte, bool) {
	id, ok := firstString(slideIDRe, span)
	if !ok || id == "" {
		return nil, false
	}

	m := slideIndexRe.FindStringSubmatch(span)
	if m == nil {
		return nil, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}

	loc := htmlFieldRe.FindStringIndex(span)
	if loc == nil {
		return nil, false
	}
	end := htmlValueEnd(span, loc[1])
	if end >= len(span) {
		return nil, false
	}
	html := decodeJSONString(escapeBareQuotes(singleQuoteAttributes(span[loc[1]:end])))

	fullText, ok := firstString(fullTextRe, span)
	if !ok {
		return nil, false
	}

	rm := revealDataRe.FindStringSubmatch(span)
	if rm == nil {
		return nil, false
	}
	reveal := []string{}
	for _, q := range quotedValueRe.FindAllStringSubmatch(rm[1], -1) {
		reveal = append(reveal, decodeJSONString(q[1]))
	}

	rec := []byte(`{}`)
	fields := []struct {
		path  string
		value any
	}{
		{"slideId", id},
		{"slideIndex", index},
		{"html", html},
		{"narration.fullText", fullText},
		{"revealData", reveal},
	}
	for _, f := range fields {
		if rec, err = sjson.SetBytes(rec, f.path, f.value); err != nil {
			return nil, false
		}
	}
	return rec, true
}

func firstString(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return decodeJSONString(m[1]), true
}

// decodeJSONString resolves escape sequences of a raw JSON string body,
// falling back to the raw text when it does not decode.
func decodeJSONString(raw string) string {
	quoted, _ := RepairEscapes(`"` + raw + `"`)
	var s string
	if err := json.Unmarshal([]byte(quoted), &s); err != nil {
		return raw
	}
	return s
}
