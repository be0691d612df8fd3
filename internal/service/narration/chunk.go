package narration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars is the per-call text limit assumed for synthesis providers.
const DefaultMaxChars = 2500

// Chunk splits text into synthesis-safe pieces of at most maxChars characters.
// Pieces break at sentence ends. A sentence longer than the limit is split at
// clause punctuation, then between words, and a single over-long word is cut.
// Consecutive short sentences are packed into one chunk.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var pieces []string
	for _, s := range splitAfter(text, isSentenceEnd) {
		pieces = append(pieces, fit(s, maxChars)...)
	}
	return pack(pieces, maxChars)
}

func fit(s string, max int) []string {
	if utf8.RuneCountInString(s) <= max {
		return []string{s}
	}
	var out []string
	for _, clause := range splitAfter(s, isClauseEnd) {
		if utf8.RuneCountInString(clause) <= max {
			out = append(out, clause)
			continue
		}
		for _, w := range strings.Fields(clause) {
			out = append(out, hardSplit(w, max)...)
		}
	}
	return out
}

func pack(pieces []string, max int) []string {
	var out []string
	var cur strings.Builder
	n := 0
	for _, p := range pieces {
		l := utf8.RuneCountInString(p)
		if n > 0 && n+1+l > max {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(p)
		n += l
	}
	if n > 0 {
		out = append(out, cur.String())
	}
	return out
}

func hardSplit(w string, max int) []string {
	runes := []rune(w)
	var out []string
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// splitAfter cuts s after every rune matching isEnd that is followed by
// whitespace or the end of input. Pieces are trimmed; empty pieces are dropped.
func splitAfter(s string, isEnd func(rune) bool) []string {
	runes := []rune(s)
	var out []string
	start := 0
	for i, r := range runes {
		if !isEnd(r) || (i+1 < len(runes) && !unicode.IsSpace(runes[i+1])) {
			continue
		}
		if p := strings.TrimSpace(string(runes[start : i+1])); p != "" {
			out = append(out, p)
		}
		start = i + 1
	}
	if p := strings.TrimSpace(string(runes[start:])); p != "" {
		out = append(out, p)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClauseEnd(r rune) bool {
	return r == ',' || r == ';' || r == ':'
}
