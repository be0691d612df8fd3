package recovery

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	errNoBracket      = errors.New("no opening bracket")
	errNoHTMLField    = errors.New("no html field")
	errBalanced       = errors.New("brackets already balanced")
	errNoCompleteJSON = errors.New("no complete top-level value")
)

// StripFences removes markdown code fences and any prose before the first bracket.
func StripFences(text string) (string, error) {
	body := text
	if open := strings.Index(body, "```"); open >= 0 {
		inner := body[open+3:]
		// Drop the info string (```json) up to the end of the fence line.
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "[{") {
			inner = inner[nl+1:]
		}
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		if strings.ContainsAny(inner, "[{") {
			body = inner
		}
	}

	start := strings.IndexAny(body, "[{")
	if start < 0 {
		return "", errNoBracket
	}
	body = strings.TrimSpace(body[start:])
	body = strings.TrimSpace(strings.TrimSuffix(body, "```"))
	return body, nil
}

// Direct returns the text unchanged for a strict parse.
func Direct(text string) (string, error) {
	return text, nil
}

var (
	htmlFieldRe   = regexp.MustCompile(`"html"\s*:\s*"`)
	nextKeyRe     = regexp.MustCompile(`^\s*,\s*"[A-Za-z_][A-Za-z0-9_]*"\s*:`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	escapedAttrRe = regexp.MustCompile(`([A-Za-z_:][-A-Za-z0-9_:.]*)\s*=\s*\\"((?:[^"\\]|\\[^"])*)\\"`)
	bareAttrRe    = regexp.MustCompile(`([A-Za-z_:][-A-Za-z0-9_:.]*)\s*=\s*"([^"]*)"`)
	identRe       = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*`)
)

// FixHTMLAttributeQuotes rewrites double-quoted attribute values inside every
// "html" string field to single quotes, then escapes any quote left bare in
// that field. Text outside html fields is untouched.
func FixHTMLAttributeQuotes(text string) (string, error) {
	locs := htmlFieldRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return "", errNoHTMLField
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		start := loc[1]
		if start < prev {
			continue
		}
		end := htmlValueEnd(text, start)
		b.WriteString(text[prev:start])
		b.WriteString(escapeBareQuotes(singleQuoteAttributes(text[start:end])))
		prev = end
	}
	b.WriteString(text[prev:])
	return b.String(), nil
}

// NormalizeHTMLAttributes converts attr="value" pairs inside the tags of
// decoded html to attr='value'. Element content is left alone, so
// <code>x="1"</code> keeps its quotes. ParseSlides applies it to every slide
// after parsing, whichever strategy recovered the text.
func NormalizeHTMLAttributes(html string) string {
	return inTags(html, bareAttrRe)
}

func singleQuoteAttributes(raw string) string {
	return inTags(inTags(raw, escapedAttrRe), bareAttrRe)
}

// inTags rewrites each attribute matched by re to single quotes, only within
// <...> spans.
func inTags(s string, re *regexp.Regexp) string {
	return tagRe.ReplaceAllStringFunc(s, func(tag string) string {
		return re.ReplaceAllStringFunc(tag, func(m string) string {
			sub := re.FindStringSubmatch(m)
			return sub[1] + "='" + strings.ReplaceAll(sub[2], "'", "&#39;") + "'"
		})
	})
}

// htmlValueEnd finds the quote closing an html string value that starts at
// start. The closing quote is the first unescaped quote followed by the next
// key, a closing brace, or the end of input.
func htmlValueEnd(text string, start int) int {
	for i := start; i < len(text); i++ {
		if text[i] != '"' || isEscaped(text, i) {
			continue
		}
		rest := text[i+1:]
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if trimmed == "" || trimmed[0] == '}' || nextKeyRe.MatchString(rest) {
			return i
		}
	}
	return len(text)
}

func escapeBareQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && !isEscaped(s, i) {
			b.WriteString(`\"`)
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// RepairStructure strips comments and trailing commas and quotes bare object
// keys. It tracks string state so string contents are never modified.
func RepairStructure(text string) (string, error) {
	var b strings.Builder
	b.Grow(len(text) + 16)

	inString := false
	last := byte(0) // last significant byte written outside strings

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(text) {
				i++
				b.WriteByte(text[i])
				continue
			}
			if c == '"' {
				inString = false
				last = '"'
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
			if i < len(text) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
			} else {
				i += end + 3
			}
		case c == ',':
			if next := nextSignificant(text, i+1); next == '}' || next == ']' {
				continue
			}
			b.WriteByte(c)
			last = c
		case (last == '{' || last == ',') && isIdentStart(c):
			ident := identRe.FindString(text[i:])
			after := i + len(ident)
			if nextSignificant(text, after) == ':' {
				b.WriteByte('"')
				b.WriteString(ident)
				b.WriteByte('"')
			} else {
				b.WriteString(ident)
			}
			i = after - 1
			last = 'k'
		default:
			b.WriteByte(c)
			if !isSpace(c) {
				last = c
			}
		}
	}
	return b.String(), nil
}

// RepairEscapes escapes raw control characters found inside string values.
func RepairEscapes(text string) (string, error) {
	var b strings.Builder
	b.Grow(len(text) + 16)

	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			b.WriteByte(c)
			if i+1 < len(text) {
				i++
				b.WriteByte(text[i])
			}
		case '"':
			inString = false
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigit(c >> 4))
				b.WriteByte(hexDigit(c & 0x0f))
				continue
			}
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// BalanceBrackets recovers truncated output. It cuts the text after the last
// complete element of the shallowest open container, dropping any trailing
// partial element, and appends the closers still owed at that point.
func BalanceBrackets(text string) (string, error) {
	var stack []byte
	inString := false

	type cut struct {
		pos   int
		stack []byte
	}
	var cuts []*cut // indexed by depth after the closing bracket

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != opener(c) {
				continue
			}
			stack = stack[:len(stack)-1]
			depth := len(stack)
			if depth == 0 {
				continue
			}
			for len(cuts) <= depth {
				cuts = append(cuts, nil)
			}
			cuts[depth] = &cut{pos: i + 1, stack: append([]byte(nil), stack...)}
		}
	}

	if len(stack) == 0 && !inString {
		return "", errBalanced
	}

	for depth := 1; depth < len(cuts); depth++ {
		if c := cuts[depth]; c != nil {
			return closeAll(text[:c.pos], c.stack), nil
		}
	}

	// No complete nested element: close whatever is open.
	out := text
	if inString {
		out += `"`
	}
	out = strings.TrimRight(out, " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	return closeAll(out, stack), nil
}

func closeAll(prefix string, stack []byte) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(prefix, " \t\r\n,"))
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// ExtractFirstValue cuts the text at the point where nesting depth first
// returns to zero, discarding anything after the first complete value. When
// that value is not valid JSON, as with a bracketed aside in leading prose,
// the scan restarts at the next bracket after it.
func ExtractFirstValue(text string) (string, error) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", errNoBracket
	}
	first := ""
	for {
		end := valueEnd(text, start)
		if end < 0 {
			break
		}
		candidate := text[start:end]
		if gjson.Valid(candidate) {
			return candidate, nil
		}
		if first == "" {
			first = candidate
		}
		next := strings.IndexAny(text[end:], "[{")
		if next < 0 {
			break
		}
		start = end + next
	}
	if first != "" {
		return first, nil
	}
	return "", errNoCompleteJSON
}

// valueEnd returns the index just past the value opening at start, or -1 if
// it never closes.
func valueEnd(text string, start int) int {
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func opener(c byte) byte {
	if c == '}' {
		return '{'
	}
	return '['
}

func nextSignificant(s string, from int) byte {
	for i := from; i < len(s); i++ {
		if !isSpace(s[i]) {
			return s[i]
		}
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func hexDigit(n byte) byte {
	const digits = "0123456789abcdef"
	return digits[n]
}
