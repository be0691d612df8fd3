// Package narration prepares slide narration for speech synthesis.
package narration

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	spaceRe       = regexp.MustCompile(`\s+`)
	spacePunctRe  = regexp.MustCompile(`\s+([,.!?;:])`)
	repeatCommaRe = regexp.MustCompile(`,(\s*,)+`)
)

var punctuation = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`,
	"‘", "'", "’", "'", "‚", "'",
	"—", ", ", "–", ", ",
)

// Sanitize turns narration text into plain speakable text. Markup (html tags
// and markdown) is removed, unicode is NFKC-normalized, typographic quotes and
// dashes are replaced, and whitespace is collapsed.
func Sanitize(text string) string {
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = markdownToText(text)
	text = norm.NFKC.String(text)
	text = punctuation.Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")
	text = spacePunctRe.ReplaceAllString(text, "$1")
	text = repeatCommaRe.ReplaceAllString(text, ",")
	return strings.TrimSpace(text)
}

// markdownToText keeps the text content of a markdown document. Headings and
// list items are closed with a period so synthesis pauses after them.
func markdownToText(src string) string {
	md := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := md.Parse([]byte(src))

	var b strings.Builder
	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch node.Type {
		case blackfriday.Text, blackfriday.Code:
			b.Write(node.Literal)
		case blackfriday.CodeBlock:
			b.Write(node.Literal)
			b.WriteByte(' ')
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			b.WriteByte(' ')
		case blackfriday.Paragraph, blackfriday.BlockQuote:
			if !entering {
				b.WriteByte(' ')
			}
		case blackfriday.Heading, blackfriday.Item, blackfriday.TableCell:
			if !entering {
				endSentence(&b)
			}
		}
		return blackfriday.GoToNext
	})
	return b.String()
}

func endSentence(b *strings.Builder) {
	s := strings.TrimRight(b.String(), " \t\n")
	if s == "" {
		return
	}
	b.Reset()
	b.WriteString(s)
	if !strings.ContainsAny(s[len(s)-1:], ".!?:;,") {
		b.WriteByte('.')
	}
	b.WriteByte(' ')
}
