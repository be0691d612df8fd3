// Package mock provides a mock language model that drafts a small slide deck
// from the topic lines of a prompt, wrapped the way chat models tend to wrap
// JSON: in a code fence with a sentence around it.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ai-course-media-service/internal/models"
)

var defaultTopics = []string{"Overview", "Key ideas", "Summary"}

// Completer implements llm.Completer.
type Completer struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

// New creates a mock completer that drafts a deck per prompt.
func New() *Completer {
	return &Completer{}
}

// NewWithReply creates a mock completer that always returns reply.
func NewWithReply(reply string) *Completer {
	return &Completer{reply: reply}
}

// Complete drafts one slide per "- topic" line of prompt.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	reply := c.reply
	c.mu.Unlock()
	if reply != "" {
		return reply, nil
	}

	topics := topicLines(prompt)
	if len(topics) == 0 {
		topics = defaultTopics
	}
	slides := make([]models.SlideRecord, len(topics))
	for i, topic := range topics {
		slides[i] = draft(i+1, topic)
	}
	b, err := json.MarshalIndent(map[string]any{"slides": slides}, "", "  ")
	if err != nil {
		return "", err
	}
	return "Here is the slide deck you asked for:\n```json\n" + string(b) + "\n```\nLet me know if you want changes.", nil
}

// Prompts returns every prompt received.
func (c *Completer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.prompts...)
}

func topicLines(prompt string) []string {
	var out []string
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if t, ok := strings.CutPrefix(line, "- "); ok && strings.TrimSpace(t) != "" {
			out = append(out, strings.TrimSpace(t))
		}
	}
	return out
}

func draft(index int, topic string) models.SlideRecord {
	return models.SlideRecord{
		SlideID:    fmt.Sprintf("slide-%d", index),
		SlideIndex: index,
		HTML: fmt.Sprintf("<section><h2 data-reveal='r1'>%s</h2><ul>"+
			"<li data-reveal='r2'>What %s means</li>"+
			"<li data-reveal='r3'>Where %s shows up</li></ul></section>", topic, topic, topic),
		Narration: models.Narration{FullText: fmt.Sprintf(
			"Let's look at **%s**. First, what it means and why it matters. Then, where you will meet it in practice.", topic)},
		RevealData: []string{"r1", "r2", "r3"},
	}
}
