// Package llm defines the language model capability used to draft slides.
package llm

import "context"

// Completer returns the raw text a language model produced for prompt. The
// text is untrusted: callers run it through recovery before use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
