// Package llm abstracts the external text-completion capability used for
// request interpretation and priority evaluation, plus the tolerant parsing
// of structured payloads out of model responses.
package llm

import "context"

// Completer is the single capability the admission core needs from a
// language-model provider. Implementations must honor ctx cancellation;
// callers wrap invocations in their own timeout.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}
