package llm

import (
	"context"
	"strings"
)

// Request is a single system/user exchange.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response.
	JSON bool

	// Source and Reference label the call in the debug log,
	// e.g. "todo" and "2024-01-02_Saliency_todos".
	Source    string
	Reference string
}

// Completer returns the model's text for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
