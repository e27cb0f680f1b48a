package completion

import (
	"context"

	"github.com/jonwraymond/airelay/cache"
)

// Response is a finished completion.
type Response struct {
	Text         string `json:"text"`
	Model        string `json:"model,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`

	// Cached reports that the response was served from the response cache.
	Cached bool `json:"-"`
}

// Completer performs one completion call. Failures are classified apierr
// errors.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Complete must honor cancellation/deadlines.
// - Retries: implementations make exactly one attempt per call.
type Completer interface {
	Complete(ctx context.Context, req cache.Request) (Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req cache.Request) (Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req cache.Request) (Response, error) {
	return f(ctx, req)
}
