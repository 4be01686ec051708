package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Message is one chat turn.
type Message struct {
	Role    string // system, user or assistant
	Content string
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the response from an LLM chat completion.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// ChatRequest holds parameters for an LLM chat request. Zero values select
// the provider's defaults.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider is the interface for LLM providers.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	DefaultModel() string
}
