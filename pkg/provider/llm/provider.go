// Package llm defines the Provider interface for Large Language Model
// backends used by the remote summary tier.
//
// An LLM provider wraps a remote or local model API (OpenAI, Gemini,
// Anthropic, a local Ollama instance, ...) behind a single blocking
// completion call, so the summarizer never couples to a specific SDK.
//
// Implementors must be safe for concurrent use and must return promptly
// when the supplied context is cancelled.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message drives the reply.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero keeps the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero keeps the
	// provider default.
	MaxTokens int

	// SystemPrompt is an optional instruction injected before Messages.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend and model, e.g. "openai/gpt-4o-mini".
	Name() string
}
