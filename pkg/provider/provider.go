package provider

import "context"

// Message roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is implemented once per LLM backend.
type Provider interface {
	// Complete sends the conversation and returns the model's reply.
	Complete(ctx context.Context, messages []Message, opts Options) (*Response, error)

	// Name returns the provider identifier (e.g. "openai").
	Name() string
}

// Message is a single conversation entry sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the generation settings for one completion.
type Options struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

// Response is a completed reply.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	// Usage is nil when the backend did not report token counts.
	Usage *Usage `json:"usage,omitempty"`
}

// Usage reports token consumption for a single request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
