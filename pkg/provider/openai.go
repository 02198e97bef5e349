package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// NameOpenAI identifies the OpenAI adapter.
	NameOpenAI = "openai"

	defaultOpenAIURL = "https://api.openai.com/v1"
)

// OpenAIProvider implements Provider for the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey string
	client *openai.Client
	settings
}

// NewOpenAIProvider creates an OpenAI provider with the given API key. An
// empty key is accepted; Complete then fails with an auth error.
func NewOpenAIProvider(apiKey string, opts ...Option) *OpenAIProvider {
	s := newSettings(defaultOpenAIURL, opts)

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = s.baseURL
	cfg.HTTPClient = s.httpClient

	return &OpenAIProvider{
		apiKey:   apiKey,
		client:   openai.NewClientWithConfig(cfg),
		settings: s,
	}
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return NameOpenAI }

// Complete sends a request to the OpenAI Chat Completions API.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if p.apiKey == "" {
		return nil, &Error{Kind: KindAuth, Provider: NameOpenAI, Err: ErrNoCredential}
	}

	req := buildOpenAIRequest(messages, opts)
	return p.withRetry(ctx, NameOpenAI, func(ctx context.Context) (*Response, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, classifyOpenAIError(ctx, err)
		}
		return parseOpenAIResponse(resp)
	})
}

func buildOpenAIRequest(messages []Message, opts Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
	}
	if isReasoningModel(opts.Model) {
		req.MaxCompletionTokens = opts.MaxTokens
	} else {
		req.MaxTokens = opts.MaxTokens
	}
	// The client drops a zero temperature from the payload, which the API
	// reads as its default of 1.0.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return req
}

// isReasoningModel reports whether model belongs to the o-series, which takes
// max_completion_tokens instead of max_tokens.
func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func parseOpenAIResponse(or openai.ChatCompletionResponse) (*Response, error) {
	if len(or.Choices) == 0 {
		return nil, &Error{Kind: KindMalformed, Provider: NameOpenAI, Err: errors.New("response contained no choices")}
	}

	resp := &Response{
		Content: or.Choices[0].Message.Content,
		Model:   or.Model,
	}
	if or.Usage.TotalTokens > 0 || or.Usage.PromptTokens > 0 {
		resp.Usage = &Usage{
			PromptTokens:     or.Usage.PromptTokens,
			CompletionTokens: or.Usage.CompletionTokens,
			TotalTokens:      or.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// classifyOpenAIError maps go-openai client errors onto provider error kinds.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &Error{
			Kind:       kindForStatus(apiErr.HTTPStatusCode),
			Provider:   NameOpenAI,
			StatusCode: apiErr.HTTPStatusCode,
			Err:        errors.New(apiErr.Message),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &Error{
			Kind:       kindForStatus(reqErr.HTTPStatusCode),
			Provider:   NameOpenAI,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return classify(ctx, NameOpenAI, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Kind: KindMalformed, Provider: NameOpenAI, Err: err}
	}
	// Anything else was rejected by the client before it was sent.
	return &Error{Kind: KindPermanent, Provider: NameOpenAI, Err: err}
}
