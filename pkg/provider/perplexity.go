package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// NamePerplexity identifies the Perplexity adapter.
	NamePerplexity = "perplexity"

	defaultPerplexityURL = "https://api.perplexity.ai/chat/completions"
)

// PerplexityProvider implements Provider for the Perplexity chat completions
// API.
type PerplexityProvider struct {
	apiKey string
	settings
}

// NewPerplexityProvider creates a Perplexity provider with the given API key.
// An empty key is accepted; Complete then fails with an auth error.
func NewPerplexityProvider(apiKey string, opts ...Option) *PerplexityProvider {
	return &PerplexityProvider{
		apiKey:   apiKey,
		settings: newSettings(defaultPerplexityURL, opts),
	}
}

// Name returns "perplexity".
func (p *PerplexityProvider) Name() string { return NamePerplexity }

// perplexityRequest is the Perplexity chat completions request body.
type perplexityRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// perplexityResponse is the Perplexity chat completions response body.
type perplexityResponse struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Choices   []perplexityChoice `json:"choices"`
	Citations []string           `json:"citations"`
	Usage     *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type perplexityChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// perplexityErrorResponse covers both the OpenAI-style error envelope and the
// bare detail form the API returns for validation failures.
type perplexityErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// Complete sends a request to the Perplexity chat completions API.
func (p *PerplexityProvider) Complete(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if p.apiKey == "" {
		return nil, &Error{Kind: KindAuth, Provider: NamePerplexity, Err: ErrNoCredential}
	}

	body, err := p.buildRequestBody(messages, opts)
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}

	return p.withRetry(ctx, NamePerplexity, func(ctx context.Context) (*Response, error) {
		return p.doRequest(ctx, body)
	})
}

func (p *PerplexityProvider) buildRequestBody(messages []Message, opts Options) ([]byte, error) {
	t := opts.Temperature
	return json.Marshal(perplexityRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: &t,
	})
}

func (p *PerplexityProvider) doRequest(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, NamePerplexity, fmt.Errorf("sending HTTP request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classify(ctx, NamePerplexity, fmt.Errorf("reading response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{
			Kind:       kindForStatus(httpResp.StatusCode),
			Provider:   NamePerplexity,
			StatusCode: httpResp.StatusCode,
			Err:        errors.New(perplexityErrorMessage(respBody)),
		}
	}

	var pr perplexityResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, &Error{Kind: KindMalformed, Provider: NamePerplexity, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return parsePerplexityResponse(&pr)
}

func parsePerplexityResponse(pr *perplexityResponse) (*Response, error) {
	if len(pr.Choices) == 0 {
		return nil, &Error{Kind: KindMalformed, Provider: NamePerplexity, Err: errors.New("response contained no choices")}
	}

	resp := &Response{
		Content: withCitations(pr.Choices[0].Message.Content, pr.Citations),
		Model:   pr.Model,
	}
	if pr.Usage != nil {
		resp.Usage = &Usage{
			PromptTokens:     pr.Usage.PromptTokens,
			CompletionTokens: pr.Usage.CompletionTokens,
			TotalTokens:      pr.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// withCitations appends the numbered source list Perplexity returns alongside
// its answer.
func withCitations(content string, citations []string) string {
	if len(citations) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(content, "\n"))
	b.WriteString("\n\nSources:\n")
	for i, c := range citations {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func perplexityErrorMessage(body []byte) string {
	var apiErr perplexityErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			return apiErr.Error.Message
		}
		if len(apiErr.Detail) > 0 {
			var s string
			if json.Unmarshal(apiErr.Detail, &s) == nil {
				return s
			}
			return string(apiErr.Detail)
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty error body"
	}
	return msg
}
