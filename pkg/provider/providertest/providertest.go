// Package providertest provides scripted provider.Provider implementations
// for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jdgilhuly/chatapi/pkg/provider"
)

// Step is one scripted outcome of a Complete call.
type Step struct {
	Response *provider.Response
	Err      error
	// Block makes Complete wait for ctx to be done and return ctx.Err().
	Block bool
}

// Reply returns a Step answering with content.
func Reply(content string) Step {
	return Step{Response: &provider.Response{Content: content}}
}

// ReplyWithUsage returns a Step answering with content and token counts.
func ReplyWithUsage(content string, prompt, completion int) Step {
	return Step{Response: &provider.Response{
		Content: content,
		Usage: &provider.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}}
}

// Fail returns a Step failing with err.
func Fail(err error) Step {
	return Step{Err: err}
}

// BlockUntilCancel returns a Step that only completes when the caller's
// context is done.
func BlockUntilCancel() Step {
	return Step{Block: true}
}

// Call records the arguments of one Complete call.
type Call struct {
	Messages []provider.Message
	Options  provider.Options
}

// MockProvider returns pre-configured steps in sequence and records every
// call. It is safe for concurrent use.
type MockProvider struct {
	name  string
	mu    sync.Mutex
	steps []Step
	idx   int
	calls []Call
}

// New creates a MockProvider named "mock" that plays steps in order. Once
// all steps are consumed, subsequent calls return an error.
func New(steps ...Step) *MockProvider {
	return &MockProvider{name: "mock", steps: steps}
}

// Named sets the name reported by Name.
func (m *MockProvider) Named(name string) *MockProvider {
	m.name = name
	return m
}

// Complete plays the next step.
func (m *MockProvider) Complete(ctx context.Context, messages []provider.Message, opts provider.Options) (*provider.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Messages: append([]provider.Message(nil), messages...),
		Options:  opts,
	})
	if m.idx >= len(m.steps) {
		n := len(m.steps)
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more responses (consumed %d/%d)", n, n)
	}
	step := m.steps[m.idx]
	m.idx++
	m.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

// Name returns the provider name.
func (m *MockProvider) Name() string { return m.name }

// Calls returns the recorded calls in order.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
