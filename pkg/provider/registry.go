package provider

import (
	"fmt"
	"sort"
	"strings"
)

// Factory builds a provider from an API key and adapter options.
type Factory func(apiKey string, opts ...Option) Provider

// Registry maps provider names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the openai and perplexity
// adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameOpenAI, func(apiKey string, opts ...Option) Provider {
		return NewOpenAIProvider(apiKey, opts...)
	})
	r.Register(NamePerplexity, func(apiKey string, opts ...Option) Provider {
		return NewPerplexityProvider(apiKey, opts...)
	})
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named provider.
func (r *Registry) New(name, apiKey string, opts ...Option) (Provider, error) {
	f, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	return f(apiKey, opts...), nil
}
