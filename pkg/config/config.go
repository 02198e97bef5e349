// Package config resolves chatapi settings from built-in defaults, the
// persisted config.yaml and the environment, and persists every change.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Supported provider identifiers.
const (
	ProviderOpenAI     = "openai"
	ProviderPerplexity = "perplexity"
)

// Providers lists every provider a Config may select, in display order.
var Providers = []string{ProviderOpenAI, ProviderPerplexity}

var (
	// ErrUnknownKey is returned for keys outside the fixed schema.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a value fails type or domain checks.
	ErrInvalidValue = errors.New("invalid config value")
	// ErrPersist is returned when the config file cannot be written.
	ErrPersist = errors.New("persisting config")
	// ErrMalformedFile marks the load warning for an unparsable config file.
	ErrMalformedFile = errors.New("malformed config file")
)

// Config holds the effective chatapi settings.
type Config struct {
	Provider         string  `yaml:"provider"`
	OpenAIAPIKey     string  `yaml:"openai_api_key"`
	PerplexityAPIKey string  `yaml:"perplexity_api_key"`
	Model            string  `yaml:"model"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	SystemPrompt     string  `yaml:"system_prompt"`
	SaveHistory      bool    `yaml:"save_history"`
	ShowTokens       bool    `yaml:"show_tokens"`
	ContextMessages  int     `yaml:"context_messages"`
	MaxHistory       int     `yaml:"max_history"`
	MaxRetries       int     `yaml:"max_retries"`
}

// Profile pairs the active provider with its credential and model.
type Profile struct {
	Provider string
	APIKey   string
	Model    string
}

// Default returns a Config populated with the built-in defaults for the
// given provider. An unknown provider falls back to openai.
func Default(provider string) Config {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !validProvider(provider) {
		provider = ProviderOpenAI
	}
	return Config{
		Provider:        provider,
		Model:           DefaultModel(provider),
		MaxTokens:       1000,
		Temperature:     0.7,
		SystemPrompt:    "You are a helpful assistant.",
		SaveHistory:     true,
		ShowTokens:      false,
		ContextMessages: 10,
		MaxHistory:      0,
		MaxRetries:      0,
	}
}

// DefaultModel returns the model used for a provider when none is configured.
func DefaultModel(provider string) string {
	if provider == ProviderPerplexity {
		return "sonar"
	}
	return "gpt-3.5-turbo"
}

// APIKey returns the credential configured for the named provider.
func (c Config) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderPerplexity:
		return c.PerplexityAPIKey
	default:
		return ""
	}
}

// Profile derives the active provider profile.
func (c Config) Profile() Profile {
	return Profile{
		Provider: c.Provider,
		APIKey:   c.APIKey(c.Provider),
		Model:    c.Model,
	}
}

// Validate checks every field against its schema constraint and returns all
// problems joined together.
func (c Config) Validate() error {
	var errs []error
	for _, f := range schema {
		probe := Default(ProviderOpenAI)
		if err := f.set(&probe, f.get(&c)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Diagnose reports non-fatal problems with c that would prevent a chat from
// working, such as a missing credential for the active provider.
func Diagnose(c Config) []string {
	var out []string
	if c.APIKey(c.Provider) == "" {
		envVar := EnvVarFor(c.Provider)
		out = append(out, fmt.Sprintf(
			"%s API key not set; run 'chatapi config set %s_api_key <key>' or set %s",
			DisplayName(c.Provider), c.Provider, envVar))
	}
	return out
}

// Mask hides all but the first few characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "Not set"
	}
	if len(secret) <= 10 {
		return secret[:len(secret)/2] + "..."
	}
	return secret[:10] + "..."
}

func validProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable name of a provider.
func DisplayName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderPerplexity:
		return "Perplexity"
	default:
		return provider
	}
}
