package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// field binds a config key to its accessor and validating setter.
type field struct {
	key    string
	secret bool
	get    func(*Config) string
	set    func(*Config, string) error
}

// schema is the fixed, ordered set of config keys.
var schema = []field{
	{
		key: "provider",
		get: func(c *Config) string { return c.Provider },
		set: func(c *Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			if !validProvider(v) {
				return invalid("provider", v, "must be one of "+strings.Join(Providers, ", "))
			}
			c.Provider = v
			return nil
		},
	},
	{
		key:    "openai_api_key",
		secret: true,
		get:    func(c *Config) string { return c.OpenAIAPIKey },
		set: func(c *Config, v string) error {
			c.OpenAIAPIKey = strings.TrimSpace(v)
			return nil
		},
	},
	{
		key:    "perplexity_api_key",
		secret: true,
		get:    func(c *Config) string { return c.PerplexityAPIKey },
		set: func(c *Config, v string) error {
			c.PerplexityAPIKey = strings.TrimSpace(v)
			return nil
		},
	},
	{
		key: "model",
		get: func(c *Config) string { return c.Model },
		set: func(c *Config, v string) error {
			v = strings.TrimSpace(v)
			if v == "" {
				return invalid("model", v, "must not be empty")
			}
			c.Model = v
			return nil
		},
	},
	{
		key: "max_tokens",
		get: func(c *Config) string { return strconv.Itoa(c.MaxTokens) },
		set: intSetter("max_tokens", 1, 100000, func(c *Config, n int) { c.MaxTokens = n }),
	},
	{
		key: "temperature",
		get: func(c *Config) string { return strconv.FormatFloat(c.Temperature, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || math.IsNaN(t) {
				return invalid("temperature", v, "must be a number")
			}
			if t < 0 || t > 1 {
				return invalid("temperature", v, "must be between 0.0 and 1.0")
			}
			c.Temperature = t
			return nil
		},
	},
	{
		key: "system_prompt",
		get: func(c *Config) string { return c.SystemPrompt },
		set: func(c *Config, v string) error {
			c.SystemPrompt = v
			return nil
		},
	},
	{
		key: "save_history",
		get: func(c *Config) string { return strconv.FormatBool(c.SaveHistory) },
		set: boolSetter("save_history", func(c *Config, b bool) { c.SaveHistory = b }),
	},
	{
		key: "show_tokens",
		get: func(c *Config) string { return strconv.FormatBool(c.ShowTokens) },
		set: boolSetter("show_tokens", func(c *Config, b bool) { c.ShowTokens = b }),
	},
	{
		key: "context_messages",
		get: func(c *Config) string { return strconv.Itoa(c.ContextMessages) },
		set: intSetter("context_messages", 0, math.MaxInt32, func(c *Config, n int) { c.ContextMessages = n }),
	},
	{
		key: "max_history",
		get: func(c *Config) string { return strconv.Itoa(c.MaxHistory) },
		set: intSetter("max_history", 0, math.MaxInt32, func(c *Config, n int) { c.MaxHistory = n }),
	},
	{
		key: "max_retries",
		get: func(c *Config) string { return strconv.Itoa(c.MaxRetries) },
		set: intSetter("max_retries", 0, 10, func(c *Config, n int) { c.MaxRetries = n }),
	},
}

// Keys returns every config key in schema order.
func Keys() []string {
	out := make([]string, len(schema))
	for i, f := range schema {
		out[i] = f.key
	}
	return out
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	f, ok := lookup(key)
	return ok && f.secret
}

func lookup(key string) (field, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range schema {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

func intSetter(key string, lo, hi int, assign func(*Config, int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return invalid(key, v, "must be an integer")
		}
		if n < lo || n > hi {
			if hi == math.MaxInt32 {
				return invalid(key, v, fmt.Sprintf("must be >= %d", lo))
			}
			return invalid(key, v, fmt.Sprintf("must be between %d and %d", lo, hi))
		}
		assign(c, n)
		return nil
	}
}

func boolSetter(key string, assign func(*Config, bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, ok := parseBool(v)
		if !ok {
			return invalid(key, v, "must be true or false")
		}
		assign(c, b)
		return nil
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

func invalid(key, value, reason string) error {
	return fmt.Errorf("%w: %s=%q %s", ErrInvalidValue, key, value, reason)
}
