// Package session runs a single chat turn: it assembles the context sent to
// the provider and records the exchange in the conversation history.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jdgilhuly/chatapi/pkg/history"
	"github.com/jdgilhuly/chatapi/pkg/provider"
)

// MaxInputLength is the longest message, in characters, Send accepts.
const MaxInputLength = 10000

// ErrInvalidInput is returned for empty, oversized or unsafe messages.
var ErrInvalidInput = errors.New("invalid message")

var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)vbscript:`),
}

// Settings are the generation parameters applied to every turn.
type Settings struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	// ContextMessages bounds how many history messages are sent; 0 sends all.
	ContextMessages int
}

// Reply is the outcome of a successful turn.
type Reply struct {
	Content  string
	Provider string
	Model    string
	// Usage is nil when the provider did not report token counts.
	Usage *provider.Usage
	Cost  float64
	// Priced is false when the model has no known price and Cost means
	// nothing.
	Priced   bool
	Duration time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for exchange records.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// Session sends user messages to a provider with conversation context.
type Session struct {
	provider provider.Provider
	history  *history.History
	settings Settings
	log      logrus.FieldLogger
	now      func() time.Time
}

// New creates a Session over p and h.
func New(p provider.Provider, h *history.History, settings Settings, opts ...Option) *Session {
	s := &Session{
		provider: p,
		history:  h,
		settings: settings,
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the active provider.
func (s *Session) Provider() provider.Provider { return s.provider }

// SetProvider replaces the active provider. History is untouched.
func (s *Session) SetProvider(p provider.Provider) { s.provider = p }

// Settings returns the current generation settings.
func (s *Session) Settings() Settings { return s.settings }

// SetSettings replaces the generation settings.
func (s *Session) SetSettings(settings Settings) { s.settings = settings }

// ValidateInput trims input and checks it against the length limit and the
// unsafe-content patterns.
func ValidateInput(input string) (string, error) {
	msg := strings.TrimSpace(input)
	if msg == "" {
		return "", fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(msg); n > MaxInputLength {
		return "", fmt.Errorf("%w: message too long (%d characters, max %d)", ErrInvalidInput, n, MaxInputLength)
	}
	for _, re := range unsafePatterns {
		if re.MatchString(msg) {
			return "", fmt.Errorf("%w: message contains potentially unsafe content", ErrInvalidInput)
		}
	}
	return msg, nil
}

// Send runs one turn. On success the user message and the reply are appended
// to history, user first. On any provider error or cancellation history is
// left unchanged and the error is returned as-is.
//
// If the exchange succeeded but could not be persisted, Send returns the
// Reply together with an error wrapping history.ErrPersist.
func (s *Session) Send(ctx context.Context, input string) (*Reply, error) {
	msg, err := ValidateInput(input)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"provider":   s.provider.Name(),
		"model":      s.settings.Model,
	})

	messages := s.buildContext(msg)
	log.WithField("context_messages", len(messages)).Debug("sending chat request")

	start := s.now()
	resp, err := s.provider.Complete(ctx, messages, provider.Options{
		Model:       s.settings.Model,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	})
	elapsed := s.now().Sub(start)
	if err != nil {
		entry := log.WithError(err).WithField("duration_ms", elapsed.Milliseconds())
		if kind := provider.KindOf(err); kind != 0 {
			entry = entry.WithField("kind", kind.String())
		}
		entry.Warn("chat request failed")
		return nil, err
	}

	reply := &Reply{
		Content:  resp.Content,
		Provider: s.provider.Name(),
		Model:    s.settings.Model,
		Usage:    resp.Usage,
		Duration: elapsed,
	}
	if resp.Usage != nil {
		reply.Cost, reply.Priced = provider.EstimateCost(s.settings.Model, *resp.Usage)
		if !reply.Priced && resp.Model != "" {
			reply.Cost, reply.Priced = provider.EstimateCost(resp.Model, *resp.Usage)
		}
	}

	fields := logrus.Fields{"duration_ms": elapsed.Milliseconds()}
	if resp.Usage != nil {
		fields["prompt_tokens"] = resp.Usage.PromptTokens
		fields["completion_tokens"] = resp.Usage.CompletionTokens
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	log.WithFields(fields).Info("chat request completed")

	if err := s.history.Append(
		history.Message{Role: history.RoleUser, Content: msg, Timestamp: start},
		history.Message{Role: history.RoleAssistant, Content: resp.Content, Timestamp: s.now()},
	); err != nil {
		log.WithError(err).Error("saving conversation history")
		return reply, fmt.Errorf("saving exchange: %w", err)
	}
	return reply, nil
}

// buildContext returns the system prompt, the history window and msg.
func (s *Session) buildContext(msg string) []provider.Message {
	window := s.history.Window(s.settings.ContextMessages)
	out := make([]provider.Message, 0, len(window)+2)
	if s.settings.SystemPrompt != "" {
		out = append(out, provider.Message{Role: provider.RoleSystem, Content: s.settings.SystemPrompt})
	}
	for _, m := range window {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content})
	}
	return append(out, provider.Message{Role: provider.RoleUser, Content: msg})
}
