// Package history keeps the ordered conversation log and persists it as a
// JSON array.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jdgilhuly/chatapi/pkg/atomicfile"
)

// ErrPersist is returned when the history file cannot be written or removed.
var ErrPersist = errors.New("persisting history")

// Message roles stored in the log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage returns a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// timestampLayouts are tried in order when decoding; the zoneless form is
// what older history files contain and is read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// UnmarshalJSON accepts timestamps with or without a zone offset.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Role == "" {
		return errors.New("message has no role")
	}

	m.Role = raw.Role
	m.Content = raw.Content
	m.Timestamp = time.Time{}
	if raw.Timestamp == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw.Timestamp, time.Local); err == nil {
			m.Timestamp = ts
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw.Timestamp)
}

// WarningKind classifies a non-fatal load problem.
type WarningKind int

const (
	// CorruptFile means the history file exists but could not be decoded.
	CorruptFile WarningKind = iota + 1
	// UnreadableFile means the history file exists but could not be read.
	UnreadableFile
)

// Warning reports a load problem that was recovered by starting empty.
type Warning struct {
	Kind WarningKind
	Path string
	Err  error
}

func (w *Warning) Error() string {
	switch w.Kind {
	case CorruptFile:
		return fmt.Sprintf("history file %s is corrupt, starting with empty history: %v", w.Path, w.Err)
	default:
		return fmt.Sprintf("history file %s could not be read, starting with empty history: %v", w.Path, w.Err)
	}
}

func (w *Warning) Unwrap() error { return w.Err }

// Option configures a History.
type Option func(*History)

// WithMaxMessages keeps at most n messages, evicting the oldest first.
// Zero or less means unbounded.
func WithMaxMessages(n int) Option {
	return func(h *History) { h.max = n }
}

// WithPersist sets whether appends are written to disk. Defaults to true.
func WithPersist(enabled bool) Option {
	return func(h *History) { h.persist = enabled }
}

// History is the in-memory conversation log backed by a JSON file.
type History struct {
	path     string
	persist  bool
	max      int
	messages []Message
}

// Open loads the history file at path. A missing file yields an empty
// history. An unreadable or undecodable file also yields an empty history
// plus a Warning; the file is left in place until the next write.
func Open(path string, opts ...Option) (*History, *Warning) {
	h := &History{path: path, persist: true}
	for _, opt := range opts {
		opt(h)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return h, nil
	case err != nil:
		return h, &Warning{Kind: UnreadableFile, Path: path, Err: err}
	}

	var msgs []Message
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return h, &Warning{Kind: CorruptFile, Path: path, Err: err}
		}
	}
	h.messages = msgs
	h.evict()
	return h, nil
}

// Path returns the history file location.
func (h *History) Path() string { return h.path }

// Persisting reports whether appends are written to disk.
func (h *History) Persisting() bool { return h.persist }

// SetPersist toggles durability. Messages already in memory are kept.
func (h *History) SetPersist(enabled bool) { h.persist = enabled }

// SetMaxMessages changes the retention bound and evicts immediately.
func (h *History) SetMaxMessages(n int) {
	h.max = n
	h.evict()
}

// Append adds msgs in order and, when persisting, writes the whole log in a
// single replace. On a write failure the in-memory append stands and an
// error wrapping ErrPersist is returned.
func (h *History) Append(msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	h.messages = append(h.messages, msgs...)
	h.evict()

	if !h.persist {
		return nil
	}
	return h.save()
}

// Clear empties the log and removes the history file. Clearing an already
// empty history succeeds.
func (h *History) Clear() error {
	h.messages = nil
	if err := atomicfile.Remove(h.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// All returns a copy of every message in order.
func (h *History) All() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages held.
func (h *History) Len() int { return len(h.messages) }

// Window returns a copy of the last n messages, or all of them when n <= 0.
// The window is advanced past leading assistant messages so it always opens
// on a user turn.
func (h *History) Window(n int) []Message {
	start := 0
	if n > 0 && len(h.messages) > n {
		start = len(h.messages) - n
	}
	for start < len(h.messages) && h.messages[start].Role == RoleAssistant {
		start++
	}
	out := make([]Message, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

func (h *History) evict() {
	if h.max > 0 && len(h.messages) > h.max {
		h.messages = append([]Message(nil), h.messages[len(h.messages)-h.max:]...)
	}
}

func (h *History) save() error {
	msgs := h.messages
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrPersist, err)
	}
	if err := atomicfile.WriteFile(h.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
