package console

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdgilhuly/chatapi/pkg/history"
	"github.com/jdgilhuly/chatapi/pkg/provider"
)

func newTestConsole() (*Console, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestConsole_PlainOutput(t *testing.T) {
	c, out, errOut := newTestConsole()

	c.Info("provider: %s", "openai")
	c.Success("saved")
	c.Warn("no key")
	c.Error(errors.New("boom"))

	assert.Equal(t, "provider: openai\nsaved\n", out.String())
	assert.Equal(t, "Warning: no key\nError: boom\n", errOut.String())
	assert.NotContains(t, out.String(), "\x1b[", "colors must be off by default")
}

func TestConsole_ColorEnabled(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, io.Discard, WithColor(true))
	c.Success("ok")
	assert.Contains(t, out.String(), "\x1b[")
}

func TestConsole_ReplyPlain(t *testing.T) {
	c, out, _ := newTestConsole()
	c.Reply("Assistant", "**bold** text\n")
	assert.Equal(t, "Assistant:\n**bold** text\n", out.String())
}

func TestConsole_Table(t *testing.T) {
	c, out, _ := newTestConsole()
	c.Table("Current configuration", []Row{
		{Key: "provider", Value: "openai"},
		{Key: "openai_api_key", Value: "sk-1234567..."},
	})

	got := out.String()
	assert.Contains(t, got, "Current configuration\n")
	assert.Contains(t, got, "  provider        openai\n")
	assert.Contains(t, got, "  openai_api_key  sk-1234567...\n")
}

func TestConsole_History(t *testing.T) {
	c, out, _ := newTestConsole()
	c.History(nil)
	assert.Equal(t, "No conversation history.\n", out.String())

	out.Reset()
	c.History([]history.Message{
		{Role: history.RoleUser, Content: "hi\nthere"},
		{Role: history.RoleAssistant, Content: strings.Repeat("x", 150), Timestamp: time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)},
	})
	got := out.String()
	assert.Contains(t, got, "(2 messages)")
	assert.Contains(t, got, "  --:--:--  You"+strings.Repeat(" ", 8)+"hi\n"+strings.Repeat(" ", 23)+"there\n")
	assert.Contains(t, got, "  07:08:09  Assistant  "+strings.Repeat("x", 150)+"\n")
	assert.NotContains(t, got, "...")
}

func TestConsole_HistoryShowsEveryMessage(t *testing.T) {
	c, out, _ := newTestConsole()
	var msgs []history.Message
	for i := 0; i < 16; i++ {
		msgs = append(msgs, history.Message{Role: history.RoleUser, Content: fmt.Sprintf("m%02d", i)})
	}
	c.History(msgs)

	got := out.String()
	assert.Contains(t, got, "(16 messages)")
	last := -1
	for _, m := range msgs {
		idx := strings.Index(got, m.Content)
		require.GreaterOrEqual(t, idx, 0, "missing %s", m.Content)
		assert.Greater(t, idx, last, "%s out of order", m.Content)
		last = idx
	}
}

func TestConsole_Usage(t *testing.T) {
	c, out, _ := newTestConsole()
	c.Usage(&provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, 0.0001, true, 1500*time.Millisecond)
	assert.Equal(t, "tokens: 10 prompt / 5 completion / 15 total | ~$0.000100 | 1.5s\n", out.String())

	out.Reset()
	c.Usage(&provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, 0, false, 1500*time.Millisecond)
	assert.Equal(t, "tokens: 10 prompt / 5 completion / 15 total | cost unknown | 1.5s\n", out.String())

	out.Reset()
	c.Usage(nil, 0, false, 20*time.Millisecond)
	assert.Equal(t, "tokens: not reported | 20ms\n", out.String())
}

func TestScannerReader(t *testing.T) {
	var prompts bytes.Buffer
	r := NewScannerReader(strings.NewReader("first\n\nthird"), &prompts)

	for _, want := range []string{"first", "", "third"} {
		got, err := r.ReadLine("> ")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := r.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > > ", prompts.String())
	assert.NoError(t, r.Close())
}

func TestComplete(t *testing.T) {
	words := []string{"chat", "clear", "config", "help", "history"}
	assert.Equal(t, []string{"chat", "clear", "config"}, Complete(words, "c"))
	assert.Equal(t, []string{"config"}, Complete(words, "CON"))
	assert.Nil(t, Complete(words, "x"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500us", FormatDuration(500*time.Microsecond))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2.0s", FormatDuration(2*time.Second))
}
