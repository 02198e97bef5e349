package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/jdgilhuly/chatapi/pkg/history"
	"github.com/jdgilhuly/chatapi/pkg/provider"
)

// Row is one key/value line of a settings table.
type Row struct {
	Key   string
	Value string
}

// FormatDuration formats a duration for status lines.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Table writes a titled two-column table.
func (c *Console) Table(title string, rows []Row) {
	keyWidth := 0
	for _, r := range rows {
		keyWidth = max(keyWidth, len(r.Key))
	}
	sep := strings.Repeat("-", max(keyWidth+40, len(title)+4))

	c.accent.Fprintf(c.Out, "%s\n", title)
	fmt.Fprintf(c.Out, "%s\n", sep)
	for _, r := range rows {
		fmt.Fprintf(c.Out, "  %-*s  %s\n", keyWidth, r.Key, r.Value)
	}
	fmt.Fprintf(c.Out, "%s\n", sep)
}

// historyIndent aligns continuation lines under the message text.
var historyIndent = strings.Repeat(" ", len("  15:04:05  ")+10+1)

// History writes every message of the conversation log in order, oldest
// first. Multi-line contents keep their lines, indented under the first.
func (c *Console) History(msgs []history.Message) {
	if len(msgs) == 0 {
		c.Info("No conversation history.")
		return
	}

	c.accent.Fprintf(c.Out, "Conversation history (%d messages)\n", len(msgs))
	sep := strings.Repeat("-", 78)
	fmt.Fprintf(c.Out, "%s\n", sep)
	for _, m := range msgs {
		stamp := "--:--:--"
		if !m.Timestamp.IsZero() {
			stamp = m.Timestamp.Local().Format("15:04:05")
		}
		label := c.roleColor(m.Role).Sprintf("%-10s", roleLabel(m.Role))
		c.dim.Fprintf(c.Out, "  %s  ", stamp)

		lines := strings.Split(m.Content, "\n")
		fmt.Fprintf(c.Out, "%s %s\n", label, lines[0])
		for _, l := range lines[1:] {
			if l == "" {
				fmt.Fprintln(c.Out)
				continue
			}
			fmt.Fprintf(c.Out, "%s%s\n", historyIndent, l)
		}
	}
	fmt.Fprintf(c.Out, "%s\n", sep)
}

// Usage writes the token counts and estimated cost of a reply. priced is
// false when the model has no known price.
func (c *Console) Usage(u *provider.Usage, cost float64, priced bool, elapsed time.Duration) {
	if u == nil {
		c.Dim("tokens: not reported | %s", FormatDuration(elapsed))
		return
	}
	line := fmt.Sprintf("tokens: %d prompt / %d completion / %d total", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	if priced {
		line += fmt.Sprintf(" | ~$%.6f", cost)
	} else {
		line += " | cost unknown"
	}
	c.Dim("%s | %s", line, FormatDuration(elapsed))
}

func (c *Console) roleColor(role string) *color.Color {
	switch role {
	case history.RoleUser:
		return c.user
	case history.RoleAssistant:
		return c.accent
	default:
		return c.dim
	}
}

func roleLabel(role string) string {
	switch role {
	case history.RoleUser:
		return "You"
	case history.RoleAssistant:
		return "Assistant"
	case "":
		return "Unknown"
	default:
		return strings.ToUpper(role[:1]) + role[1:]
	}
}
