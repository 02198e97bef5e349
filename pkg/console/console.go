// Package console writes chatapi's terminal output and reads interactive
// input lines.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const defaultWrap = 80

// Option configures a Console.
type Option func(*Console)

// WithColor enables or disables ANSI colors.
func WithColor(enabled bool) Option {
	return func(c *Console) { c.color = enabled }
}

// WithMarkdown enables or disables markdown rendering of replies.
func WithMarkdown(enabled bool) Option {
	return func(c *Console) { c.markdown = enabled }
}

// WithWidth sets the wrap width used for rendered markdown.
func WithWidth(cols int) Option {
	return func(c *Console) { c.width = cols }
}

// Console writes user-facing output. Status lines go to Out, errors and
// warnings to Err.
type Console struct {
	Out io.Writer
	Err io.Writer

	color    bool
	markdown bool
	width    int
	renderer *glamour.TermRenderer

	info, success, warn, fail, dim, accent, user *color.Color
}

// New returns a Console writing to out and errOut. Colors and markdown are
// off unless enabled with options.
func New(out, errOut io.Writer, opts ...Option) *Console {
	c := &Console{Out: out, Err: errOut, width: defaultWrap}
	for _, opt := range opts {
		opt(c)
	}

	c.info = color.New(color.FgCyan)
	c.success = color.New(color.FgGreen)
	c.warn = color.New(color.FgYellow)
	c.fail = color.New(color.FgRed)
	c.dim = color.New(color.FgHiBlack)
	c.accent = color.New(color.FgMagenta, color.Bold)
	c.user = color.New(color.FgBlue, color.Bold)
	for _, col := range []*color.Color{c.info, c.success, c.warn, c.fail, c.dim, c.accent, c.user} {
		if c.color {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}

	if c.markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(c.width),
		)
		if err == nil {
			c.renderer = r
		}
	}
	return c
}

// Stdio returns a Console on os.Stdout and os.Stderr with colors and
// markdown enabled when stdout is a terminal.
func Stdio() *Console {
	tty := IsTerminal(os.Stdout)
	width := defaultWrap
	if tty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
			width = min(w-4, 120)
		}
	}
	return New(os.Stdout, os.Stderr,
		WithColor(tty && os.Getenv("NO_COLOR") == ""),
		WithMarkdown(tty),
		WithWidth(width),
	)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Info prints an informational line.
func (c *Console) Info(format string, args ...any) {
	c.info.Fprintf(c.Out, format+"\n", args...)
}

// Success prints a confirmation line.
func (c *Console) Success(format string, args ...any) {
	c.success.Fprintf(c.Out, format+"\n", args...)
}

// Warn prints a warning to Err.
func (c *Console) Warn(format string, args ...any) {
	c.warn.Fprintf(c.Err, "Warning: "+format+"\n", args...)
}

// Error prints err to Err.
func (c *Console) Error(err error) {
	c.fail.Fprintf(c.Err, "Error: %v\n", err)
}

// Println writes an uncolored line to Out.
func (c *Console) Println(s string) {
	fmt.Fprintln(c.Out, s)
}

// Dim prints a de-emphasized line.
func (c *Console) Dim(format string, args ...any) {
	c.dim.Fprintf(c.Out, format+"\n", args...)
}

// Prompt returns the interactive prompt string.
func (c *Console) Prompt() string {
	return c.user.Sprint("You: ")
}

// Reply prints an assistant reply, rendering markdown when enabled.
func (c *Console) Reply(label, content string) {
	c.accent.Fprintf(c.Out, "%s:\n", label)
	if c.renderer != nil {
		if out, err := c.renderer.Render(content); err == nil {
			fmt.Fprint(c.Out, out)
			return
		}
	}
	fmt.Fprintln(c.Out, strings.TrimRight(content, "\n"))
}
