package console

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/jdgilhuly/chatapi/pkg/atomicfile"
)

// ErrInterrupted is returned by ReadLine when the user presses Ctrl-C at
// the prompt.
var ErrInterrupted = errors.New("interrupted")

// LineReader reads interactive input one line at a time. ReadLine returns
// io.EOF at end of input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// ScannerReader reads lines from any io.Reader, echoing the prompt to Out.
type ScannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScannerReader returns a reader over in. Prompts are written to out,
// which may be nil.
func NewScannerReader(in io.Reader, out io.Writer) *ScannerReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerReader{scanner: s, out: out}
}

// ReadLine returns the next line without its terminator.
func (r *ScannerReader) ReadLine(prompt string) (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// Close is a no-op.
func (r *ScannerReader) Close() error { return nil }

// LinerReader is a LineReader with line editing, tab completion and a
// persisted input history.
type LinerReader struct {
	line        *liner.State
	historyFile string
}

// NewLinerReader starts line editing on the terminal. Input history is
// loaded from historyFile when it exists; completions are offered for words
// that start with the typed prefix.
func NewLinerReader(historyFile string, completions []string) *LinerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		return Complete(completions, input)
	})

	r := &LinerReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadLine reads a line with the given prompt.
func (r *LinerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	switch {
	case errors.Is(err, liner.ErrPromptAborted):
		return "", ErrInterrupted
	case err != nil:
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the input history and restores the terminal.
func (r *LinerReader) Close() error {
	var buf bytes.Buffer
	_, werr := r.line.WriteHistory(&buf)
	if werr == nil && r.historyFile != "" {
		werr = atomicfile.WriteFile(r.historyFile, buf.Bytes(), 0o600)
	}
	if err := r.line.Close(); err != nil {
		return err
	}
	return werr
}

// Complete returns the candidates that extend input, case-insensitively.
func Complete(candidates []string, input string) []string {
	lower := strings.ToLower(input)
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lower) {
			out = append(out, c)
		}
	}
	return out
}
