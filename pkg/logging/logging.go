// Package logging configures the process logger. Log lines are JSON and go
// to a file in the state directory so they never interleave with the
// conversation on the terminal.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileName is the log file name inside the state directory.
const FileName = "chatapi.log"

// Options controls logger construction.
type Options struct {
	// Dir is the state directory. Empty disables the file sink.
	Dir string
	// Verbose raises the level to debug and mirrors output to Stderr.
	Verbose bool
	// Stderr receives mirrored output when Verbose is set. Defaults to os.Stderr.
	Stderr io.Writer
}

// New returns a configured logger and a close function for its file sink.
func New(opts Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var sinks []io.Writer
	closeFn := func() error { return nil }

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %s: %w", opts.Dir, err)
		}
		path := filepath.Join(opts.Dir, FileName)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
		}
		sinks = append(sinks, f)
		closeFn = f.Close
	}

	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
		sinks = append(sinks, stderr)
	}

	switch len(sinks) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(sinks[0])
	default:
		logger.SetOutput(io.MultiWriter(sinks...))
	}

	return logger, closeFn, nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
