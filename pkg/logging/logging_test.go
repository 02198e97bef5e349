package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn, err := New(Options{Dir: dir})
	require.NoError(t, err)

	logger.WithField("provider", "openai").Info("exchange complete")
	logger.Debug("hidden at info level")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "exchange complete", entry["msg"])
	require.Equal(t, "openai", entry["provider"])
}

func TestNew_VerboseMirrorsToStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, closeFn, err := New(Options{Verbose: true, Stderr: &stderr})
	require.NoError(t, err)
	defer closeFn()

	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.Debug("resolving provider")
	require.Contains(t, stderr.String(), "resolving provider")
}
