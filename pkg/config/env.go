package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables consulted by chatapi.
const (
	EnvHome          = "CHATAPI_HOME"
	EnvProvider      = "CHATAPI_PROVIDER"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvPerplexityKey = "PERPLEXITY_API_KEY"
)

// DirName is the per-user state directory name under the home directory.
const DirName = ".chatapi-cli"

// Paths locates every file chatapi keeps in its state directory.
type Paths struct {
	Dir          string
	Config       string
	History      string
	Key          string
	InputHistory string
}

// PathsIn returns the state file layout rooted at dir.
func PathsIn(dir string) Paths {
	return Paths{
		Dir:          dir,
		Config:       filepath.Join(dir, "config.yaml"),
		History:      filepath.Join(dir, "history.json"),
		Key:          filepath.Join(dir, ".encryption_key"),
		InputHistory: filepath.Join(dir, "input_history"),
	}
}

// DefaultDir returns $CHATAPI_HOME, or ~/.chatapi-cli when unset.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// EnsureDir creates the state directory with owner-only permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files (default ".env")
// into the process environment. Variables that are already set win, and
// missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// EnvVarFor returns the environment variable holding a provider's API key.
func EnvVarFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return EnvOpenAIKey
	case ProviderPerplexity:
		return EnvPerplexityKey
	default:
		return ""
	}
}
