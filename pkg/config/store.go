package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jdgilhuly/chatapi/pkg/atomicfile"
)

const fileHeader = "# chatapi configuration\n# Edit with 'chatapi config set <key> <value>' or by hand.\n\n"

// Option configures a Store.
type Option func(*Store)

// WithGetenv replaces os.Getenv as the environment source.
func WithGetenv(fn func(string) string) Option {
	return func(s *Store) { s.getenv = fn }
}

// WithKeyFile overrides the location of the secret encryption key.
func WithKeyFile(path string) Option {
	return func(s *Store) { s.sealer = newSealer(path) }
}

// Store resolves the effective Config from defaults, the persisted file and
// the environment, and persists every change made through Set.
type Store struct {
	path     string
	getenv   func(string) string
	sealer   *sealer
	stored   Config
	current  Config
	warnings []error
}

// Open loads the config file at path. A missing file yields the defaults,
// which are written out. A malformed file yields the defaults and a warning
// (see Warnings) and is left untouched until the next Set.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		getenv: os.Getenv,
		sealer: newSealer(filepath.Join(filepath.Dir(path), ".encryption_key")),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.stored = Default(s.getenv(EnvProvider))
		if err := s.save(s.stored); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		s.stored = s.decode(data)
	}

	s.resolve()
	return s, nil
}

// Path returns the config file location.
func (s *Store) Path() string { return s.path }

// Warnings returns the non-fatal problems found while loading.
func (s *Store) Warnings() []error {
	out := make([]error, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Snapshot returns a copy of the effective config.
func (s *Store) Snapshot() Config { return s.current }

// Get returns the effective value of key.
func (s *Store) Get(key string) (string, error) {
	f, ok := lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return f.get(&s.current), nil
}

// Set validates value for key and persists the full config before updating
// the in-memory copy. On any error the store is unchanged.
func (s *Store) Set(key, value string) error {
	f, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}

	next := s.stored
	if err := f.set(&next, value); err != nil {
		return err
	}
	if err := s.save(next); err != nil {
		return err
	}

	s.stored = next
	s.resolve()
	return nil
}

// resolve applies environment credentials to empty persisted slots.
func (s *Store) resolve() {
	cur := s.stored
	if cur.OpenAIAPIKey == "" {
		cur.OpenAIAPIKey = strings.TrimSpace(s.getenv(EnvOpenAIKey))
	}
	if cur.PerplexityAPIKey == "" {
		cur.PerplexityAPIKey = strings.TrimSpace(s.getenv(EnvPerplexityKey))
	}
	s.current = cur
}

func (s *Store) decode(data []byte) Config {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.warn(fmt.Errorf("%w %s: %v; using defaults", ErrMalformedFile, s.path, err))
		return Default(s.getenv(EnvProvider))
	}

	provider := s.getenv(EnvProvider)
	if n, ok := doc["provider"]; ok && n.Kind == yaml.ScalarNode {
		provider = n.Value
	}
	cfg := Default(provider)

	for _, f := range schema {
		node, ok := doc[f.key]
		if !ok || node.Tag == "!!null" {
			continue
		}
		if node.Kind != yaml.ScalarNode {
			s.warn(fmt.Errorf("%w: %s is not a scalar; using default", ErrInvalidValue, f.key))
			continue
		}
		value := node.Value
		if f.secret {
			opened, err := s.sealer.Open(value)
			if err != nil {
				s.warn(fmt.Errorf("%s: %v; treating as unset", f.key, err))
				opened = ""
			}
			value = opened
		}
		if err := f.set(&cfg, value); err != nil {
			s.warn(fmt.Errorf("%w; using default", err))
		}
	}

	var unknown []string
	for k := range doc {
		if _, ok := lookup(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		s.warn(fmt.Errorf("%w: %q in %s ignored", ErrUnknownKey, k, s.path))
	}

	return cfg
}

// save writes cfg with its secrets sealed. A config that would not load
// back is refused.
func (s *Store) save(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if cfg.OpenAIAPIKey, err = s.sealer.Seal(cfg.OpenAIAPIKey); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if cfg.PerplexityAPIKey, err = s.sealer.Seal(cfg.PerplexityAPIKey); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: marshaling config: %v", ErrPersist, err)
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.Write(body)

	if err := atomicfile.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *Store) warn(err error) {
	s.warnings = append(s.warnings, err)
}
