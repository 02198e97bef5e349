package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jdgilhuly/chatapi/pkg/atomicfile"
)

// encryptedPrefix marks a persisted secret as ciphertext.
const encryptedPrefix = "encrypted:"

// sealer encrypts credentials at rest with a per-user key file.
type sealer struct {
	keyPath string
	key     []byte
}

func newSealer(keyPath string) *sealer {
	return &sealer{keyPath: keyPath}
}

// Seal encrypts plaintext. Only the empty value passes through; a plaintext
// that happens to start with the encrypted prefix is sealed like any other.
func (s *sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	key, err := s.loadKey(true)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a persisted value. Values without the encrypted prefix are
// returned unchanged so a hand-edited plaintext key keeps working.
func (s *sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("decoding secret: %w", err)
	}
	key, err := s.loadKey(false)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("decoding secret: ciphertext too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	return string(plain), nil
}

func (s *sealer) loadKey(create bool) ([]byte, error) {
	if s.key != nil {
		return s.key, nil
	}
	data, err := os.ReadFile(s.keyPath)
	switch {
	case err == nil:
		key, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("encryption key %s is corrupt", s.keyPath)
		}
		s.key = key
		return key, nil
	case errors.Is(err, os.ErrNotExist) && create:
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating encryption key: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(key) + "\n"
		if err := atomicfile.WriteFile(s.keyPath, []byte(encoded), 0o600); err != nil {
			return nil, fmt.Errorf("writing encryption key: %w", err)
		}
		s.key = key
		return key, nil
	default:
		return nil, fmt.Errorf("reading encryption key %s: %w", s.keyPath, err)
	}
}
