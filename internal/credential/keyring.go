// Package credential stores outreach secrets in the operating system keyring
// and resolves them with environment variables taking precedence.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const serviceName = "outreach"

// Well known keys.
const (
	GeminiAPIKey = "gemini_api_key"
	IMAPPassword = "imap_password"
)

// ErrNotFound is returned when a secret is neither in the environment nor in
// the keyring.
var ErrNotFound = errors.New("credential not found")

// Store is a lazily opened keyring. The keyring is only opened when a
// secret cannot be resolved from the environment.
type Store struct {
	open func() (keyring.Keyring, error)

	once sync.Once
	ring keyring.Keyring
	err  error
}

// New returns a Store backed by the system keyring.
func New() *Store {
	return &Store{open: openKeyring}
}

// NewWithKeyring returns a Store backed by ring.
func NewWithKeyring(ring keyring.Keyring) *Store {
	return &Store{open: func() (keyring.Keyring, error) { return ring, nil }}
}

func openKeyring() (keyring.Keyring, error) {
	dir := "~/.config/outreach/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "outreach", "credentials")
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("outreach-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (s *Store) keyring() (keyring.Keyring, error) {
	s.once.Do(func() {
		s.ring, s.err = s.open()
	})
	return s.ring, s.err
}

// Get retrieves a secret from the keyring.
func (s *Store) Get(key string) (string, error) {
	ring, err := s.keyring()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret in the keyring.
func (s *Store) Set(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("credential %q must not be empty", key)
	}
	ring, err := s.keyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret from the keyring.
func (s *Store) Delete(key string) error {
	ring, err := s.keyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("deleting credential %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored secret names.
func (s *Store) Keys() ([]string, error) {
	ring, err := s.keyring()
	if err != nil {
		return nil, err
	}
	keys, err := ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return keys, nil
}

// Resolve returns the first non-empty value of envVars, falling back to the
// keyring item key.
func (s *Store) Resolve(key string, envVars ...string) (string, error) {
	for _, name := range envVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	v, err := s.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) && len(envVars) > 0 {
			return "", fmt.Errorf("%w: set %s or store %q in the keyring", ErrNotFound, strings.Join(envVars, " or "), key)
		}
		return "", err
	}
	return v, nil
}
