package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/mailassist/internal/model"
)

const serviceName = "mailassist"

// OpenKeyring returns the system keyring, falling back to an encrypted
// file under the config directory.
func OpenKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(model.ConfigDir(), "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("mailassist-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringRepository stores settings as one keyring item.
type KeyringRepository struct {
	ring keyring.Keyring
}

var _ Repository = (*KeyringRepository)(nil)

// NewKeyringRepository wraps ring.
func NewKeyringRepository(ring keyring.Keyring) *KeyringRepository {
	return &KeyringRepository{ring: ring}
}

func (r *KeyringRepository) Close() error { return nil }

// Load returns the saved settings, or defaults if none were saved.
func (r *KeyringRepository) Load(_ context.Context) (model.Settings, error) {
	item, err := r.ring.Get(StorageKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("getting credential %q: %w", StorageKey, err)
	}
	return decode(item.Data)
}

// Save replaces the stored settings.
func (r *KeyringRepository) Save(_ context.Context, s model.Settings) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	err = r.ring.Set(keyring.Item{
		Key:   StorageKey,
		Data:  data,
		Label: "Mail assistant settings",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", StorageKey, err)
	}
	return nil
}

// Clear removes the stored settings.
func (r *KeyringRepository) Clear(_ context.Context) error {
	err := r.ring.Remove(StorageKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting credential %q: %w", StorageKey, err)
	}
	return nil
}

// Secret names for mail host credentials.
const (
	SecretEWS  = "mail.ews.secret"
	SecretIMAP = "mail.imap.password"
)

var secretEnv = map[string]string{
	SecretEWS:  "MAILASSIST_EWS_SECRET",
	SecretIMAP: "MAILASSIST_IMAP_PASSWORD",
}

// Secrets reads and writes mail host credentials in the keyring. The
// matching environment variable, when set, takes precedence on read.
type Secrets struct {
	ring   keyring.Keyring
	getenv func(string) string
}

// NewSecrets wraps ring. getenv may be nil to use os.Getenv.
func NewSecrets(ring keyring.Keyring, getenv func(string) string) *Secrets {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Secrets{ring: ring, getenv: getenv}
}

// Get returns the secret stored under name, or "" if it is not set.
func (s *Secrets) Get(name string) (string, error) {
	if v := s.getenv(secretEnv[name]); v != "" {
		return v, nil
	}
	if s.ring == nil {
		return "", nil
	}

	item, err := s.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", name, err)
	}
	return string(item.Data), nil
}

// Set stores a secret in the keyring.
func (s *Secrets) Set(name, value string) error {
	if s.ring == nil {
		return fmt.Errorf("setting credential %q: no keyring available", name)
	}
	if err := s.ring.Set(keyring.Item{Key: name, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", name, err)
	}
	return nil
}
