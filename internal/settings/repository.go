// Package settings persists the user's provider selection and API keys.
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/mailassist/internal/model"
)

// StorageKey is the single key under which settings are stored.
const StorageKey = "assistant-settings"

// Repository loads and saves Settings as a whole. Load returns defaults
// when nothing has been saved.
type Repository interface {
	Load(ctx context.Context) (model.Settings, error)
	Save(ctx context.Context, s model.Settings) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the repository selected by cfg.Backend.
func Open(cfg model.SettingsConfig) (Repository, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteRepository(cfg.DBPath)
	case "keyring":
		ring, err := OpenKeyring()
		if err != nil {
			return nil, err
		}
		return NewKeyringRepository(ring), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

func encode(s model.Settings) ([]byte, error) {
	data, err := json.Marshal(s.ToPersisted())
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return data, nil
}

func decode(data []byte) (model.Settings, error) {
	var p model.PersistedSettings
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return model.FromPersisted(p), nil
}

// envKeys names the environment variables that can supply an API key.
var envKeys = map[model.Provider]string{
	model.ProviderOpenAI: "OPENAI_API_KEY",
	model.ProviderGemini: "GEMINI_API_KEY",
	model.ProviderClaude: "ANTHROPIC_API_KEY",
}

// ApplyEnv fills empty credentials from the environment. Stored keys
// always win. The result is never persisted by this package.
func ApplyEnv(s model.Settings, getenv func(string) string) model.Settings {
	for _, p := range model.Providers {
		if s.Credential(p) != "" {
			continue
		}
		if v := getenv(envKeys[p]); v != "" {
			s = s.WithCredential(p, v)
		}
	}
	return s
}
