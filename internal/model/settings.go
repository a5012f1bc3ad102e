package model

import (
	"fmt"
	"strings"
)

// Provider identifies one of the interchangeable AI completion services.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
)

// Providers lists every supported provider in display order.
var Providers = []Provider{ProviderOpenAI, ProviderGemini, ProviderClaude}

// DisplayName returns the label shown in the settings form.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI (GPT-4o)"
	case ProviderGemini:
		return "Google Gemini"
	case ProviderClaude:
		return "Anthropic Claude"
	default:
		return string(p)
	}
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderGemini, ProviderClaude:
		return true
	}
	return false
}

// ParseProvider converts a user-supplied string to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q (want openai, gemini or claude)", s)
	}
	return p, nil
}

// Settings holds the user's provider selection and API keys. It is owned
// by the application shell and passed by value into every send.
type Settings struct {
	SelectedProvider Provider
	Credentials      map[Provider]string
}

// DefaultSettings returns the all-empty settings used before anything
// has been saved.
func DefaultSettings() Settings {
	return Settings{
		SelectedProvider: ProviderOpenAI,
		Credentials: map[Provider]string{
			ProviderOpenAI: "",
			ProviderGemini: "",
			ProviderClaude: "",
		},
	}
}

// Credential returns the API key stored for p, or "" if none.
func (s Settings) Credential(p Provider) string {
	if s.Credentials == nil {
		return ""
	}
	return s.Credentials[p]
}

// WithCredential returns a copy of s with the key for p replaced.
func (s Settings) WithCredential(p Provider, key string) Settings {
	out := Settings{
		SelectedProvider: s.SelectedProvider,
		Credentials:      make(map[Provider]string, len(Providers)),
	}
	for k, v := range s.Credentials {
		out.Credentials[k] = v
	}
	out.Credentials[p] = key
	return out
}

// PersistedSettings is the JSON shape stored under the single settings key.
type PersistedSettings struct {
	OpenAIKey     string `json:"openaiKey"`
	GeminiKey     string `json:"geminiKey"`
	ClaudeKey     string `json:"claudeKey"`
	SelectedModel string `json:"selectedModel"`
}

// ToPersisted converts s to its stored JSON form.
func (s Settings) ToPersisted() PersistedSettings {
	return PersistedSettings{
		OpenAIKey:     s.Credential(ProviderOpenAI),
		GeminiKey:     s.Credential(ProviderGemini),
		ClaudeKey:     s.Credential(ProviderClaude),
		SelectedModel: string(s.SelectedProvider),
	}
}

// FromPersisted converts the stored JSON form back into Settings. An
// unknown or empty model falls back to OpenAI.
func FromPersisted(p PersistedSettings) Settings {
	selected := Provider(p.SelectedModel)
	if !selected.Valid() {
		selected = ProviderOpenAI
	}
	return Settings{
		SelectedProvider: selected,
		Credentials: map[Provider]string{
			ProviderOpenAI: p.OpenAIKey,
			ProviderGemini: p.GeminiKey,
			ProviderClaude: p.ClaudeKey,
		},
	}
}

// MaskKey hides all but the last four characters of an API key.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// Mode selects where the mail context for a turn comes from.
type Mode string

const (
	ModeCurrent Mode = "current"
	ModeSearch  Mode = "search"
)

// ParseMode converts a user-supplied string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCurrent, "":
		return ModeCurrent, nil
	case ModeSearch:
		return ModeSearch, nil
	}
	return "", fmt.Errorf("unknown mode %q (want current or search)", s)
}
