package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/mailassist/internal/model"
)

// MissingCredentialError is returned before any network call when the
// selected provider has no API key.
type MissingCredentialError struct {
	Provider model.Provider
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("Please provide an API Key for %s in Settings.", strings.ToUpper(string(e.Provider)))
}

// UnknownProviderError is returned when the settings name a provider that
// has no adapter.
type UnknownProviderError struct {
	Provider model.Provider
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("Invalid model selected: %q", string(e.Provider))
}

// TransportError covers network failures, non-2xx statuses and bodies
// that are not valid JSON. Status is zero when no response was received.
type TransportError struct {
	Provider model.Provider
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	name := vendorName(e.Provider)
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (HTTP %d): %v", name, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", name, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsMissingCredential reports whether err is a MissingCredentialError.
func IsMissingCredential(err error) bool {
	var mc *MissingCredentialError
	return errors.As(err, &mc)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// vendorName is the short name used in fallback and error text.
func vendorName(p model.Provider) string {
	switch p {
	case model.ProviderOpenAI:
		return "OpenAI"
	case model.ProviderGemini:
		return "Gemini"
	case model.ProviderClaude:
		return "Claude"
	default:
		return string(p)
	}
}

// fallbackText is returned in place of an answer when a response carries
// no content at the expected path.
func fallbackText(p model.Provider) string {
	return fmt.Sprintf("Error: No response from %s.", vendorName(p))
}
