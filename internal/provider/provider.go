// Package provider translates a conversation into one request for the
// selected AI vendor and normalizes the reply to plain text.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/tracehttp"
	"github.com/nhle/mailassist/internal/transcript"
)

// Adapter sends a conversation to an AI provider.
type Adapter interface {
	Send(ctx context.Context, entries []transcript.Entry, mailContext string, settings model.Settings) (string, error)
}

// backend is one vendor's wire protocol.
type backend interface {
	send(ctx context.Context, key string, entries []transcript.Entry, mailContext string) (string, error)
}

// Dispatcher routes each call to the backend named by the settings.
type Dispatcher struct {
	backends map[model.Provider]backend
	timeout  time.Duration
	logger   *log.Logger
}

var _ Adapter = (*Dispatcher)(nil)

// New creates a Dispatcher from cfg. A nil httpClient uses a fresh client
// on the default transport. When cfg.Trace is set, traffic is dumped to
// the debug log with credentials redacted.
func New(cfg model.ProvidersConfig, httpClient *http.Client, logger *log.Logger) *Dispatcher {
	logger = logging.OrDefault(logger).With("component", "provider")

	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Trace {
		traced := *httpClient
		traced.Transport = tracehttp.Wrap(httpClient.Transport, logger)
		httpClient = &traced
	}

	defaults := model.DefaultAppConfig().Providers
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaults.MaxTokens
	}

	return &Dispatcher{
		backends: map[model.Provider]backend{
			model.ProviderOpenAI: &openAIClient{
				baseURL: pick(cfg.OpenAI.BaseURL, defaults.OpenAI.BaseURL),
				model:   pick(cfg.OpenAI.Model, defaults.OpenAI.Model),
				http:    httpClient,
			},
			model.ProviderGemini: &geminiClient{
				baseURL: pick(cfg.Gemini.BaseURL, defaults.Gemini.BaseURL),
				model:   pick(cfg.Gemini.Model, defaults.Gemini.Model),
				http:    httpClient,
			},
			model.ProviderClaude: &claudeClient{
				baseURL:   pick(cfg.Claude.BaseURL, defaults.Claude.BaseURL),
				model:     pick(cfg.Claude.Model, defaults.Claude.Model),
				maxTokens: maxTokens,
				http:      httpClient,
			},
		},
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Send resolves the credential for the selected provider and performs a
// single request. A missing key fails before any network activity. A
// response without content yields the provider's fallback text rather
// than an error.
func (d *Dispatcher) Send(
	ctx context.Context,
	entries []transcript.Entry,
	mailContext string,
	settings model.Settings,
) (string, error) {
	p := settings.SelectedProvider
	b, ok := d.backends[p]
	if !ok {
		return "", &UnknownProviderError{Provider: p}
	}

	key := settings.Credential(p)
	if key == "" {
		return "", &MissingCredentialError{Provider: p}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := b.send(ctx, key, entries, mailContext)
	if err != nil {
		d.logger.Warn("provider call failed", "provider", p, "elapsed", time.Since(start), "err", err)
		return "", err
	}
	d.logger.Debug("provider call finished", "provider", p, "elapsed", time.Since(start), "chars", len(text))
	return text, nil
}
