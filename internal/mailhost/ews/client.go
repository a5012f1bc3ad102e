package ews

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/model"
)

const (
	AuthBasic  = "basic"
	AuthOAuth2 = "oauth2"

	hostName = "Exchange"
)

// basicAuthTransport adds HTTP basic credentials to every request.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

// Client posts SOAP envelopes to an EWS endpoint.
type Client struct {
	url         string
	impersonate string
	httpClient  *http.Client
	logger      *log.Logger

	mu      sync.Mutex
	version string
}

// NewClient creates a client that sends requests through httpClient,
// which is expected to carry authentication.
func NewClient(url, impersonate string, httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:         url,
		impersonate: impersonate,
		httpClient:  httpClient,
		logger:      logging.OrDefault(logger).With("component", "ews"),
	}
}

// NewClientFromConfig builds an authenticated client from cfg. secret is
// the basic-auth password or the OAuth2 client secret. base, when non-nil,
// is the transport used for both EWS and token requests.
func NewClientFromConfig(
	ctx context.Context,
	cfg model.EWSConfig,
	secret string,
	base http.RoundTripper,
	logger *log.Logger,
) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ews: url is required")
	}
	if base == nil {
		base = http.DefaultTransport
	}

	var httpClient *http.Client
	switch cfg.Auth {
	case "", AuthBasic:
		httpClient = &http.Client{Transport: &basicAuthTransport{
			username: cfg.Username,
			password: secret,
			base:     base,
		}}
	case AuthOAuth2:
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: secret,
			TokenURL:     cfg.TenantTokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
		httpClient = cc.Client(ctx)
	default:
		return nil, fmt.Errorf("ews: unknown auth %q", cfg.Auth)
	}

	return NewClient(cfg.URL, cfg.Impersonate, httpClient, logger), nil
}

// ServerVersion returns the version reported by the last response, if any.
func (c *Client) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// call renders op, posts it and decodes the response envelope.
func (c *Client) call(ctx context.Context, op string, data requestData) (*envelope, error) {
	data.Impersonate = c.impersonate
	body, err := render(op, data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml")
	if c.impersonate != "" {
		req.Header.Set("X-AnchorMailbox", c.impersonate)
	}

	c.logger.Debug("ews request", "op", op)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &mailhost.AuthError{
			Host:    hostName,
			Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, c.url),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", op, err)
	}

	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
		}
		return nil, fmt.Errorf("decoding %s response: %w", op, err)
	}

	if v := env.Header.ServerVersionInfo; v != nil {
		c.mu.Lock()
		c.version = v.MajorVersion + "." + v.MinorVersion
		c.mu.Unlock()
	}

	return &env, nil
}
