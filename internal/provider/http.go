package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/tracehttp"
)

// vendorError is the error envelope shared by all three vendors.
type vendorError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// postJSON sends body as JSON and decodes a 2xx response into out. Every
// failure is returned as a *TransportError.
func postJSON(
	ctx context.Context,
	client *http.Client,
	p model.Provider,
	endpoint string,
	headers map[string]string,
	body, out any,
) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Provider: p, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Provider: p, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		// url.Error carries the full request URL.
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = string(tracehttp.Redact([]byte(ue.URL)))
		}
		return &TransportError{Provider: p, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Provider: p, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ve vendorError
		if json.Unmarshal(raw, &ve) == nil && ve.Error.Message != "" {
			return &TransportError{Provider: p, Status: resp.StatusCode, Err: errors.New(ve.Error.Message)}
		}
		return &TransportError{Provider: p, Status: resp.StatusCode, Err: errors.New(string(bytes.TrimSpace(raw)))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Provider: p, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
