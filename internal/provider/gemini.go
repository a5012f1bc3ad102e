package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/transcript"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *geminiResponse) text() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", false
	}
	return parts[0].Text, true
}

// geminiClient talks to the generateContent API, which takes the whole
// conversation as one prompt string.
type geminiClient struct {
	baseURL string
	model   string
	http    *http.Client
}

func (c *geminiClient) buildRequest(entries []transcript.Entry, mailContext string) geminiRequest {
	prompt := SystemPrompt + "\n\n"
	if len(entries) > 0 {
		prompt += flatten(entries) + "\n\n"
	}
	prompt += finalTurn(mailContext)

	return geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
}

func (c *geminiClient) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.model))
}

func (c *geminiClient) send(ctx context.Context, key string, entries []transcript.Entry, mailContext string) (string, error) {
	var resp geminiResponse
	err := postJSON(ctx, c.http, model.ProviderGemini, c.endpoint(),
		map[string]string{"x-goog-api-key": key},
		c.buildRequest(entries, mailContext), &resp)
	if err != nil {
		return "", err
	}

	if text, ok := resp.text(); ok {
		return text, nil
	}
	return fallbackText(model.ProviderGemini), nil
}
