package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/transcript"
)

const claudeAPIVersion = "2023-06-01"

type claudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []claudeBlock `json:"content"`
}

func (r *claudeResponse) text() (string, bool) {
	for _, b := range r.Content {
		if b.Type == "text" && b.Text != "" {
			return b.Text, true
		}
	}
	return "", false
}

// claudeClient talks to the Messages API.
type claudeClient struct {
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
}

// claudeRole maps transcript roles onto the two roles the API accepts.
func claudeRole(r transcript.Role) string {
	if r == transcript.RoleUser {
		return "user"
	}
	return "assistant"
}

// buildRequest maps the transcript onto alternating turns. Consecutive
// entries with the same role share one message as separate text blocks.
func (c *claudeClient) buildRequest(entries []transcript.Entry, mailContext string) claudeRequest {
	var msgs []claudeMessage
	add := func(role, text string) {
		block := claudeBlock{Type: "text", Text: text}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			return
		}
		msgs = append(msgs, claudeMessage{Role: role, Content: []claudeBlock{block}})
	}

	for _, e := range entries {
		add(claudeRole(e.Role), e.Content)
	}
	add("user", finalTurn(mailContext))

	return claudeRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    SystemPrompt,
		Messages:  msgs,
	}
}

func (c *claudeClient) send(ctx context.Context, key string, entries []transcript.Entry, mailContext string) (string, error) {
	var resp claudeResponse
	err := postJSON(ctx, c.http, model.ProviderClaude,
		strings.TrimRight(c.baseURL, "/")+"/v1/messages",
		map[string]string{
			"x-api-key":         key,
			"anthropic-version": claudeAPIVersion,
		},
		c.buildRequest(entries, mailContext), &resp,
	)
	if err != nil {
		return "", err
	}

	if text, ok := resp.text(); ok {
		return text, nil
	}
	return fallbackText(model.ProviderClaude), nil
}
