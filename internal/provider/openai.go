package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/transcript"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *openAIResponse) text() (string, bool) {
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == "" {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}

// openAIClient talks to the Chat Completions API.
type openAIClient struct {
	baseURL string
	model   string
	http    *http.Client
}

func (c *openAIClient) buildRequest(entries []transcript.Entry, mailContext string) openAIRequest {
	msgs := make([]openAIMessage, 0, len(entries)+2)
	msgs = append(msgs, openAIMessage{Role: "system", Content: SystemPrompt})
	for _, e := range entries {
		msgs = append(msgs, openAIMessage{Role: string(e.Role), Content: e.Content})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: finalTurn(mailContext)})

	return openAIRequest{Model: c.model, Messages: msgs}
}

func (c *openAIClient) send(ctx context.Context, key string, entries []transcript.Entry, mailContext string) (string, error) {
	var resp openAIResponse
	err := postJSON(ctx, c.http, model.ProviderOpenAI,
		strings.TrimRight(c.baseURL, "/")+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + key},
		c.buildRequest(entries, mailContext), &resp,
	)
	if err != nil {
		return "", err
	}

	if text, ok := resp.text(); ok {
		return text, nil
	}
	return fallbackText(model.ProviderOpenAI), nil
}
