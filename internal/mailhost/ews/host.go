package ews

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/model"
)

// Host exposes an Exchange mailbox as a mail host. It supports keyword
// search and saving drafted replies.
type Host struct {
	client *Client
	itemID string
}

var (
	_ mailhost.Host        = (*Host)(nil)
	_ mailhost.Searcher    = (*Host)(nil)
	_ mailhost.ReplyWriter = (*Host)(nil)
)

// NewHost wraps client. itemID pins the current message; when empty the
// newest inbox item is used.
func NewHost(client *Client, itemID string) *Host {
	return &Host{client: client, itemID: itemID}
}

func (h *Host) Name() string { return hostName }

func (h *Host) Platform() string {
	if v := h.client.ServerVersion(); v != "" {
		return "EWS " + v
	}
	return "EWS"
}

// currentRef resolves the id and change key of the current message.
func (h *Host) currentRef(ctx context.Context) (string, string, error) {
	if h.itemID != "" {
		return h.itemID, "", nil
	}

	env, err := h.client.call(ctx, "findNewest", requestData{})
	if err != nil {
		return "", "", err
	}
	msg, err := env.first(env.Body.FindItemResponse)
	if err != nil {
		return "", "", err
	}
	items := msg.items()
	if len(items) == 0 {
		return "", "", mailhost.ErrNoItem
	}
	return items[0].ItemID.ID, items[0].ItemID.ChangeKey, nil
}

func (h *Host) getItem(ctx context.Context, id string) (*item, error) {
	env, err := h.client.call(ctx, "getItem", requestData{ItemID: id})
	if err != nil {
		return nil, err
	}
	msg, err := env.first(env.Body.GetItemResponse)
	if err != nil {
		return nil, err
	}
	items := msg.items()
	if len(items) == 0 {
		return nil, mailhost.ErrNoItem
	}
	return &items[0], nil
}

// CurrentItem fetches the pinned or newest inbox message.
func (h *Host) CurrentItem(ctx context.Context) (*model.EmailRecord, error) {
	id, _, err := h.currentRef(ctx)
	if err != nil {
		return nil, err
	}
	it, err := h.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.EmailRecord{
		ID:            it.ItemID.ID,
		Subject:       it.Subject,
		SenderName:    it.From.Name,
		SenderAddress: it.From.EmailAddress,
		Body:          strings.TrimSpace(it.Body.Text),
		MessageID:     it.InternetMessageID,
	}, nil
}

// Search runs a case-insensitive substring query on inbox bodies.
func (h *Host) Search(ctx context.Context, keyword string, limit int) ([]string, error) {
	env, err := h.client.call(ctx, "findByKeyword", requestData{Keyword: keyword, Limit: limit})
	if err != nil {
		return nil, err
	}
	msg, err := env.first(env.Body.FindItemResponse)
	if err != nil {
		return nil, err
	}

	items := msg.items()
	results := make([]string, 0, len(items))
	for _, it := range items {
		results = append(results, mailhost.SummaryLine(it.Subject, it.From.Name))
	}
	return results, nil
}

// InsertReply saves text as a reply draft to the current message.
func (h *Host) InsertReply(ctx context.Context, text string) error {
	id, changeKey, err := h.currentRef(ctx)
	if err != nil {
		return err
	}

	env, err := h.client.call(ctx, "replyDraft", requestData{
		ItemID:    id,
		ChangeKey: changeKey,
		Body:      replyHTML(text),
	})
	if err != nil {
		return err
	}
	if _, err := env.first(env.Body.CreateItemResponse); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// replyHTML converts plain text into a minimal HTML body, one line per
// paragraph break.
func replyHTML(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return "<div>" + strings.Join(lines, "<br>") + "</div>"
}
