package imaphost

import (
	"context"
	"time"

	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/model"
)

// Host adapts an IMAP mailbox. Replies are saved to the drafts mailbox.
type Host struct {
	client *Client
}

var (
	_ mailhost.Host        = (*Host)(nil)
	_ mailhost.Searcher    = (*Host)(nil)
	_ mailhost.ReplyWriter = (*Host)(nil)
)

// NewHost wraps client.
func NewHost(client *Client) *Host {
	return &Host{client: client}
}

func (h *Host) Name() string { return hostName }

func (h *Host) Platform() string {
	return "IMAP " + h.client.cfg.Host
}

// CurrentItem fetches the pinned UID or the newest INBOX message.
func (h *Host) CurrentItem(ctx context.Context) (*model.EmailRecord, error) {
	s, err := h.client.openInbox(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	buf, section, err := s.fetchCurrent(h.client.cfg.UID)
	if err != nil {
		return nil, err
	}

	rec := recordFromEnvelope(buf.UID, buf.Envelope)
	if raw := buf.FindBodySection(section); raw != nil {
		rec.Body = readBody(raw)
	}
	return &rec, nil
}

// Search runs an IMAP BODY search over INBOX.
func (h *Host) Search(ctx context.Context, keyword string, limit int) ([]string, error) {
	s, err := h.client.openInbox(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	envelopes, err := s.searchEnvelopes(keyword, limit)
	if err != nil {
		return nil, err
	}

	results := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		results = append(results, mailhost.SummaryLine(env.Subject, fromLabel(env)))
	}
	return results, nil
}

// InsertReply appends an HTML reply draft to the drafts mailbox.
func (h *Host) InsertReply(ctx context.Context, text string) error {
	s, err := h.client.openInbox(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	buf, _, err := s.fetchCurrent(h.client.cfg.UID)
	if err != nil {
		return err
	}
	orig := recordFromEnvelope(buf.UID, buf.Envelope)

	raw, err := composeReply(h.client.cfg.Username, orig, text, time.Now())
	if err != nil {
		return err
	}
	return s.appendDraft(h.client.cfg.DraftsMailbox, raw)
}
