// Package imaphost exposes an IMAP mailbox as a mail host.
package imaphost

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/model"
)

const (
	hostName = "IMAP"
	inbox    = "INBOX"
)

// session is one authenticated connection with INBOX selected.
type session struct {
	client   *imapclient.Client
	messages uint32
}

func (s *session) close() {
	_ = s.client.Logout().Wait()
}

// Client holds IMAP connection settings. Every operation opens its own
// connection.
type Client struct {
	cfg      model.IMAPConfig
	password string
}

// NewClient creates a client from cfg. password is read from the keyring
// by the caller.
func NewClient(cfg model.IMAPConfig, password string) *Client {
	return &Client{cfg: cfg, password: password}
}

func (c *Client) addr() string {
	return c.cfg.Host + ":" + c.cfg.Port
}

// dial connects and authenticates.
func (c *Client) dial(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		client *imapclient.Client
		err    error
	)
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(c.addr(), nil)
	} else {
		client, err = imapclient.DialStartTLS(c.addr(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", c.addr(), err)
	}

	if err := client.Login(c.cfg.Username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailhost.AuthError{
			Host:    hostName,
			Message: fmt.Sprintf("authentication failed for %s: %v", c.cfg.Username, err),
		}
	}
	return client, nil
}

// openInbox connects and selects INBOX. The caller must close the session.
func (c *Client) openInbox(ctx context.Context) (*session, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	data, err := client.Select(inbox, nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", inbox, err)
	}
	return &session{client: client, messages: data.NumMessages}, nil
}

// fetchCurrent fetches the pinned UID, or the highest sequence number
// when no UID is pinned, with its full body.
func (s *session) fetchCurrent(uid uint32) (*imapclient.FetchMessageBuffer, *imap.FetchItemBodySection, error) {
	var set imap.NumSet
	switch {
	case uid != 0:
		set = imap.UIDSetNum(imap.UID(uid))
	case s.messages == 0:
		return nil, nil, mailhost.ErrNoItem
	default:
		set = imap.SeqSetNum(s.messages)
	}

	section := &imap.FetchItemBodySection{Peek: true}
	cmd := s.client.Fetch(set, &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		if err := cmd.Close(); err != nil {
			return nil, nil, fmt.Errorf("fetching current message: %w", err)
		}
		return nil, nil, mailhost.ErrNoItem
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, nil, fmt.Errorf("collecting message data: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing fetch: %w", err)
	}
	return buf, section, nil
}

// searchEnvelopes returns the envelopes of the newest limit messages whose
// body contains keyword.
func (s *session) searchEnvelopes(keyword string, limit int) ([]*imap.Envelope, error) {
	data, err := s.client.UIDSearch(&imap.SearchCriteria{
		Body: []string{keyword},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	cmd := s.client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	})
	defer cmd.Close()

	var envelopes []*imap.Envelope
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		if buf.Envelope != nil {
			envelopes = append(envelopes, buf.Envelope)
		}
	}
	if err := cmd.Close(); err != nil {
		return envelopes, fmt.Errorf("fetching envelopes: %w", err)
	}

	// Newest first.
	for i, j := 0, len(envelopes)-1; i < j; i, j = i+1, j-1 {
		envelopes[i], envelopes[j] = envelopes[j], envelopes[i]
	}
	return envelopes, nil
}

// appendDraft stores raw in the drafts mailbox flagged as a draft.
func (s *session) appendDraft(mailbox string, raw []byte) error {
	cmd := s.client.Append(mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft},
	})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing draft: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	return nil
}
