package mailhost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/bridge"
	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
)

// SearchLimit caps the number of items a keyword search returns.
const SearchLimit = 20

// Host is a primary mail host integration.
type Host interface {
	// Name identifies the host kind for diagnostics (e.g. "Exchange").
	Name() string

	// Platform describes the host instance for diagnostics.
	Platform() string

	// CurrentItem returns the message the user is looking at. Hosts that
	// are reachable but have no message return ErrNoItem.
	CurrentItem(ctx context.Context) (*model.EmailRecord, error)
}

// Searcher is implemented by hosts that can run a server-side keyword
// query over the inbox.
type Searcher interface {
	// Search returns at most limit one-line summaries of inbox messages
	// whose body contains keyword, case-insensitively.
	Search(ctx context.Context, keyword string, limit int) ([]string, error)
}

// ReplyWriter is implemented by hosts that can place drafted text into a
// reply to the current message.
type ReplyWriter interface {
	InsertReply(ctx context.Context, text string) error
}

// ContextProvider retrieves mail context for a turn from the primary host,
// falling back to the bridge channel for the current item.
type ContextProvider struct {
	host   Host
	bridge *bridge.Store
	logger *log.Logger
}

// NewContextProvider creates a provider. host may be nil when no primary
// host is configured; bridgeStore must not be nil.
func NewContextProvider(host Host, bridgeStore *bridge.Store, logger *log.Logger) *ContextProvider {
	if bridgeStore == nil {
		bridgeStore = bridge.NewStore()
	}
	return &ContextProvider{
		host:   host,
		bridge: bridgeStore,
		logger: logging.OrDefault(logger).With("component", "mailhost"),
	}
}

// HostName returns the primary host's name, or "" when none is configured.
func (p *ContextProvider) HostName() string {
	if p.host == nil {
		return ""
	}
	return p.host.Name()
}

func (p *ContextProvider) diagnostics() (string, string) {
	if p.host == nil {
		return "", ""
	}
	return p.host.Name(), p.host.Platform()
}

// CurrentItem returns the open message from the primary host, or the
// latest bridge record if the host is absent or fails. If neither is
// available it returns a NoMailContext error.
func (p *ContextProvider) CurrentItem(ctx context.Context) (*model.EmailRecord, error) {
	var primaryErr error

	if p.host != nil {
		rec, err := p.host.CurrentItem(ctx)
		if err == nil && rec != nil {
			return rec, nil
		}
		primaryErr = err
		if primaryErr == nil {
			primaryErr = ErrNoItem
		}
		p.logger.Debug("primary host has no current item", "host", p.host.Name(), "err", primaryErr)
	}

	if rec, ok := p.bridge.Latest(); ok {
		p.logger.Debug("using bridge record", "subject", rec.Subject,
			"age", time.Since(p.bridge.ReceivedAt()).Round(time.Second))
		return &rec, nil
	}

	name, platform := p.diagnostics()
	return nil, &ContextError{
		Kind:     NoMailContext,
		Host:     name,
		Platform: platform,
		Err:      primaryErr,
	}
}

// Search runs a keyword query against the primary host. The result is
// capped at SearchLimit entries; zero matches yield an empty slice.
func (p *ContextProvider) Search(ctx context.Context, keyword string) ([]string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, &ContextError{Kind: EmptyKeyword}
	}

	name, platform := p.diagnostics()
	searcher, ok := p.host.(Searcher)
	if p.host == nil || !ok {
		return nil, &ContextError{Kind: SearchUnavailable, Host: name, Platform: platform}
	}

	results, err := searcher.Search(ctx, keyword, SearchLimit)
	if err != nil {
		return nil, &ContextError{Kind: SearchFailed, Host: name, Platform: platform, Err: err}
	}

	if results == nil {
		results = []string{}
	}
	if len(results) > SearchLimit {
		results = results[:SearchLimit]
	}
	return results, nil
}

// InsertReply pushes text verbatim into a reply on the primary host.
func (p *ContextProvider) InsertReply(ctx context.Context, text string) error {
	writer, ok := p.host.(ReplyWriter)
	if p.host == nil || !ok {
		name, platform := p.diagnostics()
		return &ContextError{Kind: ReplyUnavailable, Host: name, Platform: platform}
	}

	if err := writer.InsertReply(ctx, text); err != nil {
		return fmt.Errorf("creating reply: %w", err)
	}
	return nil
}

// FormatCurrent renders a single message as turn context.
func FormatCurrent(rec model.EmailRecord) string {
	return fmt.Sprintf(
		"Current Email:\nSubject: %s\nFrom: %s <%s>\nBody: %s\n\n",
		rec.Subject, rec.SenderName, rec.SenderAddress, rec.Body,
	)
}

// FormatSearch renders keyword search results as turn context.
func FormatSearch(keyword string, results []string) string {
	return fmt.Sprintf(
		"Found %d emails matching %q:\n\n%s\n\n",
		len(results), keyword, strings.Join(results, "\n"),
	)
}

// SummaryLine renders one search hit.
func SummaryLine(subject, from string) string {
	line := "Subject: " + subject
	if from != "" {
		line += " | From: " + from
	}
	return line
}
