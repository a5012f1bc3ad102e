// Package chat drives a single conversation: it gathers mail context,
// calls the selected provider and records every outcome in the transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/provider"
	"github.com/nhle/mailassist/internal/transcript"
)

const (
	WelcomeGreeting = "Hello! I'm your AI Outlook Assistant (v1.1.0 - Hybrid Mode). \n\n" +
		"I can help you summarize emails, draft replies, or find information. \n\n" +
		"Please configure your API keys in Settings first."

	ClearedGreeting = "Chat cleared. How can I help you?"

	// ErrorPrefix marks system entries that describe a failed turn.
	ErrorPrefix = "Error: "
)

var (
	// ErrEmptyInput is returned when Send is called with blank text.
	ErrEmptyInput = errors.New("message is empty")

	// ErrBusy is returned when Send is called while a turn is in flight.
	ErrBusy = errors.New("a message is already being processed")
)

// State is the turn state of a session.
type State int

const (
	Idle State = iota
	AwaitingContext
	AwaitingProviderResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingContext:
		return "awaiting-context"
	case AwaitingProviderResponse:
		return "awaiting-provider"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ContextSource supplies mail context for a turn and accepts drafted
// replies. *mailhost.ContextProvider implements it.
type ContextSource interface {
	CurrentItem(ctx context.Context) (*model.EmailRecord, error)
	Search(ctx context.Context, keyword string) ([]string, error)
	InsertReply(ctx context.Context, text string) error
}

var _ ContextSource = (*mailhost.ContextProvider)(nil)

// Result describes how a completed turn ended.
type Result struct {
	// Entry is the assistant or system entry produced by the turn.
	Entry transcript.Entry

	// ContextErr is a non-fatal context failure in current-item mode.
	ContextErr error

	// Err is the error that ended the turn, if any. It is also recorded
	// in the transcript as a system entry.
	Err error

	// Stale is set when the transcript was cleared while the turn was in
	// flight; Entry was not appended.
	Stale bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMode sets the initial context mode and keyword.
func WithMode(mode model.Mode, keyword string) Option {
	return func(s *Session) {
		s.mode = mode
		s.keyword = keyword
	}
}

// Session owns the transcript and the context mode of one conversation.
// At most one turn runs at a time.
type Session struct {
	source  ContextSource
	adapter provider.Adapter
	logger  *log.Logger

	mu         sync.Mutex
	transcript *transcript.Transcript
	state      State
	mode       model.Mode
	keyword    string
	generation uint64
}

// New creates a session seeded with the welcome greeting.
func New(source ContextSource, adapter provider.Adapter, opts ...Option) *Session {
	s := &Session{
		source:     source,
		adapter:    adapter,
		transcript: transcript.New(transcript.NewEntry(transcript.RoleAssistant, WelcomeGreeting)),
		mode:       model.ModeCurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "chat")
	return s
}

// SetMode switches the context mode. The keyword is only used in search
// mode.
func (s *Session) SetMode(mode model.Mode, keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	s.keyword = keyword
}

// Mode returns the current context mode and keyword.
func (s *Session) Mode() (model.Mode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mode, s.keyword
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	return s.State() != Idle
}

// Entries returns a copy of the transcript.
func (s *Session) Entries() []transcript.Entry {
	return s.transcript.Entries()
}

// Len returns the number of transcript entries.
func (s *Session) Len() int {
	return s.transcript.Len()
}

// LastReply returns the most recent assistant entry.
func (s *Session) LastReply() (transcript.Entry, bool) {
	return s.transcript.LastOfRole(transcript.RoleAssistant)
}

// Send runs one turn. The user entry is appended before any I/O. Blank
// input and calls made while busy return ErrEmptyInput and ErrBusy and
// leave the transcript untouched. Every other outcome, including
// failures, is recorded in the transcript and described by the Result.
func (s *Session) Send(ctx context.Context, text string, settings model.Settings) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	s.transcript.Add(transcript.RoleUser, text)
	s.state = AwaitingContext
	gen := s.generation
	mode, keyword := s.mode, s.keyword
	entries := s.transcript.Entries()
	s.mu.Unlock()

	defer s.setState(Idle)

	var res Result
	mailContext, err := s.fetchContext(ctx, mode, keyword)
	if err != nil {
		if mode == model.ModeSearch {
			s.logger.Warn("search context failed", "keyword", keyword, "err", err)
			res.Err = err
			return s.finish(gen, res, transcript.RoleSystem, ErrorPrefix+err.Error()), nil
		}
		s.logger.Info("continuing without mail context", "err", err)
		res.ContextErr = err
		mailContext = ""
	}

	s.setState(AwaitingProviderResponse)
	reply, err := s.adapter.Send(ctx, entries, mailContext, settings)
	if err != nil {
		res.Err = err
		return s.finish(gen, res, transcript.RoleSystem, ErrorPrefix+err.Error()), nil
	}
	return s.finish(gen, res, transcript.RoleAssistant, reply), nil
}

func (s *Session) fetchContext(ctx context.Context, mode model.Mode, keyword string) (string, error) {
	if mode == model.ModeSearch {
		results, err := s.source.Search(ctx, keyword)
		if err != nil {
			return "", err
		}
		return mailhost.FormatSearch(strings.TrimSpace(keyword), results), nil
	}

	rec, err := s.source.CurrentItem(ctx)
	if err != nil {
		return "", err
	}
	return mailhost.FormatCurrent(*rec), nil
}

// finish appends the turn's outcome unless the transcript was cleared
// after the turn started.
func (s *Session) finish(gen uint64, res Result, role transcript.Role, content string) Result {
	res.Entry = transcript.NewEntry(role, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("dropping result of cleared turn", "role", role)
		res.Stale = true
		return res
	}
	s.transcript.Append(res.Entry)
	return res
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st
}

// Clear resets the transcript to a single greeting. It may be called at
// any time; a turn in flight keeps the session busy until it returns but
// its result is discarded.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript.Reset(transcript.NewEntry(transcript.RoleAssistant, ClearedGreeting))
	s.generation++
}

// InsertReply pushes the content of an assistant entry into a reply on
// the mail host. The transcript is not modified.
func (s *Session) InsertReply(ctx context.Context, entryID string) error {
	e, ok := s.transcript.Find(entryID)
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	if e.Role != transcript.RoleAssistant {
		return fmt.Errorf("entry %s is a %s message, not an assistant reply", entryID, e.Role)
	}
	return s.source.InsertReply(ctx, e.Content)
}
