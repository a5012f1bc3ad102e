package mailhost

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a mail-context failure.
type ErrorKind string

const (
	NoMailContext     ErrorKind = "no_mail_context"
	SearchUnavailable ErrorKind = "search_unavailable"
	SearchFailed      ErrorKind = "search_failed"
	EmptyKeyword      ErrorKind = "empty_keyword"
	ReplyUnavailable  ErrorKind = "reply_unavailable"
)

// ContextError is returned by the ContextProvider for every failure. Host
// and Platform carry best-effort diagnostics for display.
type ContextError struct {
	Kind     ErrorKind
	Host     string
	Platform string
	Err      error
}

func (e *ContextError) Error() string {
	switch e.Kind {
	case NoMailContext:
		msg := fmt.Sprintf(
			"No email selected. (Mail host: %s. Bridge: no data received yet). Debug: Host: %s, Platform: %s",
			e.causeText("not available"), orNA(e.Host), orNA(e.Platform),
		)
		return msg
	case SearchUnavailable:
		return fmt.Sprintf(
			"Search is not supported by the current mail host. Debug: Host: %s, Platform: %s",
			orNA(e.Host), orNA(e.Platform),
		)
	case SearchFailed:
		return fmt.Sprintf("Search failed: %s", e.causeText("unknown error"))
	case EmptyKeyword:
		return "Please enter a keyword in Search Mode."
	case ReplyUnavailable:
		return "Replying is not supported by the current mail host."
	default:
		return fmt.Sprintf("mail context error (%s): %s", e.Kind, e.causeText(""))
	}
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

func (e *ContextError) causeText(fallback string) string {
	if e.Err == nil {
		return fallback
	}
	return e.Err.Error()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// IsKind reports whether err (or any error in its chain) is a
// ContextError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *ContextError
	return errors.As(err, &ce) && ce.Kind == kind
}

// ErrNoItem is returned by hosts that are reachable but have no message
// to offer as the current item.
var ErrNoItem = errors.New("no message available")

// AuthError indicates that the mail host rejected the credentials.
type AuthError struct {
	Host    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Host, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
