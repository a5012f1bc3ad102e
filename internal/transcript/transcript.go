package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Entry is a single immutable message in the conversation.
type Entry struct {
	ID        string `json:"id" yaml:"id"`
	Role      Role   `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// NewEntry creates an entry with a fresh ID and the current time in
// milliseconds.
func NewEntry(role Role, content string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Transcript is an append-only, insertion-ordered list of entries.
// Entries are stored by value and handed out as copies so callers can
// never mutate history.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates a transcript seeded with the given entries.
func New(seed ...Entry) *Transcript {
	t := &Transcript{entries: make([]Entry, 0, 16)}
	t.entries = append(t.entries, seed...)
	return t
}

// Append adds an entry to the end of the transcript.
func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, e)
}

// Add creates and appends a new entry, returning it.
func (t *Transcript) Add(role Role, content string) Entry {
	e := NewEntry(role, content)
	t.Append(e)
	return e
}

// Entries returns a copy of the current entries.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Entry, len(t.entries))
	copy(result, t.entries)
	return result
}

// Find returns the entry with the given ID.
func (t *Transcript) Find(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// LastOfRole returns the most recent entry with the given role.
func (t *Transcript) LastOfRole(role Role) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Role == role {
			return t.entries[i], true
		}
	}
	return Entry{}, false
}

// Reset replaces the whole history with the given entries. A fresh slice
// is allocated so copies handed out earlier are unaffected.
func (t *Transcript) Reset(seed ...Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make([]Entry, 0, 16)
	t.entries = append(t.entries, seed...)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
