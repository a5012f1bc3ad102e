package bridge

import (
	"sync"
	"time"

	"github.com/nhle/mailassist/internal/model"
)

// Store holds the most recent message pushed over the bridge channel.
// The last write wins.
type Store struct {
	mu         sync.RWMutex
	latest     model.EmailRecord
	receivedAt time.Time
	ok         bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the stored record.
func (s *Store) Set(rec model.EmailRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = rec
	s.receivedAt = time.Now()
	s.ok = true
}

// Latest returns the most recently stored record and whether one exists.
func (s *Store) Latest() (model.EmailRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latest, s.ok
}

// ReceivedAt returns when the latest record arrived, or the zero time.
func (s *Store) ReceivedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.receivedAt
}
