package testutil

import (
	"testing"

	"github.com/nhle/mailassist/internal/settings"
)

// NewTestRepository creates an in-memory SQLiteRepository with all
// migrations applied. It automatically closes the repository when the
// test completes.
func NewTestRepository(t *testing.T) *settings.SQLiteRepository {
	t.Helper()

	r, err := settings.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("creating test repository: %v", err)
	}

	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("closing test repository: %v", err)
		}
	})

	return r
}
