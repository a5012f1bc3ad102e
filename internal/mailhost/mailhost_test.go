package mailhost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nhle/mailassist/internal/bridge"
	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
)

// stubHost is a Host with no optional capabilities.
type stubHost struct {
	rec *model.EmailRecord
	err error
}

func (h *stubHost) Name() string     { return "Stub" }
func (h *stubHost) Platform() string { return "test" }
func (h *stubHost) CurrentItem(context.Context) (*model.EmailRecord, error) {
	return h.rec, h.err
}

// fullHost adds search and reply capabilities.
type fullHost struct {
	stubHost
	results   []string
	searchErr error
	replies   []string
	replyErr  error
	keywords  []string
}

func (h *fullHost) Search(_ context.Context, keyword string, limit int) ([]string, error) {
	h.keywords = append(h.keywords, keyword)
	if h.searchErr != nil {
		return nil, h.searchErr
	}
	return h.results, nil
}

func (h *fullHost) InsertReply(_ context.Context, text string) error {
	h.replies = append(h.replies, text)
	return h.replyErr
}

func newProvider(host Host, store *bridge.Store) *ContextProvider {
	return NewContextProvider(host, store, logging.Discard())
}

func TestCurrentItemPrefersPrimaryHost(t *testing.T) {
	store := bridge.NewStore()
	store.Set(model.EmailRecord{Subject: "from bridge"})
	host := &stubHost{rec: &model.EmailRecord{Subject: "from host"}}

	got, err := newProvider(host, store).CurrentItem(context.Background())
	if err != nil {
		t.Fatalf("CurrentItem() error = %v", err)
	}
	if got.Subject != "from host" {
		t.Errorf("Subject = %q, want from host", got.Subject)
	}
}

func TestCurrentItemFallsBackToBridge(t *testing.T) {
	tests := []struct {
		name string
		host Host
	}{
		{"no host", nil},
		{"host error", &stubHost{err: errors.New("offline")}},
		{"host has no item", &stubHost{err: ErrNoItem}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := bridge.NewStore()
			store.Set(model.EmailRecord{Subject: "from bridge"})

			got, err := newProvider(tt.host, store).CurrentItem(context.Background())
			if err != nil {
				t.Fatalf("CurrentItem() error = %v", err)
			}
			if got.Subject != "from bridge" {
				t.Errorf("Subject = %q, want from bridge", got.Subject)
			}
		})
	}
}

func TestCurrentItemNoContext(t *testing.T) {
	host := &stubHost{err: errors.New("mailbox missing")}
	_, err := newProvider(host, bridge.NewStore()).CurrentItem(context.Background())

	if !IsKind(err, NoMailContext) {
		t.Fatalf("error = %v, want NoMailContext", err)
	}
	msg := err.Error()
	for _, want := range []string{"No email selected", "mailbox missing", "Host: Stub", "Platform: test"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}

	_, err = newProvider(nil, bridge.NewStore()).CurrentItem(context.Background())
	if !IsKind(err, NoMailContext) {
		t.Fatalf("error = %v, want NoMailContext", err)
	}
	if !strings.Contains(err.Error(), "Host: N/A, Platform: N/A") {
		t.Errorf("error %q should carry N/A diagnostics", err)
	}
}

func TestSearch(t *testing.T) {
	many := make([]string, 30)
	for i := range many {
		many[i] = fmt.Sprintf("Subject: %d", i)
	}

	tests := []struct {
		name     string
		host     Host
		keyword  string
		wantKind ErrorKind
		wantLen  int
	}{
		{name: "empty keyword", host: &fullHost{}, keyword: "   ", wantKind: EmptyKeyword},
		{name: "no host", host: nil, keyword: "invoice", wantKind: SearchUnavailable},
		{name: "host without search", host: &stubHost{}, keyword: "invoice", wantKind: SearchUnavailable},
		{name: "host error", host: &fullHost{searchErr: errors.New("EWS down")}, keyword: "invoice", wantKind: SearchFailed},
		{name: "zero matches", host: &fullHost{}, keyword: "invoice", wantLen: 0},
		{name: "capped", host: &fullHost{results: many}, keyword: "invoice", wantLen: SearchLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newProvider(tt.host, bridge.NewStore()).Search(context.Background(), tt.keyword)
			if tt.wantKind != "" {
				if !IsKind(err, tt.wantKind) {
					t.Fatalf("Search() error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if got == nil {
				t.Fatal("Search() returned nil slice, want empty")
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestSearchFailedCarriesHostText(t *testing.T) {
	host := &fullHost{searchErr: errors.New("ErrorAccessDenied")}
	_, err := newProvider(host, bridge.NewStore()).Search(context.Background(), " invoice ")
	if err == nil || !strings.Contains(err.Error(), "ErrorAccessDenied") {
		t.Errorf("error = %v, want host text", err)
	}
	if diff := cmp.Diff([]string{"invoice"}, host.keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertReply(t *testing.T) {
	host := &fullHost{}
	p := newProvider(host, bridge.NewStore())

	if err := p.InsertReply(context.Background(), "Dear Ms. Smith,"); err != nil {
		t.Fatalf("InsertReply() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Dear Ms. Smith,"}, host.replies); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}

	host.replyErr = errors.New("compose closed")
	if err := p.InsertReply(context.Background(), "x"); err == nil {
		t.Error("InsertReply() error = nil, want host error")
	}

	err := newProvider(&stubHost{}, bridge.NewStore()).InsertReply(context.Background(), "x")
	if !IsKind(err, ReplyUnavailable) {
		t.Errorf("error = %v, want ReplyUnavailable", err)
	}
}

func TestFormat(t *testing.T) {
	cur := FormatCurrent(model.EmailRecord{
		Subject:       "Q3",
		SenderName:    "Jane Doe",
		SenderAddress: "jane@example.com",
		Body:          "Numbers attached.",
	})
	want := "Current Email:\nSubject: Q3\nFrom: Jane Doe <jane@example.com>\nBody: Numbers attached.\n\n"
	if cur != want {
		t.Errorf("FormatCurrent() = %q, want %q", cur, want)
	}

	search := FormatSearch("invoice", []string{"Subject: A", "Subject: B"})
	want = "Found 2 emails matching \"invoice\":\n\nSubject: A\nSubject: B\n\n"
	if search != want {
		t.Errorf("FormatSearch() = %q, want %q", search, want)
	}

	if got := SummaryLine("Hi", ""); got != "Subject: Hi" {
		t.Errorf("SummaryLine() = %q", got)
	}
	if got := SummaryLine("Hi", "Ann"); got != "Subject: Hi | From: Ann" {
		t.Errorf("SummaryLine() = %q", got)
	}
}
