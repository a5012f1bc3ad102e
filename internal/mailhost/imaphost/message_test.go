package imaphost

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"
	"github.com/google/go-cmp/cmp"

	"github.com/nhle/mailassist/internal/model"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "breaks", in: "<p>Hello</p><p>World<br>again</p>", want: "Hello\nWorld\nagain"},
		{name: "entities", in: "Fish &amp; chips&nbsp;&lt;3", want: "Fish & chips <3"},
		{name: "collapse", in: "a</div></div></div></div>b", want: "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripHTML(tt.in); got != tt.want {
				t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadBody(t *testing.T) {
	multipart := strings.Join([]string{
		"From: Jane <jane@example.com>",
		"Subject: Hi",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html version</p>",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain version",
		"--b1--",
		"",
	}, "\r\n")

	htmlOnly := strings.Join([]string{
		"From: Jane <jane@example.com>",
		"Subject: Hi",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<div>Only &amp; html</div>",
	}, "\r\n")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "prefers plain text", raw: multipart, want: "plain version"},
		{name: "strips html only", raw: htmlOnly, want: "Only & html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readBody([]byte(tt.raw)); got != tt.want {
				t.Errorf("readBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordFromEnvelope(t *testing.T) {
	env := &imap.Envelope{
		Subject:   "Q3",
		MessageID: "abc@example.com",
		From:      []imap.Address{{Name: "Jane Doe", Mailbox: "jane", Host: "example.com"}},
	}

	got := recordFromEnvelope(42, env)
	want := model.EmailRecord{
		ID:            "42",
		Subject:       "Q3",
		SenderName:    "Jane Doe",
		SenderAddress: "jane@example.com",
		MessageID:     "abc@example.com",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recordFromEnvelope() mismatch (-want +got):\n%s", diff)
	}

	if got := fromLabel(&imap.Envelope{From: []imap.Address{{Mailbox: "bot", Host: "example.com"}}}); got != "bot@example.com" {
		t.Errorf("fromLabel() = %q, want address fallback", got)
	}
}

func TestComposeReply(t *testing.T) {
	orig := model.EmailRecord{
		Subject:       "Budget",
		SenderName:    "Jane Doe",
		SenderAddress: "jane@example.com",
		MessageID:     "<abc@example.com>",
	}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	raw, err := composeReply("me@example.com", orig, "Dear Ms. Doe,\nThanks & regards", now)
	if err != nil {
		t.Fatalf("composeReply() error = %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing draft: %v", err)
	}
	defer mr.Close()

	subject, _ := mr.Header.Subject()
	if subject != "Re: Budget" {
		t.Errorf("Subject = %q, want Re: Budget", subject)
	}
	if got := mr.Header.Get("In-Reply-To"); got != "<abc@example.com>" {
		t.Errorf("In-Reply-To = %q", got)
	}
	to, _ := mr.Header.AddressList("To")
	if len(to) != 1 || to[0].Address != "jane@example.com" {
		t.Errorf("To = %v", to)
	}

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("reading draft body: %v", err)
	}
	body, _ := io.ReadAll(part.Body)
	want := "<div>Dear Ms. Doe,<br>Thanks &amp; regards</div>"
	if string(body) != want {
		t.Errorf("body = %q, want %q", body, want)
	}

	raw, err = composeReply("", model.EmailRecord{Subject: "RE: Budget"}, "x", now)
	if err != nil {
		t.Fatalf("composeReply() error = %v", err)
	}
	if !bytes.Contains(raw, []byte("Subject: RE: Budget\r\n")) {
		t.Errorf("existing reply prefix should be kept:\n%s", raw)
	}
}
