package imaphost

import (
	"testing"

	"github.com/nhle/mailassist/internal/model"
)

func TestPlatform(t *testing.T) {
	h := NewHost(NewClient(model.IMAPConfig{Host: "imap.example.com", Port: "993"}, "pw"))
	if got := h.Platform(); got != "IMAP imap.example.com" {
		t.Errorf("Platform() = %q, want %q", got, "IMAP imap.example.com")
	}
}
