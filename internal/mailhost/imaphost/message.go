package imaphost

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailassist/internal/model"
)

// recordFromEnvelope maps IMAP envelope data to an EmailRecord without
// the body.
func recordFromEnvelope(uid imap.UID, env *imap.Envelope) model.EmailRecord {
	rec := model.EmailRecord{ID: fmt.Sprintf("%d", uid)}
	if env == nil {
		return rec
	}

	rec.Subject = env.Subject
	rec.MessageID = env.MessageID
	if len(env.From) > 0 {
		from := env.From[0]
		rec.SenderName = from.Name
		rec.SenderAddress = from.Addr()
	}
	return rec
}

// fromLabel is the sender as shown in a search summary.
func fromLabel(env *imap.Envelope) string {
	if env == nil || len(env.From) == 0 {
		return ""
	}
	if env.From[0].Name != "" {
		return env.From[0].Name
	}
	return env.From[0].Addr()
}

// readBody extracts a plain-text body from a raw RFC 5322 message. The
// text/plain part wins; an HTML-only message is stripped to text.
func readBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	if textBody != "" {
		return strings.TrimSpace(textBody)
	}
	return stripHTML(htmlBody)
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML reduces an HTML body to readable text.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}

	for _, tag := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>"} {
		s = strings.ReplaceAll(s, tag, "\n")
	}
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// composeReply renders an HTML reply draft to orig.
func composeReply(from string, orig model.EmailRecord, text string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}
	if orig.SenderAddress != "" {
		h.SetAddressList("To", []*mail.Address{{Name: orig.SenderName, Address: orig.SenderAddress}})
	}

	subject := orig.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	h.SetSubject(subject)

	if id := strings.Trim(orig.MessageID, "<>"); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating draft writer: %w", err)
	}
	if _, err := io.WriteString(w, replyHTML(text)); err != nil {
		return nil, fmt.Errorf("writing draft body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing draft: %w", err)
	}
	return buf.Bytes(), nil
}

func replyHTML(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return "<div>" + strings.Join(lines, "<br>") + "</div>"
}
