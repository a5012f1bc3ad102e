package ews

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/model"
)

const envelopeHead = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Header>
    <h:ServerVersionInfo MajorVersion="15" MinorVersion="20" Version="V2018_01_08"
      xmlns:h="http://schemas.microsoft.com/exchange/services/2006/types"/>
  </s:Header>
  <s:Body xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
          xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">`

const envelopeTail = `</s:Body></s:Envelope>`

const findNewestResponse = envelopeHead + `
<m:FindItemResponse>
  <m:ResponseMessages>
    <m:FindItemResponseMessage ResponseClass="Success">
      <m:ResponseCode>NoError</m:ResponseCode>
      <m:RootFolder TotalItemsInView="1">
        <t:Items>
          <t:Message><t:ItemId Id="AAA" ChangeKey="CK1"/></t:Message>
        </t:Items>
      </m:RootFolder>
    </m:FindItemResponseMessage>
  </m:ResponseMessages>
</m:FindItemResponse>` + envelopeTail

const getItemResponse = envelopeHead + `
<m:GetItemResponse>
  <m:ResponseMessages>
    <m:GetItemResponseMessage ResponseClass="Success">
      <m:ResponseCode>NoError</m:ResponseCode>
      <m:Items>
        <t:Message>
          <t:ItemId Id="AAA" ChangeKey="CK1"/>
          <t:Subject>Q3 numbers</t:Subject>
          <t:Body BodyType="Text">  Please review.  </t:Body>
          <t:From><t:Mailbox><t:Name>Jane Doe</t:Name><t:EmailAddress>jane@example.com</t:EmailAddress></t:Mailbox></t:From>
          <t:InternetMessageId>&lt;abc@example.com&gt;</t:InternetMessageId>
        </t:Message>
      </m:Items>
    </m:GetItemResponseMessage>
  </m:ResponseMessages>
</m:GetItemResponse>` + envelopeTail

const searchResponse = envelopeHead + `
<m:FindItemResponse>
  <m:ResponseMessages>
    <m:FindItemResponseMessage ResponseClass="Success">
      <m:ResponseCode>NoError</m:ResponseCode>
      <m:RootFolder TotalItemsInView="2">
        <t:Items>
          <t:Message>
            <t:ItemId Id="1"/>
            <t:Subject>Invoice 42</t:Subject>
            <t:From><t:Mailbox><t:Name>Billing</t:Name></t:Mailbox></t:From>
          </t:Message>
          <t:Message>
            <t:ItemId Id="2"/>
            <t:Subject>Re: invoice</t:Subject>
          </t:Message>
        </t:Items>
      </m:RootFolder>
    </m:FindItemResponseMessage>
  </m:ResponseMessages>
</m:FindItemResponse>` + envelopeTail

const errorResponse = envelopeHead + `
<m:FindItemResponse>
  <m:ResponseMessages>
    <m:FindItemResponseMessage ResponseClass="Error">
      <m:MessageText>Access is denied.</m:MessageText>
      <m:ResponseCode>ErrorAccessDenied</m:ResponseCode>
    </m:FindItemResponseMessage>
  </m:ResponseMessages>
</m:FindItemResponse>` + envelopeTail

const createItemResponse = envelopeHead + `
<m:CreateItemResponse>
  <m:ResponseMessages>
    <m:CreateItemResponseMessage ResponseClass="Success">
      <m:ResponseCode>NoError</m:ResponseCode>
      <m:Items/>
    </m:CreateItemResponseMessage>
  </m:ResponseMessages>
</m:CreateItemResponse>` + envelopeTail

// fakeEWS answers by matching the SOAP operation in the request body.
type fakeEWS struct {
	mu       sync.Mutex
	bodies   []string
	headers  []http.Header
	replies  map[string]string
	username string
	password string
}

func (f *fakeEWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := string(raw)

	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	if f.username != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != f.username || p != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}
	for marker, reply := range f.replies {
		if strings.Contains(body, marker) {
			w.Header().Set("Content-Type", "text/xml; charset=utf-8")
			_, _ = io.WriteString(w, reply)
			return
		}
	}
	w.WriteHeader(http.StatusInternalServerError)
}

func newTestHost(t *testing.T, f *fakeEWS, cfg model.EWSConfig) *Host {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg.URL = srv.URL
	if cfg.Username == "" {
		cfg.Username = f.username
	}
	client, err := NewClientFromConfig(context.Background(), cfg, f.password, nil, logging.Discard())
	if err != nil {
		t.Fatalf("NewClientFromConfig() error = %v", err)
	}
	return NewHost(client, cfg.ItemID)
}

func TestCurrentItemNewest(t *testing.T) {
	f := &fakeEWS{
		username: "jane",
		password: "secret",
		replies: map[string]string{
			"DateTimeReceived": findNewestResponse,
			"<m:GetItem>":      getItemResponse,
		},
	}
	h := newTestHost(t, f, model.EWSConfig{})

	got, err := h.CurrentItem(context.Background())
	if err != nil {
		t.Fatalf("CurrentItem() error = %v", err)
	}

	want := &model.EmailRecord{
		ID:            "AAA",
		Subject:       "Q3 numbers",
		SenderName:    "Jane Doe",
		SenderAddress: "jane@example.com",
		Body:          "Please review.",
		MessageID:     "<abc@example.com>",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CurrentItem() mismatch (-want +got):\n%s", diff)
	}
	if len(f.bodies) != 2 {
		t.Errorf("requests = %d, want 2", len(f.bodies))
	}
	if got := h.Platform(); got != "EWS 15.20" {
		t.Errorf("Platform() = %q, want EWS 15.20", got)
	}
}

func TestCurrentItemPinned(t *testing.T) {
	f := &fakeEWS{replies: map[string]string{"<m:GetItem>": getItemResponse}}
	h := newTestHost(t, f, model.EWSConfig{ItemID: "AAA"})

	if _, err := h.CurrentItem(context.Background()); err != nil {
		t.Fatalf("CurrentItem() error = %v", err)
	}
	if len(f.bodies) != 1 {
		t.Fatalf("requests = %d, want 1", len(f.bodies))
	}
	if !strings.Contains(f.bodies[0], `<t:ItemId Id="AAA" />`) {
		t.Errorf("GetItem body missing pinned id:\n%s", f.bodies[0])
	}
}

func TestSearch(t *testing.T) {
	f := &fakeEWS{replies: map[string]string{"ContainmentMode": searchResponse}}
	h := newTestHost(t, f, model.EWSConfig{Impersonate: "boss@example.com"})

	got, err := h.Search(context.Background(), `R&D "plans"`, 20)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []string{"Subject: Invoice 42 | From: Billing", "Subject: Re: invoice"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}

	body := f.bodies[0]
	for _, frag := range []string{
		`MaxEntriesReturned="20"`,
		`ContainmentComparison="IgnoreCase"`,
		`Value="R&amp;D &#34;plans&#34;"`,
		`<t:PrimarySmtpAddress>boss@example.com</t:PrimarySmtpAddress>`,
	} {
		if !strings.Contains(body, frag) {
			t.Errorf("request body missing %q", frag)
		}
	}
	if got := f.headers[0].Get("X-AnchorMailbox"); got != "boss@example.com" {
		t.Errorf("X-AnchorMailbox = %q", got)
	}
}

func TestSearchErrorResponse(t *testing.T) {
	f := &fakeEWS{replies: map[string]string{"FindItem": errorResponse}}
	h := newTestHost(t, f, model.EWSConfig{})

	_, err := h.Search(context.Background(), "x", 20)
	if err == nil || !strings.Contains(err.Error(), "ErrorAccessDenied") {
		t.Errorf("Search() error = %v, want ErrorAccessDenied", err)
	}
}

func TestUnauthorized(t *testing.T) {
	f := &fakeEWS{username: "jane", password: "right"}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := NewClientFromConfig(context.Background(), model.EWSConfig{
		URL:      srv.URL,
		Username: "jane",
	}, "wrong", nil, logging.Discard())
	if err != nil {
		t.Fatalf("NewClientFromConfig() error = %v", err)
	}

	_, err = NewHost(client, "").CurrentItem(context.Background())
	if !mailhost.IsAuthError(err) {
		t.Errorf("CurrentItem() error = %v, want AuthError", err)
	}
}

func TestInsertReply(t *testing.T) {
	f := &fakeEWS{replies: map[string]string{
		"DateTimeReceived": findNewestResponse,
		"<m:CreateItem":    createItemResponse,
	}}
	h := newTestHost(t, f, model.EWSConfig{})

	if err := h.InsertReply(context.Background(), "Dear Ms. Doe,\n<thanks>"); err != nil {
		t.Fatalf("InsertReply() error = %v", err)
	}

	body := f.bodies[len(f.bodies)-1]
	for _, frag := range []string{
		`<t:ReferenceItemId Id="AAA" ChangeKey="CK1" />`,
		`&lt;div&gt;Dear Ms. Doe,&lt;br&gt;&amp;lt;thanks&amp;gt;&lt;/div&gt;`,
	} {
		if !strings.Contains(body, frag) {
			t.Errorf("CreateItem body missing %q:\n%s", frag, body)
		}
	}
}

func TestUnknownAuth(t *testing.T) {
	_, err := NewClientFromConfig(context.Background(), model.EWSConfig{
		URL:  "https://mail.example.com/EWS/Exchange.asmx",
		Auth: "ntlm",
	}, "", nil, logging.Discard())
	if err == nil {
		t.Error("NewClientFromConfig() error = nil, want unknown auth error")
	}
}
