package ews

import (
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
)

const (
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	nsSOAP     = "http://schemas.xmlsoap.org/soap/envelope/"

	serverVersion = "Exchange2013"
)

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

var templates = template.Must(template.New("ews").Funcs(template.FuncMap{
	"x": xmlEscape,
}).Parse(`
{{define "envelope"}}<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
               xmlns:m="` + nsMessages + `"
               xmlns:t="` + nsTypes + `"
               xmlns:soap="` + nsSOAP + `">
  <soap:Header>
    <t:RequestServerVersion Version="` + serverVersion + `" />
{{- if .Impersonate}}
    <t:ExchangeImpersonation>
      <t:ConnectingSID>
        <t:PrimarySmtpAddress>{{x .Impersonate}}</t:PrimarySmtpAddress>
      </t:ConnectingSID>
    </t:ExchangeImpersonation>
{{- end}}
  </soap:Header>
  <soap:Body>
{{template "body" .}}
  </soap:Body>
</soap:Envelope>
{{end}}

{{define "findByKeyword"}}
    <m:FindItem Traversal="Shallow">
      <m:ItemShape>
        <t:BaseShape>IdOnly</t:BaseShape>
        <t:AdditionalProperties>
          <t:FieldURI FieldURI="item:Subject" />
          <t:FieldURI FieldURI="message:From" />
        </t:AdditionalProperties>
      </m:ItemShape>
      <m:IndexedPageItemView BasePoint="Beginning" MaxEntriesReturned="{{.Limit}}" Offset="0" />
      <m:Restriction>
        <t:Contains ContainmentMode="Substring" ContainmentComparison="IgnoreCase">
          <t:FieldURI FieldURI="item:Body" />
          <t:Constant Value="{{x .Keyword}}" />
        </t:Contains>
      </m:Restriction>
      <m:ParentFolderIds>
        <t:DistinguishedFolderId Id="inbox" />
      </m:ParentFolderIds>
    </m:FindItem>
{{end}}

{{define "findNewest"}}
    <m:FindItem Traversal="Shallow">
      <m:ItemShape>
        <t:BaseShape>IdOnly</t:BaseShape>
      </m:ItemShape>
      <m:IndexedPageItemView BasePoint="Beginning" MaxEntriesReturned="1" Offset="0" />
      <m:SortOrder>
        <t:FieldOrder Order="Descending">
          <t:FieldURI FieldURI="item:DateTimeReceived" />
        </t:FieldOrder>
      </m:SortOrder>
      <m:ParentFolderIds>
        <t:DistinguishedFolderId Id="inbox" />
      </m:ParentFolderIds>
    </m:FindItem>
{{end}}

{{define "getItem"}}
    <m:GetItem>
      <m:ItemShape>
        <t:BaseShape>IdOnly</t:BaseShape>
        <t:BodyType>Text</t:BodyType>
        <t:AdditionalProperties>
          <t:FieldURI FieldURI="item:Subject" />
          <t:FieldURI FieldURI="message:From" />
          <t:FieldURI FieldURI="item:Body" />
          <t:FieldURI FieldURI="message:InternetMessageId" />
        </t:AdditionalProperties>
      </m:ItemShape>
      <m:ItemIds>
        <t:ItemId Id="{{x .ItemID}}" />
      </m:ItemIds>
    </m:GetItem>
{{end}}

{{define "replyDraft"}}
    <m:CreateItem MessageDisposition="SaveOnly">
      <m:SavedItemFolderId>
        <t:DistinguishedFolderId Id="drafts" />
      </m:SavedItemFolderId>
      <m:Items>
        <t:ReplyToItem>
          <t:ReferenceItemId Id="{{x .ItemID}}"{{if .ChangeKey}} ChangeKey="{{x .ChangeKey}}"{{end}} />
          <t:NewBodyContent BodyType="HTML">{{x .Body}}</t:NewBodyContent>
        </t:ReplyToItem>
      </m:Items>
    </m:CreateItem>
{{end}}
`))

// requestData feeds the templates.
type requestData struct {
	Impersonate string
	Keyword     string
	Limit       int
	ItemID      string
	ChangeKey   string
	Body        string
}

// render executes the envelope with the named operation as its body.
func render(op string, data requestData) (string, error) {
	t, err := templates.Clone()
	if err != nil {
		return "", fmt.Errorf("cloning templates: %w", err)
	}
	if _, err := t.New("body").Parse(`{{template "` + op + `" .}}`); err != nil {
		return "", fmt.Errorf("binding %s: %w", op, err)
	}

	var b strings.Builder
	if err := t.ExecuteTemplate(&b, "envelope", data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", op, err)
	}
	return b.String(), nil
}

// --- response decoding ---

type envelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Header  struct {
		ServerVersionInfo *serverVersionInfo `xml:"ServerVersionInfo"`
	} `xml:"Header"`
	Body struct {
		Fault              *soapFault   `xml:"Fault"`
		FindItemResponse   *responseSet `xml:"FindItemResponse"`
		GetItemResponse    *responseSet `xml:"GetItemResponse"`
		CreateItemResponse *responseSet `xml:"CreateItemResponse"`
	} `xml:"Body"`
}

type serverVersionInfo struct {
	MajorVersion string `xml:"MajorVersion,attr"`
	MinorVersion string `xml:"MinorVersion,attr"`
	Version      string `xml:"Version,attr"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseSet struct {
	ResponseMessages struct {
		Messages []responseMessage `xml:",any"`
	} `xml:"ResponseMessages"`
}

type responseMessage struct {
	ResponseClass string    `xml:"ResponseClass,attr"`
	ResponseCode  string    `xml:"ResponseCode"`
	MessageText   string    `xml:"MessageText"`
	RootFolder    *rootNode `xml:"RootFolder"`
	Items         []item    `xml:"Items>Message"`
}

type rootNode struct {
	TotalItemsInView int    `xml:"TotalItemsInView,attr"`
	Items            []item `xml:"Items>Message"`
}

type item struct {
	ItemID struct {
		ID        string `xml:"Id,attr"`
		ChangeKey string `xml:"ChangeKey,attr"`
	} `xml:"ItemId"`
	Subject string `xml:"Subject"`
	From    struct {
		Name         string `xml:"Mailbox>Name"`
		EmailAddress string `xml:"Mailbox>EmailAddress"`
	} `xml:"From"`
	Body struct {
		Type string `xml:"BodyType,attr"`
		Text string `xml:",chardata"`
	} `xml:"Body"`
	InternetMessageID string `xml:"InternetMessageId"`
}

// ResponseError is an EWS error response or SOAP fault.
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// first returns the first response message, converting faults and
// error-class responses into a ResponseError.
func (e *envelope) first(set *responseSet) (*responseMessage, error) {
	if e.Body.Fault != nil {
		return nil, &ResponseError{Code: e.Body.Fault.Code, Message: e.Body.Fault.String}
	}
	if set == nil || len(set.ResponseMessages.Messages) == 0 {
		return nil, &ResponseError{Message: "empty EWS response"}
	}
	msg := &set.ResponseMessages.Messages[0]
	if msg.ResponseClass == "Error" {
		return nil, &ResponseError{Code: msg.ResponseCode, Message: msg.MessageText}
	}
	return msg, nil
}

// items returns the messages of a FindItem or GetItem response.
func (m *responseMessage) items() []item {
	if m.RootFolder != nil {
		return m.RootFolder.Items
	}
	return m.Items
}
