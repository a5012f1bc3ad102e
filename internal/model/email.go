package model

// EmailRecord is the provider-agnostic view of a single mail message used
// to ground a turn.
type EmailRecord struct {
	// ID is the host-specific item identifier (EWS ItemId, IMAP UID).
	// It may be empty for records received over the bridge channel.
	ID string `json:"id,omitempty"`

	Subject       string `json:"subject"`
	SenderName    string `json:"senderName"`
	SenderAddress string `json:"senderEmail"`
	Body          string `json:"body"`

	// MessageID is the RFC 5322 Message-ID, used for reply threading.
	MessageID string `json:"messageId,omitempty"`
}
