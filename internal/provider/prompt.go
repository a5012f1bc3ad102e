package provider

import (
	"strings"

	"github.com/nhle/mailassist/internal/transcript"
)

// SystemPrompt is the fixed behavioural instruction sent with every call.
// Its wording is part of the product and must not be edited casually.
const SystemPrompt = `You are a helpful AI assistant for Outlook.
- Output tables in Markdown format when summarizing data.
- If asked to draft a reply, detect the sender's gender from their name if possible. 
  - If male, start with "Dear Mr. [Last Name]".
  - If female, start with "Dear Ms. [Last Name]".
  - If unsure, use "Dear [Full Name]".
- Be concise and professional.
`

// finalTurn wraps the mail context as the synthetic last user turn.
func finalTurn(mailContext string) string {
	return "Current Email Content / Context:\n" + mailContext + "\n\nUser Question:"
}

// flatten renders the transcript as "role: content" lines for providers
// that take a single prompt string.
func flatten(entries []transcript.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, string(e.Role)+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}
