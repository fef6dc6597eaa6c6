package leadrelay

import (
	"strings"

	"github.com/helenaexplora/explora-platform/internal/leads"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Sanitize escapes the characters that can open markup or break out of an
// attribute.
func Sanitize(s string) string {
	return htmlEscaper.Replace(s)
}

const (
	maskedEmail = "***@***.***"
	maskedPhone = "***-***-****"
	maskedToken = "***"
)

// MaskSubmission returns a copy safe for logs: contact details and the
// verification token are redacted.
func MaskSubmission(sub leads.Submission) leads.Submission {
	out := sub
	out.USAInterests = append([]string(nil), sub.USAInterests...)
	if out.Email != "" {
		out.Email = maskedEmail
	}
	if out.Phone != "" {
		out.Phone = maskedPhone
	}
	if out.WhatsappContact != "" {
		out.WhatsappContact = maskedPhone
	}
	if out.TurnstileToken != "" {
		out.TurnstileToken = maskedToken
	}
	return out
}
