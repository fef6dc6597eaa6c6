package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// HeaderEntityRefID stops mail clients from threading unrelated messages
// with the same subject.
const HeaderEntityRefID = "X-Entity-Ref-ID"

const defaultFromName = "Helena Explora"

// ErrNoRecipient is returned for messages without a To address.
var ErrNoRecipient = errors.New("notify: message has no recipient")

// EmailSender delivers one message. Resend, SendGrid and SES implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a single outbound email.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string
	// RefID is sent as HeaderEntityRefID when set.
	RefID string
	// Tags are provider-side labels, e.g. category=lead.
	Tags map[string]string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// text returns the plain body, falling back to the HTML for providers that
// require both parts.
func (m EmailMessage) text() string {
	if m.Body != "" {
		return m.Body
	}
	return m.HTML
}

func (m EmailMessage) sortedTagNames() []string {
	names := make([]string, 0, len(m.Tags))
	for name := range m.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mailbox is the sender identity shared by every provider.
type Mailbox struct {
	Name    string
	Address string
}

func newMailbox(address, name string) Mailbox {
	if strings.TrimSpace(name) == "" {
		name = defaultFromName
	}
	return Mailbox{Name: name, Address: address}
}

// String formats the mailbox as `Name <address>`.
func (m Mailbox) String() string {
	if m.Name == "" {
		return m.Address
	}
	return fmt.Sprintf("%s <%s>", m.Name, m.Address)
}
