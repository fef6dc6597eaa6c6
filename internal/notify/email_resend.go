package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const resendTimeout = 15 * time.Second

// ResendSender sends emails through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   Mailbox
	logger *logging.Logger
}

// ResendConfig holds configuration for Resend. BaseURL overrides the SDK's
// default API endpoint when set.
type ResendConfig struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
}

// NewResendSender creates a Resend sender, or nil without an API key.
func NewResendSender(cfg ResendConfig, logger *logging.Logger) *ResendSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := resend.NewCustomClient(&http.Client{Timeout: resendTimeout}, cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		// the client resolves "emails" against the base, so it needs the slash
		if u, err := url.Parse(strings.TrimRight(base, "/") + "/"); err == nil {
			client.BaseURL = u
		} else {
			logger.Warn("ignoring invalid resend base url", "error", err)
		}
	}
	return &ResendSender{
		client: client,
		from:   newMailbox(cfg.FromEmail, cfg.FromName),
		logger: logger,
	}
}

// Send delivers the message. Resend error bodies are folded into the error.
func (s *ResendSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	params := &resend.SendEmailRequest{
		From:    s.from.String(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Body,
	}
	if msg.RefID != "" {
		params.Headers = map[string]string{HeaderEntityRefID: msg.RefID}
	}
	for _, name := range msg.sortedTagNames() {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: msg.Tags[name]})
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.Error("resend send failed", "error", err)
		return fmt.Errorf("notify: resend send failed: %w", err)
	}
	s.logger.Info("email sent via resend", "subject", msg.Subject, "message_id", sent.Id)
	return nil
}

var _ EmailSender = (*ResendSender)(nil)
