package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends emails through the SendGrid v3 API. Tag values become
// categories.
type SendGridSender struct {
	client *sendgrid.Client
	from   Mailbox
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   newMailbox(cfg.FromEmail, cfg.FromName),
		logger: logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	response, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	message := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Address),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.text(),
		msg.HTML,
	)
	if msg.RefID != "" {
		message.SetHeader(HeaderEntityRefID, msg.RefID)
	}
	for _, name := range msg.sortedTagNames() {
		message.AddCategories(msg.Tags[name])
	}
	return message
}

var _ EmailSender = (*SendGridSender)(nil)
