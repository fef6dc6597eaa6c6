package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const sesCharset = "UTF-8"

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
}

// SESSender sends emails through SES v2 simple content. Tags become SES
// message tags.
type SESSender struct {
	client SESAPI
	from   Mailbox
	logger *logging.Logger
}

// NewSESSender returns nil without a client.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{
		client: client,
		from:   newMailbox(cfg.FromEmail, cfg.FromName),
		logger: logger,
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	output, err := s.client.SendEmail(ctx, s.input(msg))
	if err != nil {
		s.logger.Error("SES send failed", "error", err)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}
	s.logger.Info("email sent via SES", "subject", msg.Subject, "message_id", aws.ToString(output.MessageId))
	return nil
}

func (s *SESSender) input(msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if text := msg.text(); text != "" {
		body.Text = sesContent(text)
	}
	if msg.HTML != "" {
		body.Html = sesContent(msg.HTML)
	}
	simple := &types.Message{Subject: sesContent(msg.Subject), Body: body}
	if msg.RefID != "" {
		simple.Headers = []types.MessageHeader{{
			Name:  aws.String(HeaderEntityRefID),
			Value: aws.String(msg.RefID),
		}}
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content:          &types.EmailContent{Simple: simple},
	}
	for _, name := range msg.sortedTagNames() {
		in.EmailTags = append(in.EmailTags, types.MessageTag{
			Name:  aws.String(name),
			Value: aws.String(msg.Tags[name]),
		})
	}
	return in
}

func sesContent(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String(sesCharset)}
}

var _ EmailSender = (*SESSender)(nil)
