package notify

import (
	"context"

	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// StubEmailSender logs messages instead of sending them. Development
// deployments without provider credentials use it.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub sender.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send logs the subject and reference id.
func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("stub email sender: would send email", "subject", msg.Subject, "ref_id", msg.RefID)
	return nil
}
