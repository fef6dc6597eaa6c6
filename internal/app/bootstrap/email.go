package bootstrap

import (
	"fmt"

	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/internal/notify"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// Email provider names accepted in EMAIL_PROVIDER.
const (
	EmailProviderResend   = "resend"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// BuildEmailSender returns the configured sender and its provider name. ses
// is only consulted for the SES provider. Outside production a missing
// credential falls back to the logging stub; in production it is an error.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) (notify.EmailSender, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case EmailProviderResend, "":
		if s := notify.NewResendSender(notify.ResendConfig{
			APIKey:    cfg.ResendAPIKey,
			BaseURL:   cfg.ResendBaseURL,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			sender = s
		}
	case EmailProviderSendGrid:
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			sender = s
		}
	case EmailProviderSES:
		if s := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			sender = s
		}
	case EmailProviderStub:
		return notify.NewStubEmailSender(logger), EmailProviderStub, nil
	default:
		return nil, "", fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}

	if sender != nil {
		return sender, cfg.EmailProvider, nil
	}
	if cfg.IsProduction() {
		return nil, "", fmt.Errorf("bootstrap: email provider %q is not configured", cfg.EmailProvider)
	}
	logger.Warn("email provider not configured; using stub sender", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger), EmailProviderStub, nil
}
