// Package leadrelay accepts lead form submissions, checks them and forwards
// them as an internal notification plus a welcome email.
package leadrelay

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/helenaexplora/explora-platform/internal/captcha"
	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/internal/notify"
	"github.com/helenaexplora/explora-platform/internal/observability/metrics"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

var tracer = otel.Tracer("explora.internal.leadrelay")

// Submission outcomes recorded in metrics.
const (
	OutcomeAccepted           = "accepted"
	OutcomeRateLimited        = "rate_limited"
	OutcomeInvalidRequest     = "invalid_request"
	OutcomeVerificationFailed = "verification_failed"
	OutcomeValidationFailed   = "validation_failed"
	OutcomeDeliveryFailed     = "delivery_failed"
)

// Service runs a decoded submission through verification, validation and
// delivery.
type Service struct {
	captcha  captcha.Policy
	schema   *leads.Schema
	composer *Composer
	sender   notify.EmailSender
	metrics  *metrics.RelayMetrics
	logger   *logging.Logger
}

// NewService wires the relay's collaborators.
func NewService(policy captcha.Policy, schema *leads.Schema, composer *Composer, sender notify.EmailSender, m *metrics.RelayMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		captcha:  policy,
		schema:   schema,
		composer: composer,
		sender:   sender,
		metrics:  m,
		logger:   logger,
	}
}

// Submit verifies the token, validates the record and sends both emails
// concurrently. Errors wrap captcha.ErrVerificationFailed and friends,
// *leads.ValidationError, or ErrDelivery.
func (s *Service) Submit(ctx context.Context, sub *leads.Submission, clientIP string) error {
	ctx, span := tracer.Start(ctx, "leadrelay.submit")
	defer span.End()
	span.SetAttributes(attribute.String("lead.variant", s.schema.ID()))

	outcome, err := s.captcha.Check(ctx, sub.TurnstileToken, clientIP)
	if err != nil {
		s.logger.Warn("lead rejected: verification failed", "error", err)
		span.SetStatus(codes.Error, "verification failed")
		s.metrics.ObserveLead(OutcomeVerificationFailed)
		return fmt.Errorf("leadrelay: verify token: %w", err)
	}
	s.metrics.ObserveCaptcha(string(outcome))
	span.SetAttributes(attribute.String("lead.captcha", string(outcome)))

	rec := sub.Record.Clone()
	s.schema.Normalize(rec)
	if err := s.schema.Validate(rec); err != nil {
		var verr *leads.ValidationError
		if errors.As(err, &verr) {
			s.logger.Warn("lead rejected: invalid fields", "fields", len(verr.Fields))
		}
		span.SetStatus(codes.Error, "validation failed")
		s.metrics.ObserveLead(OutcomeValidationFailed)
		return err
	}

	msgs, err := s.composer.Compose(rec)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveLead(OutcomeDeliveryFailed)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if err := notify.SendAll(ctx, s.sender, msgs...); err != nil {
		s.logger.Error("lead email delivery failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		s.metrics.ObserveLead(OutcomeDeliveryFailed)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	s.logger.Info("lead delivered", "variant", s.schema.ID(), "captcha", string(outcome))
	s.metrics.ObserveLead(OutcomeAccepted)
	return nil
}
