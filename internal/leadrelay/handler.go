package leadrelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/helenaexplora/explora-platform/internal/captcha"
	"github.com/helenaexplora/explora-platform/internal/http/middleware"
	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/internal/observability/metrics"
	"github.com/helenaexplora/explora-platform/internal/ratelimit"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler is the HTTP entrypoint of the lead relay.
type Handler struct {
	service *Service
	limiter ratelimit.Limiter
	loc     *i18n.Localizer
	metrics *metrics.RelayMetrics
	logger  *logging.Logger
}

// NewHandler creates the lead relay handler. limiter may be nil to disable
// rate limiting.
func NewHandler(service *Service, limiter ratelimit.Limiter, loc *i18n.Localizer, m *metrics.RelayMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = i18n.NewLocalizer("")
	}
	return &Handler{service: service, limiter: limiter, loc: loc, metrics: m, logger: logger}
}

// ServeHTTP handles POST /functions/v1/send-lead-email.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tag := h.loc.FromRequest(r)
	ip := middleware.ClientIP(r)

	if h.limiter != nil {
		d, err := ratelimit.Check(r.Context(), h.limiter, ip)
		switch {
		case errors.Is(err, ratelimit.ErrLimited):
			h.logger.Warn("lead rate limit exceeded", "client_ip", middleware.MaskIP(ip), "count", d.Count)
			h.metrics.ObserveLead(OutcomeRateLimited)
			middleware.WriteRateLimited(w, d, h.loc.Text(tag, i18n.KeyRateLimited))
			return
		case err != nil:
			h.logger.Error("lead rate limiter unavailable", "error", err)
		}
	}

	sub, err := decodeSubmission(r.Body)
	if errors.Is(err, ErrInvalidRequest) {
		h.logger.Warn("lead body rejected", "error", err)
		h.metrics.ObserveLead(OutcomeInvalidRequest)
		writeError(w, http.StatusBadRequest, h.loc.Text(tag, i18n.KeyInvalidRequest))
		return
	}
	h.logger.Info("lead received", "client_ip", middleware.MaskIP(ip), "payload", MaskSubmission(sub))

	err = h.service.Submit(r.Context(), &sub, ip)
	var verr *leads.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, captcha.ErrVerificationFailed),
		errors.Is(err, captcha.ErrMissingToken),
		errors.Is(err, captcha.ErrUnavailable):
		writeError(w, http.StatusBadRequest, h.loc.Text(tag, i18n.KeyVerificationFailed))
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  h.loc.Text(tag, i18n.KeyValidationFailed),
			"fields": verr.Messages(h.loc, tag),
		})
	default:
		h.logger.Error("lead relay failed", "error", err)
		writeError(w, http.StatusInternalServerError, h.loc.Text(tag, i18n.KeyInternal))
	}
}

// decodeSubmission reads one JSON lead submission, capped at maxBodyBytes.
func decodeSubmission(body io.Reader) (leads.Submission, error) {
	var sub leads.Submission
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&sub); err != nil {
		return leads.Submission{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return sub, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
