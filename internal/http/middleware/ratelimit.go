package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/ratelimit"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// RateLimit rejects requests over the limiter's ceiling with 429 and a
// localized JSON error. Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, loc *i18n.Localizer, messageKey string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			d, err := ratelimit.Check(r.Context(), limiter, ip)
			switch {
			case errors.Is(err, ratelimit.ErrLimited):
				logger.Warn("rate limit exceeded", "client_ip", MaskIP(ip), "path", r.URL.Path, "count", d.Count)
				WriteRateLimited(w, d, loc.Text(loc.FromRequest(r), messageKey))
				return
			case err != nil:
				logger.Error("rate limiter unavailable", "error", err, "path", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimited writes the 429 response shared by the relays.
func WriteRateLimited(w http.ResponseWriter, d ratelimit.Decision, message string) {
	retry := int(d.RetryAfter(time.Now()) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             message,
		"retryAfterSeconds": retry,
	})
}
