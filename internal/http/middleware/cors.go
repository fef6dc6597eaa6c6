package middleware

import (
	"net/http"
	"strings"
)

// Headers the browser clients send to the relays.
const (
	corsAllowHeaders  = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsExposeHeaders = "Retry-After"
)

// originPolicy decides the Access-Control-Allow-Origin value for a request.
type originPolicy struct {
	wildcard bool
	origins  map[string]struct{}
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		switch origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

// allow returns the header value to send, or "" when the origin is refused.
// A wildcard policy answers "*" so the public widget works without an Origin
// round trip; listed origins are echoed.
func (p originPolicy) allow(origin string) string {
	if p.wildcard {
		return "*"
	}
	if _, ok := p.origins[origin]; ok && origin != "" {
		return origin
	}
	return ""
}

// CORS applies the relay CORS headers and answers preflight requests.
// allowedOrigins may contain "*".
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			h := w.Header()
			if !policy.wildcard {
				h.Add("Vary", "Origin")
			}
			if value := policy.allow(origin); value != "" {
				h.Set("Access-Control-Allow-Origin", value)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
