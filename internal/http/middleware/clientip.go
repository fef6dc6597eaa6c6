package middleware

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the rate-limit key used when no address is available.
const UnknownClient = "unknown"

// ClientIP returns the first X-Forwarded-For entry, then X-Real-Ip, then
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xri != "" {
		return xri
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return UnknownClient
}

// MaskIP keeps a short prefix of an address for logs.
func MaskIP(ip string) string {
	if ip == "" || ip == UnknownClient {
		return ip
	}
	if len(ip) <= 5 {
		return "***"
	}
	return ip[:5] + "***"
}
