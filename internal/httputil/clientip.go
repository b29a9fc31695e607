package httputil

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the caller's address for logs and span attributes.
// The first parseable entry of X-Forwarded-For wins, then X-Real-IP, then
// the connection's remote address.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(raw string) string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return ""
}
