package middleware

import (
	"net"
	"net/http"
	"strings"

	fileshare "github.com/SuperSection/fileshare"
)

// ClientIP attaches the caller's address to the request context. When trustProxy is
// set the right-most valid X-Forwarded-For entry is used, since that is the one the
// trusted proxy appended; otherwise the host part of RemoteAddr is used.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := fileshare.WithClientIP(r.Context(), RemoteIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RemoteIP resolves the client address for r.
func RemoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := lastForwarded(r.Header.Values("X-Forwarded-For")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// lastForwarded returns the right-most valid address across all X-Forwarded-For lines.
// Entries to its left are client supplied and never trusted.
func lastForwarded(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		hops := strings.Split(lines[i], ",")
		for j := len(hops) - 1; j >= 0; j-- {
			if ip := strings.TrimSpace(hops[j]); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	return ""
}
