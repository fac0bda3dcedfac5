// Package metadata copies client details from request headers into the
// request context.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"sitepulse/pkg/requestcontext"
)

// CountryHeader is set by the CDN to the visitor's ISO country code.
const CountryHeader = "CF-IPCountry"

// ClientMetadata extracts client IP address, User-Agent and country from the
// request and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		if country := strings.TrimSpace(r.Header.Get(CountryHeader)); country != "" {
			ctx = requestcontext.WithCountry(ctx, strings.ToUpper(country))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For is "client, proxy1, proxy2"; the first entry is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if addr := r.RemoteAddr; addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}

	return "unknown"
}
