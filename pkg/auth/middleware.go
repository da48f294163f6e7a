package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/onedayrun/platform/pkg/observability"
)

// DefaultBypassEndpoints skip authentication entirely. Probes and the
// metrics scraper carry no credentials.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware authenticates every request through the chain, enforces the
// caller's per-tier rate limit when a limiter is given, and stores the
// resulting identity in the request context for the handlers downstream.
// Paths on the bypass list pass through untouched.
func Middleware(chain *Chain, limiter RateLimiter, bypass []string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(bypass))
	for _, p := range bypass {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Decision != Yes || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", res.Err)
				deny(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}
			if res.Identity.Subject == "" {
				slog.Error("authenticator produced identity without subject")
				deny(w, http.StatusInternalServerError, "server_error", "internal authentication error")
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), res.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", res.Identity.Subject, "tier", res.Identity.ServiceTier)
					observability.RateLimitRejectedTotal.WithLabelValues(res.Identity.ServiceTier).Inc()
					deny(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), res.Identity)))
		})
	}
}

// deny writes the platform's JSON error envelope.
func deny(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"message":%q}}`, errType, message)
}
