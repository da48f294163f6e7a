package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision is an authenticator's vote on a request.
type Decision int

const (
	// Yes accepts the request; the chain stops and the identity is attached.
	Yes Decision = iota

	// No rejects the request; credentials were presented but did not check
	// out, so later authenticators never see them.
	No

	// Abstain passes the request to the next authenticator in the chain.
	Abstain
)

// Result is the outcome of one authentication attempt. Identity is set
// only on Yes, Err only on No.
type Result struct {
	Decision Decision
	Identity *Identity
	Err      error
}

// Identity is the authenticated caller as the rest of the platform sees
// it: handlers read the subject for audit logs and the service tier for
// rate limiting.
type Identity struct {
	// Subject uniquely identifies the caller. Never empty on Yes.
	Subject string

	// ServiceTier is the caller's purchased delivery package ("1h" through
	// "72h"). The rate limiter keys its per-tier budgets on this value.
	ServiceTier string

	// Scopes lists granted authorization scopes.
	Scopes []string

	// Metadata carries authenticator-specific extras.
	Metadata map[string]string
}

// Authenticator inspects a request's credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain runs authenticators in order until one votes Yes or No.
type Chain struct {
	Authenticators []Authenticator

	// Fallback decides when every authenticator abstains. Yes admits the
	// request with an anonymous identity; anything else rejects it.
	Fallback Decision
}

// Authenticate evaluates the chain left to right.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}

	if c.Fallback == Yes {
		return Result{Decision: Yes, Identity: AnonymousIdentity()}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// AnonymousIdentity is the identity attached when authentication is
// disabled or the chain falls through to an accepting default.
func AnonymousIdentity() *Identity {
	return &Identity{Subject: "anonymous", ServiceTier: "default"}
}

// BearerToken extracts the token from a Bearer Authorization header.
// ok is false when the header is absent or uses another scheme, which
// authenticators translate into an Abstain vote. An empty token with
// ok true means a malformed "Bearer " header.
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}
