// Package apikey authenticates bearer tokens against a static set of
// API keys from the server configuration. Keys are hashed at startup
// and matched in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/onedayrun/platform/pkg/auth"
)

// Key pairs a plaintext API key with the identity it grants. Used only
// at construction; the authenticator keeps the hash.
type Key struct {
	Value    string
	Identity auth.Identity
}

type entry struct {
	hash     [sha256.Size]byte
	identity auth.Identity
}

// Authenticator matches bearer tokens against the configured key set.
type Authenticator struct {
	entries []entry
}

// New hashes the given keys. Plaintext is not retained.
func New(keys []Key) *Authenticator {
	a := &Authenticator{entries: make([]entry, 0, len(keys))}
	for _, k := range keys {
		a.entries = append(a.entries, entry{
			hash:     sha256.Sum256([]byte(k.Value)),
			identity: k.Identity,
		})
	}
	return a
}

// Authenticate votes Yes when the bearer token hashes to a known key,
// No when a bearer token is present but unknown, and Abstain when the
// request carries no bearer credentials at all.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(token))
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(sum[:], e.hash[:]) == 1 {
			id := e.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
