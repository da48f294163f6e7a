// Package noop admits every request with an anonymous identity. It is
// the chain for auth.type=none, so handlers can always count on an
// identity being present.
package noop

import (
	"context"
	"net/http"

	"github.com/onedayrun/platform/pkg/auth"
)

// Authenticator votes Yes on everything.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{Decision: auth.Yes, Identity: auth.AnonymousIdentity()}
}
