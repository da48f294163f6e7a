// Package auth authenticates and rate limits requests to the platform
// API.
//
// Authenticators vote Yes, No, or Abstain on each request and are
// composed into a Chain that stops at the first decisive vote. The
// identity a Yes carries names the caller and their purchased delivery
// package; the package name doubles as the service tier that the
// per-tier rate limiter budgets against.
//
// Everything runs as plain HTTP middleware, so WebSocket upgrades are
// authenticated before the connection is hijacked and the session
// engine never sees credentials.
package auth
