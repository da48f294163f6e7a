// Package jwt authenticates RSA-signed bearer tokens against a JWKS
// endpoint, for deployments that front the platform with an OIDC
// identity provider. The subject, service tier, and scope claims are
// configurable so existing token layouts can be mapped onto the
// platform's identity model.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/onedayrun/platform/pkg/auth"
)

// Config selects the token issuer and maps claims onto the identity.
type Config struct {
	// Issuer must match the iss claim when set.
	Issuer string

	// Audience must appear in the aud claim when set.
	Audience string

	// JWKSURL serves the signing keys.
	JWKSURL string

	// UserClaim names the claim holding the subject. Default "sub".
	UserClaim string

	// TierClaim names the claim holding the delivery package the caller
	// bought, which becomes the identity's service tier. Default "tier".
	TierClaim string

	// ScopesClaim names the scopes claim, either a space-separated
	// string or a JSON array. Default "scope".
	ScopesClaim string

	// CacheTTL bounds how long fetched signing keys are reused.
	// Default 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS. Default http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	cfg  Config
	keys *keySet
}

// New builds an authenticator for the configured JWKS endpoint.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{
		cfg: cfg,
		keys: &keySet{
			url:    cfg.JWKSURL,
			ttl:    cfg.CacheTTL,
			client: cfg.HTTPClient,
			byKid:  make(map[string]*rsa.PublicKey),
		},
	}
}

// Authenticate votes Abstain without bearer credentials, No when a
// token is present but fails validation, and Yes with the mapped
// identity otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if raw == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("empty bearer token")}
	}

	token, err := jwtlib.Parse(raw, func(token *jwtlib.Token) (any, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		key, err := a.keys.lookup(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("fetching signing key %q: %w", kid, err)
		}
		return key, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("jwt validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid token: %w", err)}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid token claims")}
	}

	subject := stringClaim(claims, a.cfg.UserClaim)
	if subject == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("token missing %q claim", a.cfg.UserClaim)}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			ServiceTier: stringClaim(claims, a.cfg.TierClaim),
			Scopes:      scopesClaim(claims, a.cfg.ScopesClaim),
			Metadata:    map[string]string{},
		},
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func stringClaim(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// scopesClaim accepts either the OAuth2 space-separated form or a
// plain JSON array of strings.
func scopesClaim(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return nil
		}
		return fields
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}

// keySet caches the RSA public keys published at a JWKS URL, refetching
// when the TTL lapses or an unknown kid shows up.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	byKid     map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func (ks *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	if key, ok := ks.byKid[kid]; ok && time.Since(ks.fetchedAt) < ks.ttl {
		ks.mu.RUnlock()
		return key, nil
	}
	ks.mu.RUnlock()

	ks.mu.Lock()
	defer ks.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if key, ok := ks.byKid[kid]; ok && time.Since(ks.fetchedAt) < ks.ttl {
		return key, nil
	}

	if err := ks.refresh(ctx); err != nil {
		return nil, err
	}
	key, ok := ks.byKid[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not in JWKS", kid)
	}
	return key, nil
}

// refresh refetches the key set. Caller holds the write lock.
func (ks *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading JWKS response: %w", err)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	ks.byKid = keys
	ks.fetchedAt = time.Now()
	slog.Debug("JWKS refreshed", "keys", len(keys), "url", ks.url)
	return nil
}

// jwk is the subset of a JSON Web Key needed for RSA signatures.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}
