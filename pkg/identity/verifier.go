// Package identity implements the identity-provider interface (spec.md
// §1 "out of scope... assumed available as a function from opaque bearer
// token -> user identity", §6). The real implementation verifies a JWT
// bearer token's signature against a JWKS endpoint, grounded on the
// keyfunc/jwkset + golang-jwt idiom used by the pack's APISIX gateway
// plugin (authz.go): jwt.Parse with a keyfunc.Keyfunc as the key
// function, subject claim as the user id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for any bearer-token verification
// failure — missing header, malformed token, bad signature, expired,
// wrong issuer/audience. The HTTP layer maps it uniformly to 401
// (spec.md §7 "missing/invalid bearer -> unauthenticated").
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// Identity is the verified result of a bearer token: the user id and the
// raw claim set, for callers that need more than the subject (e.g. the
// Apple auth exchange).
type Identity struct {
	UserID string
	Claims jwt.MapClaims
}

// Verifier authenticates an opaque bearer token string into an Identity.
type Verifier interface {
	Verify(ctx context.Context, bearerToken string) (*Identity, error)
}

// JWKSVerifier verifies tokens against a remote JWKS endpoint.
type JWKSVerifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier fetches and caches the JWKS at jwksURL. issuer/audience
// are optional; when set, tokens failing either check are rejected.
func NewJWKSVerifier(jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("initialize JWKS from %s: %w", jwksURL, err)
	}
	return &JWKSVerifier{jwks: jwks, issuer: issuer, audience: audience}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, bearerToken string) (*Identity, error) {
	if bearerToken == "" {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(bearerToken, v.jwks.KeyfuncCtx(ctx), opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrUnauthenticated)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrUnauthenticated)
	}

	return &Identity{UserID: sub, Claims: claims}, nil
}

// BearerToken strips the "Bearer " prefix from an Authorization header
// value. Returns "" if the header is absent or malformed.
func BearerToken(authHeader string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
