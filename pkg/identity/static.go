package identity

import (
	"context"
)

// StaticVerifier treats the bearer token itself as the user id, with no
// signature verification. Used only when config.Identity.StaticMode is
// set — local development and integration tests where standing up a
// JWKS endpoint would add nothing.
type StaticVerifier struct{}

func NewStaticVerifier() *StaticVerifier { return &StaticVerifier{} }

func (StaticVerifier) Verify(_ context.Context, bearerToken string) (*Identity, error) {
	if bearerToken == "" {
		return nil, ErrUnauthenticated
	}
	return &Identity{UserID: bearerToken, Claims: nil}, nil
}
