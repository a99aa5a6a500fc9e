package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AppleTokenExchanger mints a platform session once an Apple identity
// token has been verified (SPEC_FULL.md supplemented feature 1). Apple's
// own verification endpoint is an external collaborator (spec.md §1): the
// gateway only verifies the token's signature via pkg/identity.Verifier
// and delegates session minting here.
type AppleTokenExchanger interface {
	Exchange(ctx context.Context, userID, authorizationCode string) (AppleSession, error)
}

// AppleSession is the session minted for a verified Apple identity.
type AppleSession struct {
	IDToken      string
	RefreshToken string
	ExpiresIn    int
}

// ErrExchangeFailed covers any failure from the platform session minting
// step.
var ErrExchangeFailed = errors.New("apple token exchange failed")

// NoopAppleExchanger always fails — wired when no identity-platform
// integration is configured, so the endpoint still returns a well-formed
// 500 rather than panicking on a nil exchanger.
type NoopAppleExchanger struct{}

func (NoopAppleExchanger) Exchange(context.Context, string, string) (AppleSession, error) {
	return AppleSession{}, ErrExchangeFailed
}

// postAuthApple handles POST /auth/apple (SPEC_FULL.md supplemented
// feature 1): verify the Apple identity token, then exchange the
// authorization code for a platform session.
func (s *Server) postAuthApple(c *gin.Context) {
	var req appleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id, err := s.identity.Verify(c.Request.Context(), req.IdentityToken)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "identity token verification failed"})
		return
	}

	session, err := s.appleExchanger.Exchange(c.Request.Context(), id.UserID, req.AuthorizationCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "token exchange failed"})
		return
	}

	c.JSON(http.StatusOK, appleAuthResponse{
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
		User:         id.UserID,
	})
}
