package token

import (
	"time"

	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/internal/utils"
)

// Token is an issued credential set. A Token is never modified after New
// returns it; a refresh produces a new Token.
type Token struct {
	AccessToken  string
	IDToken      string
	RefreshToken string // empty when the provider issued none
	ExpiresAt    time.Time
}

// New builds a Token from a provider authentication result issued at
// issuedAt. When the result carries no refresh token the one from prior (if
// any) is kept, since most providers only return it on the initial login.
func New(result *identity.AuthenticationResult, issuedAt time.Time, prior *Token) *Token {
	var priorRefresh string
	if prior != nil {
		priorRefresh = prior.RefreshToken
	}
	return &Token{
		AccessToken:  result.AccessToken,
		IDToken:      result.IdToken,
		RefreshToken: utils.FirstNonEmpty(utils.Value(result.RefreshToken), priorRefresh),
		ExpiresAt:    issuedAt.Add(time.Duration(result.ExpiresIn) * time.Second),
	}
}

// Valid reports whether the token can still be used at now, treating it as
// expired margin before its literal expiry.
func (t *Token) Valid(now time.Time, margin time.Duration) bool {
	if t == nil {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// HasRefreshToken reports whether the token can be renewed without a password.
func (t *Token) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != ""
}

// ExpiresIn returns the remaining lifetime at now, zero once expired.
func (t *Token) ExpiresIn(now time.Time) time.Duration {
	if t == nil || !now.Before(t.ExpiresAt) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}
