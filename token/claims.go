package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of identity/access token claims the bridge displays.
// They are decoded without signature verification: the gateway, not the
// client, is responsible for validating tokens.
type Claims struct {
	Subject   string    `json:"sub"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	TokenUse  string    `json:"token_use,omitempty"` // "id" or "access" on Cognito tokens
	ExpiresAt time.Time `json:"exp,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
}

// ParseClaims decodes the payload of a JWT without verifying its signature.
func ParseClaims(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("empty token")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	claims := &Claims{
		Subject:  stringClaim(mapClaims, "sub"),
		Username: firstStringClaim(mapClaims, "cognito:username", "username", "preferred_username"),
		Email:    stringClaim(mapClaims, "email"),
		Issuer:   stringClaim(mapClaims, "iss"),
		ClientID: firstStringClaim(mapClaims, "client_id", "aud"),
		TokenUse: stringClaim(mapClaims, "token_use"),
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	return claims, nil
}

func stringClaim(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func firstStringClaim(claims jwtlib.MapClaims, keys ...string) string {
	for _, key := range keys {
		if s := stringClaim(claims, key); s != "" {
			return s
		}
	}
	return ""
}

// DisplayName picks the most human-friendly identifier available.
func (c *Claims) DisplayName() string {
	switch {
	case c.Username != "":
		return c.Username
	case c.Email != "":
		return c.Email
	default:
		return c.Subject
	}
}
