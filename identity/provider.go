package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Provider is the identity service contract consumed by the auth session.
// Implementations must be safe for concurrent use.
type Provider interface {
	InitiateAuth(ctx context.Context, input InitiateAuthInput) (*InitiateAuthOutput, error)
	SignUp(ctx context.Context, input SignUpInput) (*SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, input ConfirmSignUpInput) error
}

// ProviderError is a rejection reported by the identity provider itself, as
// opposed to a failure to reach it. Error returns the provider's message verbatim.
type ProviderError struct {
	Type    string // e.g. "NotAuthorizedException"
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Message
}

// SecretHash computes the keyed hash an app client with a secret must send:
// Base64(HMAC_SHA256(clientSecret, username + clientID)).
func SecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
