package config

import "strings"

const (
	userPoolIDVar   = "BRIDGE_USER_POOL_ID"
	clientIDVar     = "BRIDGE_CLIENT_ID"
	clientSecretVar = "BRIDGE_CLIENT_SECRET"
	regionVar       = "BRIDGE_REGION"
	issuerURLVar    = "BRIDGE_ISSUER_URL"
	usernameVar     = "BRIDGE_USERNAME"
	passwordVar     = "BRIDGE_PASSWORD"
)

// IdentityConfig selects and configures the identity provider. When an issuer
// URL is set the generic OIDC backend is used, otherwise the Cognito user pool.
type IdentityConfig interface {
	GetUserPoolID() string
	GetClientID() string
	GetClientSecret() string
	GetRegion() string
	GetIssuerURL() string
	GetUsername() string
	GetPassword() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetUserPoolID() string {
	return GetEnv(userPoolIDVar, "")
}

func (Identity) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

func (Identity) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

// GetRegion falls back to the region prefix of the user pool id
// ("eu-west-1_AbC123" -> "eu-west-1").
func (i Identity) GetRegion() string {
	if region := GetEnv(regionVar, ""); region != "" {
		return region
	}
	if prefix, _, found := strings.Cut(i.GetUserPoolID(), "_"); found {
		return prefix
	}
	return "us-east-1"
}

func (Identity) GetIssuerURL() string {
	return GetEnv(issuerURLVar, "")
}

func (Identity) GetUsername() string {
	return GetEnv(usernameVar, "")
}

func (Identity) GetPassword() string {
	return GetEnv(passwordVar, "")
}
