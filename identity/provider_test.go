package identity_test

import (
	"testing"

	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/stretchr/testify/require"
)

func TestProviderError(t *testing.T) {
	err := &identity.ProviderError{Type: "NotAuthorizedException", Message: "Incorrect username or password."}
	require.EqualError(t, err, "Incorrect username or password.")

	require.EqualError(t, &identity.ProviderError{Type: "InternalErrorException"}, "InternalErrorException")
}

func TestSecretHash(t *testing.T) {
	h1 := identity.SecretHash("secret", "alice", "client")
	h2 := identity.SecretHash("secret", "alice", "client")
	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, identity.SecretHash("secret", "bob", "client"))
	require.Len(t, h1, 44) // base64 of 32 bytes
}
