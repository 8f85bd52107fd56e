package oidcprovider_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-gateway-bridge/auth"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/identity/oidcprovider"
	"github.com/jrsteele09/go-gateway-bridge/identity/oidcprovider/oidctest"
	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newIssuerProvider(t *testing.T) (*oidctest.Issuer, *oidcprovider.Provider) {
	t.Helper()
	iss := oidctest.NewIssuer(t, "bridge-client")
	iss.AddUser("testuser", "password123")

	provider, err := oidcprovider.New(context.Background(), iss.URL, "bridge-client", oidcprovider.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return iss, provider
}

func TestIssuer_VerifiedIDToken(t *testing.T) {
	_, provider := newIssuerProvider(t)

	out, err := provider.InitiateAuth(context.Background(), passwordInput("password123"))
	require.NoError(t, err)

	claims, err := token.ParseClaims(out.AuthenticationResult.IdToken)
	require.NoError(t, err)
	require.Equal(t, "testuser", claims.DisplayName())
	require.Equal(t, "testuser@example.com", claims.Email)
}

func TestIssuer_IDTokenForAnotherAudienceIsRejected(t *testing.T) {
	iss, provider := newIssuerProvider(t)
	iss.SetIDTokenAudience("someone-else")

	_, err := provider.InitiateAuth(context.Background(), passwordInput("password123"))
	var providerErr *identity.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "InvalidIdTokenException", providerErr.Type)
}

func TestIssuer_SessionLifecycle(t *testing.T) {
	iss, provider := newIssuerProvider(t)
	iss.SetTokenExpiry(10 * time.Minute)

	now := time.Now()
	session, err := auth.NewSession(provider, "bridge-client", auth.WithNowTime(func() time.Time { return now }), auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	first, err := session.Login(context.Background(), "testuser", "password123")
	require.NoError(t, err)
	require.True(t, first.HasRefreshToken())

	t.Run("refresh without rotation keeps the refresh token", func(t *testing.T) {
		tok, err := session.RefreshToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, first.RefreshToken, tok.RefreshToken)
		require.NotEqual(t, first.AccessToken, tok.AccessToken)
	})

	t.Run("refresh with rotation replaces it", func(t *testing.T) {
		iss.RotateRefreshTokens(true)
		tok, err := session.RefreshToken(context.Background())
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, tok.RefreshToken)
	})

	t.Run("revoked refresh token logs the session out", func(t *testing.T) {
		iss.RevokeRefreshTokens()
		now = now.Add(time.Hour)

		_, err := session.GetValidToken(context.Background())
		require.EqualError(t, err, "Refresh token is invalid or expired")

		var authErr *bridgeerrors.AuthError
		require.ErrorAs(t, err, &authErr)
		require.Nil(t, session.Token())
	})

	require.Equal(t, []string{"password", "refresh_token", "refresh_token", "refresh_token"}, iss.Grants())
}
