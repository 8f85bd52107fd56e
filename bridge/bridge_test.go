package bridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-gateway-bridge/auth"
	"github.com/jrsteele09/go-gateway-bridge/bridge"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/identity/identityfakes"
	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/prompt"
	"github.com/jrsteele09/go-gateway-bridge/rpc"
	"github.com/jrsteele09/go-gateway-bridge/rpc/rpctest"
	"github.com/jrsteele09/go-gateway-bridge/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu            sync.Mutex
	authenticated bool
	token         string
	loginErr      error
	logins        int
	logouts       int
}

func (f *fakeSession) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeSession) InteractiveLogin(context.Context) (*token.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.authenticated = true
	return &token.Token{AccessToken: f.token}, nil
}

func (f *fakeSession) GetValidToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeSession) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.authenticated = false
}

func TestAuthenticate_UsesCachedToken(t *testing.T) {
	session := &fakeSession{authenticated: true, token: "cached-token"}
	b := bridge.New("http://unused", session, rpc.WithLogger(zerolog.Nop()))

	tok, err := b.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cached-token", tok)
	require.Zero(t, session.logins)
}

func TestAuthenticate_LogsInWhenUnauthenticated(t *testing.T) {
	session := &fakeSession{token: "fresh-token"}
	b := bridge.New("http://unused", session, rpc.WithLogger(zerolog.Nop()))

	tok, err := b.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh-token", tok)
	require.Equal(t, 1, session.logins)
}

func TestAuthenticate_LoginFailureSendsNothing(t *testing.T) {
	server := rpctest.NewServer(t)
	session := &fakeSession{loginErr: bridgeerrors.NewAuthError(bridgeerrors.ErrNoCredentials)}
	b := bridge.New(server.URL, session, rpc.WithLogger(zerolog.Nop()))

	_, err := b.ListTools(context.Background())
	require.ErrorIs(t, err, bridgeerrors.ErrNoCredentials)

	var authErr *bridgeerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Empty(t, server.Requests())
}

func TestLogout(t *testing.T) {
	session := &fakeSession{authenticated: true}
	b := bridge.New("http://unused", session, rpc.WithLogger(zerolog.Nop()))

	b.Logout()
	require.Equal(t, 1, session.logouts)
	require.False(t, session.IsAuthenticated())
}

func TestBridge_EndToEnd(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	provider := &identityfakes.FakeProvider{}
	provider.Returns(identityfakes.AuthResult("access-1", "id-1", "refresh-1", 3600))

	session, err := auth.NewSession(provider, "test-client-id",
		auth.WithNowTime(clock),
		auth.WithPrompter(prompt.Static(identity.Credentials{Username: "testuser", Password: "password123"})),
		auth.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	server := rpctest.NewServer(t)
	server.AcceptTokens("access-1", "access-2")
	server.HandleResult(rpc.MethodListTools, map[string]any{"tools": []map[string]any{{"name": "tool1"}}})

	b := bridge.New(server.URL, session, rpc.WithLogger(zerolog.Nop()))

	result, err := b.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Tools, 1)

	// Second call reuses the cached token.
	_, err = b.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, provider.InitiateAuthCalls(), 1)

	// An expired session is logged in again, not refreshed.
	now = now.Add(2 * time.Hour)
	provider.Returns(identityfakes.AuthResult("access-2", "id-2", "", 3600))
	_, err = b.ListTools(context.Background())
	require.NoError(t, err)

	requests := server.Requests()
	require.Len(t, requests, 3)
	require.Equal(t, "Bearer access-1", requests[0].Header.Get("Authorization"))
	require.Equal(t, "Bearer access-1", requests[1].Header.Get("Authorization"))
	require.Equal(t, "Bearer access-2", requests[2].Header.Get("Authorization"))
	require.Equal(t, int64(3), requests[2].ID)

	calls := provider.InitiateAuthCalls()
	require.Len(t, calls, 2)
	require.Equal(t, identity.UserPasswordAuth, calls[1].AuthFlow)

	t.Run("rejected token surfaces as http error", func(t *testing.T) {
		server.AcceptTokens("something-else")
		_, err := b.ListTools(context.Background())
		require.EqualError(t, err, "HTTP 401: Unauthorized")
	})
}
