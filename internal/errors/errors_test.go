package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestAuthError_KeepsMessageVerbatim(t *testing.T) {
	cause := stderrors.New("Invalid credentials")
	err := bridgeerrors.NewAuthError(cause)

	require.EqualError(t, err, "Invalid credentials")
	require.ErrorIs(t, err, cause)

	var authErr *bridgeerrors.AuthError
	require.ErrorAs(t, err, &authErr)

	t.Run("already typed is not rewrapped", func(t *testing.T) {
		require.Same(t, err, bridgeerrors.NewAuthError(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, bridgeerrors.NewAuthError(nil))
	})
}

func TestNewStatusError(t *testing.T) {
	err := bridgeerrors.NewStatusError(500, "Internal Server Error")
	require.EqualError(t, err, "HTTP 500: Internal Server Error")
	require.Equal(t, 500, err.StatusCode)
}

func TestNewNetworkError(t *testing.T) {
	err := bridgeerrors.NewNetworkError(context.DeadlineExceeded)
	require.EqualError(t, err, context.DeadlineExceeded.Error())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var transportErr *bridgeerrors.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Zero(t, transportErr.StatusCode)
}

func TestWrapf(t *testing.T) {
	require.NoError(t, bridgeerrors.Wrapf(nil, "context"))

	err := bridgeerrors.Wrapf(bridgeerrors.ErrUnsupported, "signUp %s", "oidc")
	require.EqualError(t, err, "signUp oidc: unsupported operation")
	require.True(t, bridgeerrors.Is(err, bridgeerrors.ErrUnsupported))

	wrapped := fmt.Errorf("outer: %w", &bridgeerrors.ProtocolError{Code: -32603, Message: "Internal error"})
	var protocolErr *bridgeerrors.ProtocolError
	require.True(t, bridgeerrors.As(wrapped, &protocolErr))
	require.Equal(t, -32603, protocolErr.Code)
}

func TestNewResponseError(t *testing.T) {
	err := bridgeerrors.NewResponseError(&http.Response{StatusCode: 502, Status: "502 Upstream Gone"})
	require.EqualError(t, err, "HTTP 502: Upstream Gone")

	err = bridgeerrors.NewResponseError(&http.Response{StatusCode: 503})
	require.EqualError(t, err, "HTTP 503: Service Unavailable")
}
