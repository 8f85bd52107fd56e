package cognito_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/identity/cognito"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testClientID = "test-client-id"

type recordedCall struct {
	target      string
	contentType string
	body        map[string]any
}

type recorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *recorder) all() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func newCognitoServer(t *testing.T, handler func(target string, body map[string]any) (int, any)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		target := r.Header.Get("X-Amz-Target")
		rec.mu.Lock()
		rec.calls = append(rec.calls, recordedCall{target: target, contentType: r.Header.Get("Content-Type"), body: body})
		rec.mu.Unlock()

		status, resp := handler(target, body)
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		w.WriteHeader(status)
		if resp != nil {
			_ = json.NewEncoder(w).Encode(resp)
		}
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func TestInitiateAuth_PasswordFlow(t *testing.T) {
	server, rec := newCognitoServer(t, func(target string, body map[string]any) (int, any) {
		return http.StatusOK, map[string]any{
			"AuthenticationResult": map[string]any{
				"AccessToken":  "access-token",
				"IdToken":      "id-token",
				"RefreshToken": "refresh-token",
				"ExpiresIn":    3600,
				"TokenType":    "Bearer",
			},
		}
	})

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()))
	out, err := c.InitiateAuth(context.Background(), identity.InitiateAuthInput{
		AuthFlow: identity.UserPasswordAuth,
		ClientId: testClientID,
		AuthParameters: map[string]string{
			identity.ParamUsername: "testuser",
			identity.ParamPassword: "password123",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, out.AuthenticationResult)
	require.Equal(t, "access-token", out.AuthenticationResult.AccessToken)
	require.Equal(t, "refresh-token", *out.AuthenticationResult.RefreshToken)
	require.Equal(t, 3600, out.AuthenticationResult.ExpiresIn)

	calls := rec.all()
	require.Len(t, calls, 1)
	call := calls[0]
	require.Equal(t, "AWSCognitoIdentityProviderService.InitiateAuth", call.target)
	require.Equal(t, "application/x-amz-json-1.1", call.contentType)
	require.Equal(t, "USER_PASSWORD_AUTH", call.body["AuthFlow"])
	require.Equal(t, testClientID, call.body["ClientId"])
	require.Equal(t, map[string]any{"USERNAME": "testuser", "PASSWORD": "password123"}, call.body["AuthParameters"])
}

func TestInitiateAuth_NoAuthenticationResult(t *testing.T) {
	server, _ := newCognitoServer(t, func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"ChallengeName": "NEW_PASSWORD_REQUIRED", "Session": "abc"}
	})

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()))
	out, err := c.InitiateAuth(context.Background(), identity.InitiateAuthInput{AuthFlow: identity.UserPasswordAuth})
	require.NoError(t, err)
	require.Nil(t, out.AuthenticationResult)
	require.Equal(t, "NEW_PASSWORD_REQUIRED", out.ChallengeName)
}

func TestInitiateAuth_ProviderRejection(t *testing.T) {
	server, _ := newCognitoServer(t, func(string, map[string]any) (int, any) {
		return http.StatusBadRequest, map[string]any{
			"__type":  "com.amazonaws.cognito#NotAuthorizedException",
			"message": "Incorrect username or password.",
		}
	})

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()))
	_, err := c.InitiateAuth(context.Background(), identity.InitiateAuthInput{AuthFlow: identity.UserPasswordAuth})
	require.EqualError(t, err, "Incorrect username or password.")

	var providerErr *identity.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "NotAuthorizedException", providerErr.Type)
}

func TestInitiateAuth_UndecodableErrorIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()))
	_, err := c.InitiateAuth(context.Background(), identity.InitiateAuthInput{})
	require.EqualError(t, err, "HTTP 502: Bad Gateway")

	var transportErr *bridgeerrors.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
}

func TestInitiateAuth_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.InitiateAuth(ctx, identity.InitiateAuthInput{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var transportErr *bridgeerrors.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestSecretHashIsAdded(t *testing.T) {
	server, rec := newCognitoServer(t, func(target string, body map[string]any) (int, any) {
		if target == "AWSCognitoIdentityProviderService.SignUp" {
			return http.StatusOK, map[string]any{"UserSub": "sub-1"}
		}
		return http.StatusOK, map[string]any{}
	})

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()), cognito.WithClientSecret("s3cret"))

	_, err := c.InitiateAuth(context.Background(), identity.InitiateAuthInput{
		AuthFlow:       identity.UserPasswordAuth,
		ClientId:       testClientID,
		AuthParameters: map[string]string{identity.ParamUsername: "testuser", identity.ParamPassword: "pw"},
	})
	require.NoError(t, err)
	_, err = c.SignUp(context.Background(), identity.SignUpInput{ClientId: testClientID, Username: "testuser", Password: "pw"})
	require.NoError(t, err)

	want := identity.SecretHash("s3cret", "testuser", testClientID)
	calls := rec.all()
	require.Len(t, calls, 2)
	params := calls[0].body["AuthParameters"].(map[string]any)
	require.Equal(t, want, params["SECRET_HASH"])
	require.Equal(t, want, calls[1].body["SecretHash"])
}

func TestSignUpAndConfirm(t *testing.T) {
	server, rec := newCognitoServer(t, func(target string, body map[string]any) (int, any) {
		switch target {
		case "AWSCognitoIdentityProviderService.SignUp":
			return http.StatusOK, map[string]any{"UserSub": "test-user-sub", "UserConfirmed": false}
		case "AWSCognitoIdentityProviderService.ConfirmSignUp":
			return http.StatusOK, nil
		}
		return http.StatusBadRequest, map[string]any{"__type": "UnknownOperationException"}
	})

	c := cognito.New("us-east-1", cognito.WithEndpoint(server.URL), cognito.WithLogger(zerolog.Nop()))

	out, err := c.SignUp(context.Background(), identity.SignUpInput{
		ClientId:       testClientID,
		Username:       "testuser",
		Password:       "password123",
		UserAttributes: []identity.AttributeType{{Name: "email", Value: "test@example.com"}},
	})
	require.NoError(t, err)
	require.Equal(t, "test-user-sub", out.UserSub)

	err = c.ConfirmSignUp(context.Background(), identity.ConfirmSignUpInput{
		ClientId:         testClientID,
		Username:         "testuser",
		ConfirmationCode: "123456",
	})
	require.NoError(t, err)

	calls := rec.all()
	require.Len(t, calls, 2)
	require.Equal(t, []any{map[string]any{"Name": "email", "Value": "test@example.com"}}, calls[0].body["UserAttributes"])
	require.Equal(t, "123456", calls[1].body["ConfirmationCode"])
}
