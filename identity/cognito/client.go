// Package cognito talks to the public Cognito user pool API. InitiateAuth,
// SignUp and ConfirmSignUp are unauthenticated operations, so requests are
// plain JSON over HTTPS with no request signing.
package cognito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeAmzJSON = "application/x-amz-json-1.1"
	targetPrefix       = "AWSCognitoIdentityProviderService."
)

var _ identity.Provider = (*Client)(nil)

// Client is an identity.Provider for a Cognito user pool app client.
type Client struct {
	endpoint     string
	clientSecret string
	httpClient   *http.Client
	logger       zerolog.Logger
}

type Option func(*Client)

// WithEndpoint overrides the regional endpoint (used by tests and local emulators).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientSecret enables SECRET_HASH generation for app clients that have a secret.
func WithClientSecret(secret string) Option {
	return func(c *Client) {
		c.clientSecret = secret
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the user pool API in region.
func New(region string, options ...Option) *Client {
	c := &Client{
		endpoint: fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// InitiateAuth implements identity.Provider.
func (c *Client) InitiateAuth(ctx context.Context, input identity.InitiateAuthInput) (*identity.InitiateAuthOutput, error) {
	if c.clientSecret != "" {
		if username := input.AuthParameters[identity.ParamUsername]; username != "" {
			params := make(map[string]string, len(input.AuthParameters)+1)
			for k, v := range input.AuthParameters {
				params[k] = v
			}
			params[identity.ParamSecretHash] = identity.SecretHash(c.clientSecret, username, input.ClientId)
			input.AuthParameters = params
		}
	}

	var out identity.InitiateAuthOutput
	if err := c.do(ctx, "InitiateAuth", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignUp implements identity.Provider.
func (c *Client) SignUp(ctx context.Context, input identity.SignUpInput) (*identity.SignUpOutput, error) {
	if c.clientSecret != "" {
		input.SecretHash = identity.SecretHash(c.clientSecret, input.Username, input.ClientId)
	}
	var out identity.SignUpOutput
	if err := c.do(ctx, "SignUp", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmSignUp implements identity.Provider.
func (c *Client) ConfirmSignUp(ctx context.Context, input identity.ConfirmSignUpInput) error {
	if c.clientSecret != "" {
		input.SecretHash = identity.SecretHash(c.clientSecret, input.Username, input.ClientId)
	}
	return c.do(ctx, "ConfirmSignUp", input, nil)
}

// errorResponse is the body returned with a non-2xx status.
type errorResponse struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
	// Some services capitalise the field
	MessageAlt string `json:"Message"`
}

func (c *Client) do(ctx context.Context, operation string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s input: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeAmzJSON)
	req.Header.Set("X-Amz-Target", targetPrefix+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("operation", operation).Msg("identity provider unreachable")
		return bridgeerrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return bridgeerrors.NewNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid %s response from identity provider: %w", operation, err)
	}
	return nil
}

// handleErrorResponse turns a provider error body into a ProviderError. Bodies
// that cannot be decoded are reported as transport failures.
func (c *Client) handleErrorResponse(resp *http.Response, data []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err != nil || (errResp.Type == "" && errResp.Message == "" && errResp.MessageAlt == "") {
		return bridgeerrors.NewResponseError(resp)
	}
	// __type may be namespaced: "com.amazonaws.cognito#NotAuthorizedException"
	errType := errResp.Type
	if i := strings.LastIndex(errType, "#"); i >= 0 {
		errType = errType[i+1:]
	}
	message := errResp.Message
	if message == "" {
		message = errResp.MessageAlt
	}
	return &identity.ProviderError{Type: errType, Message: message}
}
