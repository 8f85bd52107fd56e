// Package oidcprovider implements identity.Provider against a standard
// OpenID Connect issuer using the resource owner password and refresh token grants.
package oidcprovider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ identity.Provider = (*Provider)(nil)

// Provider exchanges credentials at an issuer's token endpoint.
// Self-service registration is not part of OpenID Connect, so SignUp and
// ConfirmSignUp report ErrUnsupported.
type Provider struct {
	config     *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
	nowTime    func() time.Time
	logger     zerolog.Logger
}

type Option func(*Provider)

func WithClientSecret(secret string) Option {
	return func(p *Provider) {
		p.config.ClientSecret = secret
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

func WithScopes(scopes ...string) Option {
	return func(p *Provider) {
		p.config.Scopes = scopes
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New discovers issuerURL's endpoints and returns a provider that verifies
// returned ID tokens against the issuer's keys.
func New(ctx context.Context, issuerURL, clientID string, options ...Option) (*Provider, error) {
	if issuerURL == "" {
		return nil, bridgeerrors.New("[oidcprovider New] issuer url is required")
	}
	p := newProvider(oauth2.Endpoint{}, clientID, options...)

	discovered, err := oidc.NewProvider(oidc.ClientContext(ctx, p.httpClient), issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	p.config.Endpoint = discovered.Endpoint()
	p.verifier = discovered.Verifier(&oidc.Config{ClientID: clientID})
	return p, nil
}

// NewWithEndpoint returns a provider for a known token endpoint. ID tokens are
// passed through unverified.
func NewWithEndpoint(endpoint oauth2.Endpoint, clientID string, options ...Option) *Provider {
	return newProvider(endpoint, clientID, options...)
}

func newProvider(endpoint oauth2.Endpoint, clientID string, options ...Option) *Provider {
	p := &Provider{
		config: &oauth2.Config{
			ClientID: clientID,
			Endpoint: endpoint,
			Scopes:   []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
		httpClient: http.DefaultClient,
		nowTime:    time.Now,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// InitiateAuth runs the password grant for USER_PASSWORD_AUTH and the refresh
// token grant for REFRESH_TOKEN_AUTH.
func (p *Provider) InitiateAuth(ctx context.Context, input identity.InitiateAuthInput) (*identity.InitiateAuthOutput, error) {
	cfg := p.config
	if input.ClientId != "" && input.ClientId != cfg.ClientID {
		cfg = &oauth2.Config{
			ClientID:     input.ClientId,
			ClientSecret: p.config.ClientSecret,
			Endpoint:     p.config.Endpoint,
			Scopes:       p.config.Scopes,
		}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	var (
		tok *oauth2.Token
		err error
	)
	switch input.AuthFlow {
	case identity.UserPasswordAuth:
		tok, err = cfg.PasswordCredentialsToken(ctx,
			input.AuthParameters[identity.ParamUsername],
			input.AuthParameters[identity.ParamPassword])
	case identity.RefreshTokenAuth:
		tok, err = cfg.TokenSource(ctx, &oauth2.Token{
			RefreshToken: input.AuthParameters[identity.ParamRefreshToken],
		}).Token()
	default:
		return nil, &identity.ProviderError{
			Type:    "InvalidParameterException",
			Message: fmt.Sprintf("unsupported auth flow %q", input.AuthFlow),
		}
	}
	if err != nil {
		return nil, p.tokenError(err)
	}

	result, err := p.authenticationResult(ctx, tok)
	if err != nil {
		return nil, err
	}
	return &identity.InitiateAuthOutput{AuthenticationResult: result}, nil
}

func (p *Provider) SignUp(context.Context, identity.SignUpInput) (*identity.SignUpOutput, error) {
	return nil, bridgeerrors.Wrapf(bridgeerrors.ErrUnsupported, "sign up via OpenID Connect issuer")
}

func (p *Provider) ConfirmSignUp(context.Context, identity.ConfirmSignUpInput) error {
	return bridgeerrors.Wrapf(bridgeerrors.ErrUnsupported, "confirm sign up via OpenID Connect issuer")
}

func (p *Provider) authenticationResult(ctx context.Context, tok *oauth2.Token) (*identity.AuthenticationResult, error) {
	result := &identity.AuthenticationResult{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
	}
	if tok.RefreshToken != "" {
		refresh := tok.RefreshToken
		result.RefreshToken = &refresh
	}
	if !tok.Expiry.IsZero() {
		result.ExpiresIn = int(math.Round(tok.Expiry.Sub(p.nowTime()).Seconds()))
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	result.IdToken = rawIDToken
	if rawIDToken != "" && p.verifier != nil {
		if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
			p.logger.Warn().Err(err).Msg("ID token verification failed")
			return nil, &identity.ProviderError{Type: "InvalidIdTokenException", Message: err.Error()}
		}
	}
	return result, nil
}

// tokenError maps an OAuth2 error response to a ProviderError carrying the
// issuer's description. Responses without an OAuth2 error body are transport failures.
func (p *Provider) tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if bridgeerrors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "" {
			if retrieveErr.Response != nil {
				return bridgeerrors.NewResponseError(retrieveErr.Response)
			}
			return bridgeerrors.NewNetworkError(err)
		}
		message := retrieveErr.ErrorDescription
		if message == "" {
			message = retrieveErr.ErrorCode
		}
		return &identity.ProviderError{Type: retrieveErr.ErrorCode, Message: message}
	}
	return bridgeerrors.NewNetworkError(err)
}
