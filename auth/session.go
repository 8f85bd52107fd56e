package auth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/prompt"
	"github.com/jrsteele09/go-gateway-bridge/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultExpiryMargin = 30 * time.Second
	defaultTimeout      = 30 * time.Second

	// singleflight keys
	refreshKey     = "refresh"
	interactiveKey = "interactive"
)

// Session owns the token cache for one client process and mediates every
// call to the identity provider.
//
// The cache starts empty and holds at most one Token. It is replaced whole
// (never mutated) by Login, RefreshToken and InteractiveLogin, and cleared by
// Logout or a refresh the provider rejects. Concurrent refreshes and
// concurrent interactive logins each collapse into a single provider call,
// and at most one login or refresh talks to the provider at a time.
type Session struct {
	id           string
	provider     identity.Provider
	clientID     string
	prompter     prompt.Prompter
	current      atomic.Pointer[token.Token]
	inflight     singleflight.Group
	gate         chan struct{}
	logouts      atomic.Uint64
	nowTime      func() time.Time
	expiryMargin time.Duration
	timeout      time.Duration
	logger       zerolog.Logger
}

// SessionOption defines a function type to modify the Session instance.
type SessionOption func(*Session)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionOption {
	return func(s *Session) {
		s.nowTime = nowFunc
	}
}

// WithExpiryMargin treats tokens as expired this long before their expiry.
func WithExpiryMargin(margin time.Duration) SessionOption {
	return func(s *Session) {
		s.expiryMargin = margin
	}
}

// WithTimeout bounds each identity provider call.
func WithTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = timeout
	}
}

// WithPrompter sets the credential source used by InteractiveLogin.
func WithPrompter(p prompt.Prompter) SessionOption {
	return func(s *Session) {
		s.prompter = p
	}
}

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates an empty session against provider for the given app client.
func NewSession(provider identity.Provider, clientID string, options ...SessionOption) (*Session, error) {
	if provider == nil {
		return nil, bridgeerrors.New("[NewSession] identity provider is required")
	}
	if clientID == "" {
		return nil, bridgeerrors.New("[NewSession] client id is required")
	}

	s := &Session{
		id:           uuid.NewString(),
		provider:     provider,
		clientID:     clientID,
		gate:         make(chan struct{}, 1),
		nowTime:      time.Now,
		expiryMargin: defaultExpiryMargin,
		timeout:      defaultTimeout,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Token returns the cached token, or nil. The returned value must not be modified.
func (s *Session) Token() *token.Token {
	return s.current.Load()
}

// Login authenticates with a username and password and caches the result.
// It waits for any login or refresh already in flight.
func (s *Session) Login(ctx context.Context, username, password string) (*token.Token, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	logouts := s.logouts.Load()
	issuedAt := s.nowTime()
	out, err := s.provider.InitiateAuth(ctx, identity.InitiateAuthInput{
		AuthFlow: identity.UserPasswordAuth,
		ClientId: s.clientID,
		AuthParameters: map[string]string{
			identity.ParamUsername: username,
			identity.ParamPassword: password,
		},
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("user", username).Msg("login rejected")
		return nil, s.providerError(ctx, err)
	}
	if out == nil || out.AuthenticationResult == nil {
		s.logger.Debug().Str("user", username).Msg("login returned no authentication result")
		return nil, authFailed()
	}

	tok := token.New(out.AuthenticationResult, issuedAt, nil)
	s.current.Store(tok)
	if s.logouts.Load() != logouts {
		s.current.CompareAndSwap(tok, nil)
		s.logger.Debug().Str("user", username).Msg("discarding login token after logout")
		return nil, notAuthenticated()
	}
	s.logger.Info().Str("user", username).Time("expires_at", tok.ExpiresAt).Msg("logged in")
	return tok, nil
}

// InteractiveLogin asks the prompter for credentials and logs in with them.
// Concurrent callers share one prompt and one login.
func (s *Session) InteractiveLogin(ctx context.Context) (*token.Token, error) {
	return s.shared(ctx, interactiveKey, func(ctx context.Context) (*token.Token, error) {
		if s.prompter == nil {
			return nil, bridgeerrors.NewAuthError(bridgeerrors.ErrNoCredentials)
		}
		creds, err := s.prompter.PromptCredentials(ctx)
		if err != nil {
			return nil, bridgeerrors.NewAuthError(err)
		}
		return s.Login(ctx, creds.Username, creds.Password)
	})
}

// RefreshToken exchanges the cached refresh token for a new token. If the
// provider does not rotate the refresh token the current one is kept.
func (s *Session) RefreshToken(ctx context.Context) (*token.Token, error) {
	return s.shared(ctx, refreshKey, func(ctx context.Context) (*token.Token, error) {
		return s.refresh(ctx, false)
	})
}

// GetValidToken returns a usable access token, refreshing once if the cached
// token is missing or within the expiry margin. It never prompts.
func (s *Session) GetValidToken(ctx context.Context) (string, error) {
	if tok := s.current.Load(); tok.Valid(s.nowTime(), s.expiryMargin) {
		return tok.AccessToken, nil
	}
	tok, err := s.shared(ctx, refreshKey, func(ctx context.Context) (*token.Token, error) {
		return s.refresh(ctx, true)
	})
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// IsAuthenticated reports whether a token is cached and not within the
// expiry margin of its expiry.
func (s *Session) IsAuthenticated() bool {
	return s.current.Load().Valid(s.nowTime(), s.expiryMargin)
}

// SignUp registers a new user. The session's cache is not touched.
func (s *Session) SignUp(ctx context.Context, username, password, email string) (*identity.SignUpOutput, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := identity.SignUpInput{
		ClientId: s.clientID,
		Username: username,
		Password: password,
	}
	if email != "" {
		input.UserAttributes = []identity.AttributeType{{Name: "email", Value: email}}
	}
	out, err := s.provider.SignUp(ctx, input)
	if err != nil {
		return nil, s.providerError(ctx, err)
	}
	s.logger.Info().Str("user", username).Msg("signed up")
	return out, nil
}

// ConfirmSignUp submits the verification code sent to a new user.
func (s *Session) ConfirmSignUp(ctx context.Context, username, code string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.provider.ConfirmSignUp(ctx, identity.ConfirmSignUpInput{
		ClientId:         s.clientID,
		Username:         username,
		ConfirmationCode: code,
	})
	if err != nil {
		return s.providerError(ctx, err)
	}
	s.logger.Info().Str("user", username).Msg("sign up confirmed")
	return nil
}

// Logout discards the cached token. A login or refresh still in flight
// completes without caching its result.
func (s *Session) Logout() {
	s.logouts.Add(1)
	s.current.Store(nil)
	s.logger.Info().Msg("logged out")
}

// refresh performs the REFRESH_TOKEN_AUTH flow. With onlyIfStale set it first
// re-checks the cache so a caller arriving just after another refresh or a
// login completed does not start a second one.
func (s *Session) refresh(ctx context.Context, onlyIfStale bool) (*token.Token, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	prior := s.current.Load()
	if onlyIfStale && prior.Valid(s.nowTime(), s.expiryMargin) {
		return prior, nil
	}
	if !prior.HasRefreshToken() {
		return nil, &bridgeerrors.AuthError{Message: bridgeerrors.ErrNoRefreshToken.Error(), Err: bridgeerrors.ErrNoRefreshToken}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	issuedAt := s.nowTime()
	out, err := s.provider.InitiateAuth(ctx, identity.InitiateAuthInput{
		AuthFlow: identity.RefreshTokenAuth,
		ClientId: s.clientID,
		AuthParameters: map[string]string{
			identity.ParamRefreshToken: prior.RefreshToken,
		},
	})
	if err != nil {
		err = s.providerError(ctx, err)
		var authErr *bridgeerrors.AuthError
		if bridgeerrors.As(err, &authErr) {
			// The refresh token is no longer accepted; the user must log in again.
			s.current.CompareAndSwap(prior, nil)
		}
		s.logger.Warn().Err(err).Msg("token refresh failed")
		return nil, err
	}
	if out == nil || out.AuthenticationResult == nil {
		s.current.CompareAndSwap(prior, nil)
		return nil, authFailed()
	}

	tok := token.New(out.AuthenticationResult, issuedAt, prior)
	if !s.current.CompareAndSwap(prior, tok) {
		// Logged out while the provider call was in flight.
		s.logger.Debug().Msg("discarding refreshed token")
		return nil, notAuthenticated()
	}
	s.logger.Debug().Time("expires_at", tok.ExpiresAt).Msg("token refreshed")
	return tok, nil
}

// acquire waits for the session's single authentication slot.
func (s *Session) acquire(ctx context.Context) (func(), error) {
	select {
	case s.gate <- struct{}{}:
		return func() { <-s.gate }, nil
	case <-ctx.Done():
		return nil, bridgeerrors.NewNetworkError(ctx.Err())
	}
}

// shared runs fn at most once at a time per key. The call itself is detached
// from any single caller's cancellation; each caller stops waiting when its own
// context is done.
func (s *Session) shared(ctx context.Context, key string, fn func(context.Context) (*token.Token, error)) (*token.Token, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return nil, bridgeerrors.NewNetworkError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*token.Token), nil
	}
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// providerError classifies a provider failure. Timeouts, cancellations and
// transport failures stay TransportErrors; anything else is a rejection and
// becomes an AuthError with the provider's message unchanged.
func (s *Session) providerError(ctx context.Context, err error) error {
	var transportErr *bridgeerrors.TransportError
	if bridgeerrors.As(err, &transportErr) {
		return err
	}
	if ctx.Err() != nil {
		return bridgeerrors.NewNetworkError(err)
	}
	return bridgeerrors.NewAuthError(err)
}

func authFailed() error {
	return &bridgeerrors.AuthError{
		Message: bridgeerrors.ErrAuthenticationFailed.Error(),
		Err:     bridgeerrors.ErrAuthenticationFailed,
	}
}

func notAuthenticated() error {
	return &bridgeerrors.AuthError{
		Message: bridgeerrors.ErrNotAuthenticated.Error(),
		Err:     bridgeerrors.ErrNotAuthenticated,
	}
}
