package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/jrsteele09/go-gateway-bridge/auth"
	"github.com/jrsteele09/go-gateway-bridge/bridge"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/identity/cognito"
	"github.com/jrsteele09/go-gateway-bridge/identity/oidcprovider"
	"github.com/jrsteele09/go-gateway-bridge/internal/config"
	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/prompt"
	"github.com/jrsteele09/go-gateway-bridge/rpc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds what the commands share. One session is created per process and
// reused by every call the process makes.
type App struct {
	Config config.Config
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// Provider and Prompter are built from Config when nil.
	Provider identity.Provider
	Prompter prompt.Prompter

	JSON     bool
	Endpoint string

	logger  zerolog.Logger
	input   *bufio.Reader
	session *auth.Session
	bridge  *bridge.Bridge
}

// NewApp returns an App on the process's standard streams.
func NewApp(cfg config.Config) *App {
	return &App{
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		logger: log.Logger,
	}
}

// Session returns the process's session, creating it on first use.
func (a *App) Session(ctx context.Context) (*auth.Session, error) {
	if a.session != nil {
		return a.session, nil
	}

	provider := a.Provider
	if provider == nil {
		var err error
		if provider, err = NewProvider(ctx, a.Config, a.logger); err != nil {
			return nil, err
		}
	}

	clientID := a.Config.GetClientID()
	if clientID == "" {
		return nil, bridgeerrors.New("BRIDGE_CLIENT_ID is not set")
	}

	session, err := auth.NewSession(provider, clientID,
		auth.WithPrompter(a.prompter()),
		auth.WithExpiryMargin(a.Config.GetExpiryMargin()),
		auth.WithTimeout(a.Config.GetRequestTimeout()),
		auth.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.session = session
	return session, nil
}

// Bridge returns the process's gateway client, creating it on first use.
func (a *App) Bridge(ctx context.Context) (*bridge.Bridge, error) {
	if a.bridge != nil {
		return a.bridge, nil
	}

	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = a.Config.GetEndpointURL()
	}
	if endpoint == "" {
		return nil, bridgeerrors.New("no gateway endpoint: set BRIDGE_ENDPOINT or --endpoint")
	}

	session, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	a.bridge = bridge.New(endpoint, session,
		rpc.WithTimeout(a.Config.GetRequestTimeout()),
		rpc.WithRateLimit(a.Config.GetRateLimit(), 1),
		rpc.WithLogger(a.logger),
	)
	return a.bridge, nil
}

// prompter prefers credentials from the environment, then the terminal.
func (a *App) prompter() prompt.Prompter {
	if a.Prompter != nil {
		return a.Prompter
	}
	if username, password := a.Config.GetUsername(), a.Config.GetPassword(); username != "" && password != "" {
		return prompt.Static{Username: username, Password: password}
	}
	if f, ok := a.In.(*os.File); ok {
		return prompt.ForTerminal(f, a.stdin(), a.ErrOut)
	}
	return prompt.LinePrompter{Input: a.stdin(), Output: a.ErrOut}
}

// stdin is the single buffered reader over In. Everything that reads lines
// from In goes through it.
func (a *App) stdin() *bufio.Reader {
	if a.input == nil {
		a.input = bufio.NewReader(a.In)
	}
	return a.input
}

// NewProvider selects the OIDC backend when an issuer URL is configured and
// the Cognito user pool otherwise.
func NewProvider(ctx context.Context, cfg config.IdentityConfig, logger zerolog.Logger) (identity.Provider, error) {
	if issuer := cfg.GetIssuerURL(); issuer != "" {
		options := []oidcprovider.Option{oidcprovider.WithLogger(logger)}
		if secret := cfg.GetClientSecret(); secret != "" {
			options = append(options, oidcprovider.WithClientSecret(secret))
		}
		return oidcprovider.New(ctx, issuer, cfg.GetClientID(), options...)
	}

	options := []cognito.Option{cognito.WithLogger(logger)}
	if secret := cfg.GetClientSecret(); secret != "" {
		options = append(options, cognito.WithClientSecret(secret))
	}
	return cognito.New(cfg.GetRegion(), options...), nil
}
