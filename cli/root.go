// Package cli implements the gateway-bridge command line.
package cli

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "gateway-bridge",
		Short: "Authenticated JSON-RPC client for the AI gateway",
		Long: `gateway-bridge logs in to the gateway's identity provider and sends
JSON-RPC calls to the gateway with a valid bearer token.

Environment Variables:
  BRIDGE_ENDPOINT         JSON-RPC endpoint URL
  BRIDGE_CLIENT_ID        App client id at the identity provider
  BRIDGE_USER_POOL_ID     Cognito user pool id (region is taken from its prefix)
  BRIDGE_ISSUER_URL       OpenID Connect issuer; selects the OIDC backend
  BRIDGE_CLIENT_SECRET    Client secret, when the app client has one
  BRIDGE_USERNAME         Username for non-interactive login
  BRIDGE_PASSWORD         Password for non-interactive login
  BRIDGE_REQUEST_TIMEOUT  Per-call timeout (default 30s)
  BRIDGE_EXPIRY_MARGIN    Refresh this long before token expiry (default 30s)
  BRIDGE_RATE_LIMIT       Maximum JSON-RPC calls per second (default unlimited)
  BRIDGE_LOG_LEVEL        debug, info, warn or error (default warn)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.logger = NewLogger(app.ErrOut, app.Config.GetLogLevel())
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.ErrOut)

	root.PersistentFlags().StringVar(&app.Endpoint, "endpoint", "", "JSON-RPC endpoint URL (overrides BRIDGE_ENDPOINT)")
	root.PersistentFlags().BoolVar(&app.JSON, "json", false, "Output JSON instead of human-readable text")

	root.AddCommand(
		newLoginCommand(app),
		newSignUpCommand(app),
		newConfirmCommand(app),
		newWhoAmICommand(app),
		newToolsCommand(app),
		newChatCommand(app),
	)
	return root
}

// NewLogger writes human readable logs to w at the named level. Unknown
// levels fall back to warn.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}
