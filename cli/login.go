package cli

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-gateway-bridge/token"
	"github.com/spf13/cobra"
)

type loginOutput struct {
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newLoginCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and verify the credentials",
		Long: `Log in with BRIDGE_USERNAME and BRIDGE_PASSWORD, or prompt for them when unset.
Tokens are held in memory only, so this checks the credentials work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Session(cmd.Context())
			if err != nil {
				return err
			}
			tok, err := session.InteractiveLogin(cmd.Context())
			if err != nil {
				return err
			}

			out := loginOutput{User: displayName(tok), ExpiresAt: tok.ExpiresAt}
			if app.JSON {
				return writeJSON(app.Out, out)
			}
			fmt.Fprintf(app.Out, "Logged in as %s (token expires %s)\n", out.User, out.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

// displayName reads the user from the ID token, falling back to the access token.
func displayName(tok *token.Token) string {
	for _, raw := range []string{tok.IDToken, tok.AccessToken} {
		if claims, err := token.ParseClaims(raw); err == nil {
			if name := claims.DisplayName(); name != "" {
				return name
			}
		}
	}
	return "unknown user"
}
