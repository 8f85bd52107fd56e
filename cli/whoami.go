package cli

import (
	"fmt"
	"time"

	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/token"
	"github.com/spf13/cobra"
)

type whoAmIOutput struct {
	User      string    `json:"user"`
	Email     string    `json:"email,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"` // seconds
}

func newWhoAmICommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.Bridge(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := b.Authenticate(cmd.Context()); err != nil {
				return err
			}
			session, err := app.Session(cmd.Context())
			if err != nil {
				return err
			}

			tok := session.Token()
			if tok == nil {
				return bridgeerrors.NewAuthError(bridgeerrors.ErrNotAuthenticated)
			}
			remaining := tok.ExpiresIn(time.Now())
			out := whoAmIOutput{
				User:      displayName(tok),
				ExpiresAt: tok.ExpiresAt,
				ExpiresIn: int64(remaining / time.Second),
			}
			for _, raw := range []string{tok.IDToken, tok.AccessToken} {
				claims, err := token.ParseClaims(raw)
				if err != nil {
					continue
				}
				out.Email = claims.Email
				out.Subject = claims.Subject
				out.Issuer = claims.Issuer
				break
			}

			if app.JSON {
				return writeJSON(app.Out, out)
			}
			fmt.Fprintf(app.Out, "User:    %s\n", out.User)
			if out.Email != "" {
				fmt.Fprintf(app.Out, "Email:   %s\n", out.Email)
			}
			if out.Subject != "" {
				fmt.Fprintf(app.Out, "Subject: %s\n", out.Subject)
			}
			if out.Issuer != "" {
				fmt.Fprintf(app.Out, "Issuer:  %s\n", out.Issuer)
			}
			fmt.Fprintf(app.Out, "Expires: %s (in %s)\n", out.ExpiresAt.Local().Format(time.RFC1123), remaining.Round(time.Second))
			return nil
		},
	}
}
