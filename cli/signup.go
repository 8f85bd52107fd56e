package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignUpCommand(app *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new user",
		Long: `Register a new user with the identity provider. The username and password are
read the same way as for login. A verification code is usually sent to the
email address; pass it to "confirm".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Session(cmd.Context())
			if err != nil {
				return err
			}
			creds, err := app.prompter().PromptCredentials(cmd.Context())
			if err != nil {
				return err
			}
			out, err := session.SignUp(cmd.Context(), creds.Username, creds.Password, email)
			if err != nil {
				return err
			}

			if app.JSON {
				return writeJSON(app.Out, out)
			}
			fmt.Fprintf(app.Out, "Signed up %s (sub %s)\n", creds.Username, out.UserSub)
			if !out.UserConfirmed {
				fmt.Fprintf(app.Out, "Confirm with: gateway-bridge confirm %s <code>\n", creds.Username)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address for the new user")
	return cmd
}

func newConfirmCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <username> <code>",
		Short: "Confirm a new user with the emailed verification code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Session(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.ConfirmSignUp(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(app.Out, map[string]any{"username": args[0], "confirmed": true})
			}
			fmt.Fprintf(app.Out, "Confirmed %s\n", args[0])
			return nil
		},
	}
}
