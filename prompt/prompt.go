// Package prompt obtains a username and password when the bridge has no
// usable session.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/jrsteele09/go-gateway-bridge/identity"
	"golang.org/x/term"
)

const (
	usernameLabel = "Username or Email:"
	passwordLabel = "Password:"
)

// Prompter supplies credentials for an interactive login.
type Prompter interface {
	PromptCredentials(ctx context.Context) (identity.Credentials, error)
}

// Func adapts a function to the Prompter interface.
type Func func(ctx context.Context) (identity.Credentials, error)

func (f Func) PromptCredentials(ctx context.Context) (identity.Credentials, error) {
	return f(ctx)
}

// Static returns fixed credentials, for automation where they come from the
// environment or flags.
type Static identity.Credentials

func (s Static) PromptCredentials(context.Context) (identity.Credentials, error) {
	if s.Username == "" || s.Password == "" {
		return identity.Credentials{}, bridgeerrors.ErrNoCredentials
	}
	return identity.Credentials(s), nil
}

// FormPrompter asks for credentials with a terminal form, masking the password.
type FormPrompter struct {
	Input  io.Reader
	Output io.Writer
}

func (p FormPrompter) PromptCredentials(ctx context.Context) (identity.Credentials, error) {
	var creds identity.Credentials
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(usernameLabel).
				Value(&creds.Username).
				Validate(required("username")),
			huh.NewInput().
				Title(passwordLabel).
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(required("password")),
		),
	)
	if p.Input != nil {
		form = form.WithInput(p.Input)
	}
	if p.Output != nil {
		form = form.WithOutput(p.Output)
	}
	if err := form.RunWithContext(ctx); err != nil {
		return identity.Credentials{}, fmt.Errorf("credential prompt: %w", err)
	}
	creds.Username = strings.TrimSpace(creds.Username)
	return creds, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// LinePrompter reads the username then the password, one per line. It is
// used when stdin is a pipe rather than a terminal. When Input is a
// *bufio.Reader it is read directly, so lines past the password stay buffered
// for the reader's other users.
type LinePrompter struct {
	Input  io.Reader
	Output io.Writer // labels are written here when non-nil
}

func (p LinePrompter) PromptCredentials(ctx context.Context) (identity.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return identity.Credentials{}, err
	}
	reader, ok := p.Input.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(p.Input)
	}

	username, err := p.readLine(reader, usernameLabel)
	if err != nil {
		return identity.Credentials{}, err
	}
	password, err := p.readLine(reader, passwordLabel)
	if err != nil {
		return identity.Credentials{}, err
	}
	if username == "" || password == "" {
		return identity.Credentials{}, bridgeerrors.ErrNoCredentials
	}
	return identity.Credentials{Username: username, Password: password}, nil
}

func (p LinePrompter) readLine(reader *bufio.Reader, label string) (string, error) {
	if p.Output != nil {
		fmt.Fprint(p.Output, label+" ")
	}
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", bridgeerrors.ErrNoCredentials
		}
		return "", fmt.Errorf("reading credentials: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ForTerminal returns a FormPrompter when in is an interactive terminal and a
// LinePrompter reading lines otherwise. lines is normally a buffered reader
// over in that the caller also reads from.
func ForTerminal(in *os.File, lines io.Reader, out io.Writer) Prompter {
	if term.IsTerminal(int(in.Fd())) {
		return FormPrompter{Input: in, Output: out}
	}
	return LinePrompter{Input: lines, Output: out}
}
