package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-gateway-bridge/bridge"
	"github.com/jrsteele09/go-gateway-bridge/rpc"
	"github.com/spf13/cobra"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

func newChatCommand(app *App) *cobra.Command {
	var (
		model       string
		temperature float64
	)
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a chat completion, or start an interactive chat",
		Long: `With a message, send one chat completion and print the reply.
Without one, start an interactive session that keeps the conversation history.
In a session, /reset clears the history, /logout discards the token and
/exit (or EOF) ends it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := rpc.ChatOptions{}
			if model != "" {
				options["model"] = model
			}
			if cmd.Flags().Changed("temperature") {
				options["temperature"] = temperature
			}

			b, err := app.Bridge(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return chatOnce(cmd.Context(), app, b, args[0], options)
			}
			return chatLoop(cmd.Context(), app, b, options)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model to request")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	return cmd
}

func chatOnce(ctx context.Context, app *App, b *bridge.Bridge, message string, options rpc.ChatOptions) error {
	result, err := b.Chat(ctx, []rpc.Message{{Role: roleUser, Content: message}}, options)
	if err != nil {
		return err
	}
	if app.JSON {
		return writeJSON(app.Out, result)
	}
	fmt.Fprintln(app.Out, result.Reply())
	return nil
}

// chatLoop runs the interactive session. Errors from individual turns are
// printed and the session continues.
func chatLoop(ctx context.Context, app *App, b *bridge.Bridge, options rpc.ChatOptions) error {
	displayAppname(app)

	// Ask for credentials up front rather than after the first message.
	if _, err := b.Authenticate(ctx); err != nil {
		return err
	}

	var history []rpc.Message
	input := app.stdin()
	for {
		fmt.Fprint(app.Out, "> ")
		line, err := input.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(app.Out)
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			history = nil
			fmt.Fprintln(app.Out, "History cleared.")
			continue
		case "/logout":
			b.Logout()
			fmt.Fprintln(app.Out, "Logged out. The next message logs in again.")
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		history = append(history, rpc.Message{Role: roleUser, Content: line})
		result, err := b.Chat(ctx, history, options)
		if err != nil {
			history = history[:len(history)-1]
			fmt.Fprintf(app.ErrOut, "Error: %v\n", err)
			continue
		}
		reply := result.Reply()
		history = append(history, rpc.Message{Role: roleAssistant, Content: reply})
		fmt.Fprintln(app.Out, reply)
	}
}

func displayAppname(app *App) {
	myFigure := figure.NewFigure(app.Config.GetAppName(), "cybermedium", true)
	fmt.Fprintln(app.Out, myFigure.String())
}
