package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-gateway-bridge/rpc"
	"github.com/spf13/cobra"
)

func newToolsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and call gateway tools",
	}
	cmd.AddCommand(newToolsListCommand(app), newToolsCallCommand(app))
	return cmd
}

func newToolsListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools the gateway exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.Bridge(cmd.Context())
			if err != nil {
				return err
			}
			result, err := b.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(app.Out, result)
			}
			if len(result.Tools) == 0 {
				fmt.Fprintln(app.Out, "No tools available.")
				return nil
			}
			for _, tool := range result.Tools {
				fmt.Fprintf(app.Out, "%-24s %s\n", tool.Name, tool.Description)
			}
			return nil
		},
	}
}

func newToolsCallCommand(app *App) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Call a tool",
		Example: `  gateway-bridge tools call search --args '{"query":"capacity"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var toolArgs map[string]any
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
			}

			b, err := app.Bridge(cmd.Context())
			if err != nil {
				return err
			}
			result, err := b.CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(app.Out, result)
			}
			printContent(app, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "Tool arguments as a JSON object")
	return cmd
}

func printContent(app *App, result *rpc.CallToolResult) {
	if result.IsError {
		fmt.Fprint(app.Out, "Tool reported an error:\n")
	}
	for _, item := range result.Content {
		switch item.Type {
		case "text":
			fmt.Fprintln(app.Out, item.Text)
		default:
			fmt.Fprintf(app.Out, "[%s content, %s]\n", item.Type, item.MimeType)
		}
	}
}
