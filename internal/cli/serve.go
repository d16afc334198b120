package cli

import (
	"context"

	"github.com/spf13/cobra"

	"storefront/internal/app"
)

// serveCommand runs the HTTP API with the background workers.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		withMCP bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout API over HTTP",
		Long: `Serve the JSON layout API. The persistence writer, the page watcher and the
scheduled backfill sweep run alongside it until the process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd, func(ctx context.Context, a *app.App) error {
				return a.ServeAll(ctx, withMCP, c.Version)
			}, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve MCP on stdin/stdout")
	return cmd
}

// mcpCommand runs only the MCP server.
func (c *CLI) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the layout tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd, func(ctx context.Context, a *app.App) error {
				return a.ServeMCP(ctx, c.Version)
			}, "")
		},
	}
}

func (c *CLI) serve(cmd *cobra.Command, run func(context.Context, *app.App) error, addr string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()
	return run(ctx, a)
}
