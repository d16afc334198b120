// Package cli implements the storefront command-line interface.
//
// Commands open the configured store, run one operation through the
// layout service and flush its writes before exiting. serve and mcp keep
// running with the background workers until interrupted.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/config"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger  *log.Logger
	Version string

	configFile string
	verbose    bool
}

// New creates a CLI whose logger writes to w.
func New(w io.Writer, level log.Level, version string) *CLI {
	if version == "" {
		version = "dev"
	}
	return &CLI{Logger: newLogger(w, level), Version: version}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Lay out storefront pages from blocks",
		Long:          `storefront edits the block layouts of storefront pages: banners, product grids, featured products, lists, masonry walls and text. Layouts are stored per page and can be served over HTTP or MCP.`,
		Version:       c.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.Logger.SetLevel(log.DebugLevel)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (default $HOME/.config/storefront/config.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.mcpCommand())
	root.AddCommand(c.pageCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.blockCommand())
	root.AddCommand(c.productCommand())
	root.AddCommand(c.sweepCommand())

	return root
}

// Execute runs the CLI with ctx, which main cancels on SIGINT/SIGTERM.
func Execute(ctx context.Context, w io.Writer, version string) error {
	c := New(w, LogInfo, version)
	return c.RootCommand().ExecuteContext(ctx)
}

// loadConfig reads the config file and applies its log level unless
// --verbose already raised it.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return nil, err
	}
	if !c.verbose {
		level, err := log.ParseLevel(cfg.Log.Level)
		if err == nil {
			c.Logger.SetLevel(level)
		}
	}
	return cfg, nil
}

// withApp opens the app, runs fn and closes it, flushing queued writes.
func (c *CLI) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, loggerFromContext(ctx))
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	closeErr := a.Close(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}
	return nil
}
