package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/layout"
	"storefront/internal/layoutio"
)

func (c *CLI) layoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show, export, import and repair page layouts",
	}
	cmd.AddCommand(c.layoutShowCommand())
	cmd.AddCommand(c.layoutExportCommand())
	cmd.AddCommand(c.layoutImportCommand())
	cmd.AddCommand(c.layoutBackfillCommand())
	cmd.AddCommand(c.layoutHistoryCommand())
	cmd.AddCommand(c.layoutRestoreCommand())
	return cmd
}

func (c *CLI) layoutShowCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <page-id>",
		Short: "Print a page's blocks as a table, or as JSON/YAML/TOML with --format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				blocks, err := a.Layouts.Layout(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if format == "" {
					if len(blocks) == 0 {
						printInfo(out, "Page has no blocks")
						return nil
					}
					fmt.Fprintln(out, renderBlocks(blocks))
					if layout.NeedsBackfill(blocks) {
						printWarning(out, "Some blocks are missing defaults; run `storefront layout backfill %s`", args[0])
					}
					return nil
				}
				f, err := layoutio.ParseFormat(format)
				if err != nil {
					return err
				}
				data, err := layoutio.Marshal(layout.Encode(blocks), f)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: json, yaml or toml")
	return cmd
}

func (c *CLI) layoutExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <page-id> <file>",
		Short: "Write a page's layout map to a .json, .yaml or .toml file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				m, err := a.Layouts.LayoutMap(ctx, args[0])
				if err != nil {
					return err
				}
				if err := layoutio.WriteFile(args[1], m); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Exported %d blocks", len(m))
				printDetail(cmd.OutOrStdout(), "→ %s", args[1])
				return nil
			})
		},
	}
}

func (c *CLI) layoutImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <page-id> <file>",
		Short: "Replace a page's layout with one read from a file",
		Long: `Replace a page's layout with the map in file. The file must have keys
"0".."N-1" and only known block types; the previous layout stays in history.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := layoutio.ReadFile(args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				blocks, err := a.Layouts.Import(ctx, args[0], m)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Imported %d blocks", len(blocks))
				return nil
			})
		},
	}
}

func (c *CLI) layoutBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill <page-id>",
		Short: "Fill in missing spacing, alignment and width defaults now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				changed, err := a.Layouts.Backfill(ctx, args[0])
				if err != nil {
					return err
				}
				if !changed {
					printInfo(cmd.OutOrStdout(), "Layout already has every default")
					return nil
				}
				printSuccess(cmd.OutOrStdout(), "Defaults applied")
				return nil
			})
		},
	}
}

func (c *CLI) layoutHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <page-id>",
		Short: "List saved revisions of a page's layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				revs, err := a.Layouts.History(ctx, args[0])
				if err != nil {
					return err
				}
				if len(revs) == 0 {
					printInfo(cmd.OutOrStdout(), "No revisions")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRevisions(revs))
				return nil
			})
		},
	}
}

func (c *CLI) layoutRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <page-id> <revision-id>",
		Short: "Make a past revision the page's current layout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				blocks, err := a.Layouts.Restore(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Restored %d blocks", len(blocks))
				return nil
			})
		},
	}
}
