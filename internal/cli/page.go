package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/app"
)

func (c *CLI) pageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Create, list, rename and delete pages",
	}
	cmd.AddCommand(c.pageCreateCommand())
	cmd.AddCommand(c.pageListCommand())
	cmd.AddCommand(c.pageRenameCommand())
	cmd.AddCommand(c.pageDeleteCommand())
	return cmd
}

func (c *CLI) pageCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty page and print its id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				page, err := a.Layouts.CreatePage(ctx, name)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Created page %s", styleTitle.Render(page.Name))
				printKeyValue(cmd.OutOrStdout(), "id", page.ID)
				return nil
			})
		},
	}
}

func (c *CLI) pageListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				pages, err := a.Layouts.ListPages(ctx)
				if err != nil {
					return err
				}
				if len(pages) == 0 {
					printInfo(cmd.OutOrStdout(), "No pages yet")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPages(pages))
				return nil
			})
		},
	}
}

func (c *CLI) pageRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <page-id> <name>",
		Short: "Rename a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Layouts.RenamePage(ctx, args[0], args[1]); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Renamed page to %s", styleTitle.Render(args[1]))
				return nil
			})
		},
	}
}

func (c *CLI) pageDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <page-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a page and its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Layouts.DeletePage(ctx, args[0]); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Deleted page %s", args[0])
				return nil
			})
		},
	}
}
