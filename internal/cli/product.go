package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/domain"
	"storefront/internal/layout"
)

func (c *CLI) productCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Inspect and load the product catalog",
	}
	cmd.AddCommand(c.productListCommand())
	cmd.AddCommand(c.productImportCommand())
	return cmd
}

func (c *CLI) productListCommand() *cobra.Command {
	var pageID, blockID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalog, or the products one block shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (pageID == "") != (blockID == "") {
				return fmt.Errorf("--page and --block go together")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var products []domain.Product
				if blockID == "" {
					catalog, err := a.Catalog.Snapshot(ctx)
					if err != nil {
						return err
					}
					products = catalog
				} else {
					blocks, err := a.Layouts.Layout(ctx, pageID)
					if err != nil {
						return err
					}
					b, ok := layout.Find(blocks, blockID)
					if !ok {
						return fmt.Errorf("block %q: %w", blockID, layout.ErrBlockNotFound)
					}
					if products, err = a.Catalog.ProductsFor(ctx, b); err != nil {
						return err
					}
				}
				if len(products) == 0 {
					printInfo(cmd.OutOrStdout(), "No products")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderProducts(products))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pageID, "page", "", "page id of --block")
	cmd.Flags().StringVar(&blockID, "block", "", "only the products this block displays")
	return cmd
}

func (c *CLI) productImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Insert or update catalog products from a JSON array, in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read products: %w", err)
			}
			var products []domain.Product
			if err := json.Unmarshal(data, &products); err != nil {
				return fmt.Errorf("parse products: %w", err)
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Catalog.Seed(ctx, products); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Loaded %d products", len(products))
				return nil
			})
		},
	}
}
