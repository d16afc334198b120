package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/domain"
	"storefront/internal/layout"
)

func (c *CLI) blockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Insert, edit, move and resize blocks on a page",
		Long: `Edit the blocks of a page. Blocks are addressed by stable id or by position id
(block-0 is the top block). Every command prints the resulting layout.`,
	}
	cmd.AddCommand(c.blockInsertCommand())
	cmd.AddCommand(c.blockDeleteCommand())
	cmd.AddCommand(c.blockMoveCommand())
	cmd.AddCommand(c.blockUpdateCommand())
	cmd.AddCommand(c.blockResizeCommand())
	cmd.AddCommand(c.blockReorderCommand())
	return cmd
}

// fieldFlags collects block fields from --fields JSON and repeated --set.
type fieldFlags struct {
	json string
	set  []string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.json, "fields", "", `field values as a JSON object, e.g. '{"title":"Sale"}'`)
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "set one field, key=value (repeatable; value is parsed as JSON when it can be, null clears)")
}

func (f *fieldFlags) patch() (layout.Patch, error) {
	p := layout.Patch{}
	if f.json != "" {
		if err := json.Unmarshal([]byte(f.json), &p); err != nil {
			return nil, fmt.Errorf("--fields must be a JSON object: %w", err)
		}
	}
	for _, kv := range f.set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		p[k] = parseValue(v)
	}
	return p, nil
}

// parseValue reads v as JSON (numbers, booleans, null, arrays) and falls
// back to the raw string.
func parseValue(v string) any {
	var out any
	if err := json.Unmarshal([]byte(v), &out); err == nil {
		return out
	}
	return v
}

func (c *CLI) printResult(cmd *cobra.Command, verb string, res layout.Result) {
	out := cmd.OutOrStdout()
	if !res.Changed {
		printInfo(out, "Nothing to %s", verb)
	} else {
		printSuccess(out, "Layout updated")
	}
	if len(res.Blocks) > 0 {
		fmt.Fprintln(out, renderBlocks(res.Blocks))
	}
}

func (c *CLI) blockInsertCommand() *cobra.Command {
	var (
		at     string
		fields fieldFlags
	)
	types := make([]string, len(domain.BlockTypes))
	for i, t := range domain.BlockTypes {
		types[i] = string(t)
	}
	cmd := &cobra.Command{
		Use:       "insert <page-id> <type>",
		Short:     "Insert a block seeded with its type's defaults",
		Long:      "Insert a block of type " + strings.Join(types, ", ") + ". Without --at it is appended.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: types,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := domain.BlockType(args[1])
			if !t.Valid() {
				return fmt.Errorf("%w %q (want one of %s)", layout.ErrUnknownType, args[1], strings.Join(types, ", "))
			}
			point, err := layout.ParsePoint(at)
			if err != nil {
				return err
			}
			p, err := fields.patch()
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Layouts.Insert(ctx, args[0], t, point, p)
				if err != nil {
					return err
				}
				c.printResult(cmd, "insert", res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `insertion point: start, end, before:<k>, after:<k> or an index`)
	fields.register(cmd)
	return cmd
}

func (c *CLI) blockDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <page-id> <block-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a block; later blocks shift up",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Layouts.Delete(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				c.printResult(cmd, "delete", res)
				return nil
			})
		},
	}
}

func (c *CLI) blockMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "move <page-id> <block-id> up|down",
		Short:     "Swap a block with its neighbour",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := layout.ParseDirection(args[2])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Layouts.Move(ctx, args[0], args[1], dir)
				if err != nil {
					return err
				}
				c.printResult(cmd, "move", res)
				return nil
			})
		},
	}
}

func (c *CLI) blockUpdateCommand() *cobra.Command {
	var fields fieldFlags
	cmd := &cobra.Command{
		Use:   "update <page-id> <block-id>",
		Short: "Merge field values into a block",
		Example: `  storefront block update home block-0 --set content="Summer sale" --set textAlignment=left
  storefront block update home block-2 --fields '{"productIds":["p1","p2"],"columns":2}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := fields.patch()
			if err != nil {
				return err
			}
			if len(p) == 0 {
				return fmt.Errorf("nothing to update: give --set or --fields")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Layouts.Update(ctx, args[0], args[1], p)
				if err != nil {
					return err
				}
				c.printResult(cmd, "update", res)
				return nil
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func (c *CLI) blockResizeCommand() *cobra.Command {
	var delta, height int
	cmd := &cobra.Command{
		Use:   "resize <page-id> <block-id>",
		Short: "Change a block's height, clamped to its bounds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			byDelta := cmd.Flags().Changed("delta")
			byHeight := cmd.Flags().Changed("height")
			if byDelta == byHeight {
				return fmt.Errorf("give exactly one of --delta or --height")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					res layout.Result
					err error
				)
				if byHeight {
					res, err = a.Layouts.SetHeight(ctx, args[0], args[1], height)
				} else {
					res, err = a.Layouts.Resize(ctx, args[0], args[1], delta)
				}
				if err != nil {
					return err
				}
				c.printResult(cmd, "resize", res)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&delta, "delta", 0, "pixels to add (negative shrinks)")
	cmd.Flags().IntVar(&height, "height", 0, "absolute height in pixels")
	return cmd
}

func (c *CLI) blockReorderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <page-id> <block-id> <to>",
		Short: "Move a block to another index in one step",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("to must be an index: %w", err)
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Layouts.Reorder(ctx, args[0], args[1], to)
				if err != nil {
					return err
				}
				c.printResult(cmd, "reorder", res)
				return nil
			})
		},
	}
}
