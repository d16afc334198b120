package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/internal/app"
)

// sweepCommand runs the backfill sweep once, outside the schedule.
func (c *CLI) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Backfill every stored page that is missing defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				prog := newProgress(loggerFromContext(ctx))
				report, err := a.Sweep.RunOnce(ctx)
				if err != nil {
					return err
				}
				prog.done("Sweep finished")

				out := cmd.OutOrStdout()
				printKeyValue(out, "scanned", strconv.Itoa(report.Scanned))
				printKeyValue(out, "backfilled", strconv.Itoa(report.Backfilled))
				printKeyValue(out, "skipped", strconv.Itoa(report.Skipped))
				if report.Failed > 0 {
					printWarning(out, "%d pages failed; rerun with --verbose for details", report.Failed)
				}
				return nil
			})
		},
	}
}
