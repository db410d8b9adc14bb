package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent evaluation runs for one tenant.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.TenantID, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run (UTC)\tRun ID\tLeak USD\tNet USD\tHigh\tSignals")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%d\n",
			run.RunTS.UTC().Format(time.RFC3339),
			run.RunID.String(),
			formatDecimal(run.TotalLeakUSD, 2),
			formatDecimal(run.NetRevenueUSD, 2),
			run.HighSeverityCount,
			run.SignalsDetected,
		)
	}

	writer.Flush()
	return nil
}
