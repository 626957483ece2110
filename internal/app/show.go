package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"xsushi-ratio-tracker/internal/fetcher"
)

// Show prints the most recent daily points.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	points, err := store.ListRecent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintln(os.Stdout, "no data points found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Day\tSushi/xSushi\tObserved (UTC)")

	for _, point := range points {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			point.Day.UTC().Format("2006-01-02"),
			point.Ratio.StringFixed(fetcher.RatioPrecision),
			point.ObservedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}
