package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/driveput/driveput/internal/config"
	"github.com/driveput/driveput/internal/history"
)

const historyTimeLayout = "2006-01-02 15:04"

var flagHistoryLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upload runs",
		RunE:  runHistory,
	}

	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	store, err := history.Open(ctx, config.HistoryDBPath(), logger)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	invs, err := store.Recent(ctx, flagHistoryLimit)
	if err != nil {
		return err
	}

	if len(invs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No uploads recorded yet.")

		return nil
	}

	renderHistory(cmd.OutOrStdout(), invs)

	return nil
}

func renderHistory(w io.Writer, invs []history.Invocation) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tMODE\tSOURCE\tRESULT\tAGO")

	for _, inv := range invs {
		result := fmt.Sprintf("%d ok", inv.Succeeded)
		if inv.Failed > 0 {
			result = fmt.Sprintf("%d ok, %d failed", inv.Succeeded, inv.Failed)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			inv.StartedAt.Format(historyTimeLayout), inv.Mode, inv.Source,
			result, humanize.Time(inv.StartedAt))
	}

	tw.Flush()
}
