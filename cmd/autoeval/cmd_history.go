package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"autoeval/internal/history"

	"github.com/spf13/cobra"
)

var historyLast int

// historyCmd prints the recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show totals and recent runs",
	Args:  cobra.NoArgs,
	RunE:  showHistory,
}

func registerHistoryCommand() {
	historyCmd.Flags().IntVarP(&historyLast, "last", "n", 10, "Number of recent runs to list (0 = all)")
}

func showHistory(cmd *cobra.Command, args []string) error {
	if cfg.Logging.History == "" {
		return errors.New("run history is disabled (logging.history is empty)")
	}
	tracker, err := history.NewTracker(cfg.Logging.History)
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), tracker.Stats(), tracker.Recent(historyLast))
	return nil
}

func printHistory(w io.Writer, stats history.Stats, recent []history.RunRecord) {
	t := stats.Total
	fmt.Fprintf(w, "%d runs, %d entities, %d items set, %d item errors, %d secondary\n",
		t.Runs, t.Entities, t.ItemsSet, t.ItemErrors, t.Secondary)

	outcomes := make([]string, 0, len(stats.ByOutcome))
	for outcome := range stats.ByOutcome {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "  %-10s %d\n", outcome, stats.ByOutcome[outcome].Runs)
	}

	for _, r := range recent {
		fmt.Fprintf(w, "%s  %-9s %-6s %d entities, %d set, %d errors, %v\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Outcome, r.Mode,
			len(r.Entities), r.ItemsSet, r.ItemErrors, r.Duration.Round(time.Second))
	}
}
