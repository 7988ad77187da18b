package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strafehq/strafe/packages/store"
)

var (
	historyStorePath string
	historyLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past load runs from the run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(historyStorePath)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.List(historyLimit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-20s %8s %8s %8s %10s %10s\n",
			"STARTED", "SCENARIO", "REQS", "ERRORS", "RPS", "P95(ms)", "P99(ms)")
		for _, run := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-20s %8d %8d %8.1f %10.1f %10.1f\n",
				run.StartedAt.Format(time.DateTime), run.Scenario,
				run.Requests, run.Errors, run.RPS, run.P95Ms, run.P99Ms)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyStorePath, "store", "strafe.db", "SQLite run-history file")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "max runs to list")
}
