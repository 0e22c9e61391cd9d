/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/bilingua/internal/store"
)

var (
	runsDocument string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run journal",
	Long:  `List, summarise and clear the SQLite journal of translation sessions.`,
}

func openRuns() (*store.Store, error) {
	if cfg.DB == "" {
		return nil, fmt.Errorf("no journal database configured")
	}
	db, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRuns()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context(), runsDocument, runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDOCUMENT\tTARGET\tSTATUS\tDONE\tFAILED\tSTARTED\tDURATION")
		for _, r := range runs {
			duration := "-"
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
				r.ID, r.Document, r.TargetLang, r.Status,
				r.Completed, r.Total, r.Failed,
				r.StartedAt.Format("2006-01-02 15:04"), duration)
		}
		return w.Flush()
	},
}

var runsFailuresCmd = &cobra.Command{
	Use:   "failures <run-id>",
	Short: "Show the failed batches of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRuns()
		if err != nil {
			return err
		}
		defer db.Close()

		failures, err := db.Failures(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list failures: %w", err)
		}
		if len(failures) == 0 {
			fmt.Println("No failed batches.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BATCH\tUNITS\tCLASS\tTIME\tMESSAGE")
		for _, f := range failures {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
				f.BatchID, f.Units, f.ErrorClass, f.OccurredAt.Format("15:04:05"), f.Message)
		}
		return w.Flush()
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run journal statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRuns()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total runs:      %d\n", stats.TotalRuns)
		fmt.Printf("Completed:       %d\n", stats.Completed)
		fmt.Printf("Stopped:         %d\n", stats.Stopped)
		fmt.Printf("Nothing found:   %d\n", stats.NothingFound)
		fmt.Printf("Blocks done:     %d\n", stats.UnitsCompleted)
		fmt.Printf("Blocks failed:   %d\n", stats.UnitsFailed)
		fmt.Printf("Failed batches:  %d\n", stats.FailedBatches)
		return nil
	},
}

var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRuns()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear journal: %w", err)
		}
		fmt.Printf("Cleared %d runs.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsListCmd.Flags().StringVar(&runsDocument, "document", "", "Only runs over this document")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsFailuresCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsClearCmd)
}
