package main

import (
	"context"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "Inspect and maintain the sync queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetQueueStats(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Sync queue"))
		fmt.Printf("Pending:  %d\n", stats.Pending)
		fmt.Printf("Syncing:  %d\n", stats.Syncing)
		fmt.Printf("Failed:   %d\n", stats.Failed)
		fmt.Printf("Synced:   %d\n\n", stats.Synced)
		return nil
	},
}

var queuePurgeOlderThan string

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old synced queue entries",
	Long: `Delete queue entries that already synced and are older than the
cutoff. Pending, failed and in-flight entries are never touched, so
purging can't lose unsynced changes.

The cutoff accepts a duration or a natural-language age:

  pharmsync queue purge --older-than 720h
  pharmsync queue purge --older-than "2 weeks ago"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cutoff, err := parseCutoff(queuePurgeOlderThan)
		if err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeSynced(context.Background(), cutoff)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Printf("%s Nothing to purge\n", ui.RenderPass("✓"))
			return nil
		}
		fmt.Printf("%s Purged %d synced entries older than %s\n",
			ui.RenderPass("✓"), n, cutoff.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

// parseCutoff turns an age expression into an absolute cutoff time.
// Durations ("720h") are tried first, then natural language ("2 weeks
// ago") through the when parser.
func parseCutoff(expr string) (time.Time, error) {
	if expr == "" {
		return time.Time{}, fmt.Errorf("--older-than is required")
	}

	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("--older-than duration must be positive")
		}
		return time.Now().Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(expr, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", expr, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand %q; try a duration like 720h", expr)
	}
	if !r.Time.Before(time.Now()) {
		return time.Time{}, fmt.Errorf("%q resolves to the future", expr)
	}
	return r.Time, nil
}

func init() {
	queuePurgeCmd.Flags().StringVar(&queuePurgeOlderThan, "older-than", "", "age cutoff (duration or phrase like \"2 weeks ago\")")
	_ = queuePurgeCmd.MarkFlagRequired("older-than")

	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queuePurgeCmd)
	rootCmd.AddCommand(queueCmd)
}
