package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/remote"
	"github.com/openpharm/pharmsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync and database status",
	Long: `Show local database info, remote reachability and queue depth.

Shows:
  - Database location and size
  - Remote store reachability (probed now)
  - Sync queue counts by status
  - Last successful pull time`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(cfg.DBPath)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Database not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'pharmsync init' to set up\n\n")
			return nil
		}
		if err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		stats, err := db.GetQueueStats(ctx)
		if err != nil {
			return err
		}
		lastPull, err := db.LastSyncTime(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Pharmsync Status"))
		fmt.Printf("Database:  %s (%s)\n", cfg.DBPath, formatSize(info.Size()))

		if cfg.RemoteURL == "" {
			fmt.Printf("Remote:    %s\n", ui.RenderDim("not configured"))
		} else {
			fmt.Printf("Remote:    %s %s\n", cfg.RemoteURL, probeRemote())
		}

		fmt.Printf("\n%s\n", ui.RenderHeader("Sync queue"))
		fmt.Printf("Pending:   %d\n", stats.Pending)
		fmt.Printf("Syncing:   %d\n", stats.Syncing)
		fmt.Printf("Failed:    %d\n", stats.Failed)
		fmt.Printf("Synced:    %d\n", stats.Synced)

		if lastPull.IsZero() {
			fmt.Printf("\nLast pull: %s\n\n", ui.RenderDim("never"))
		} else {
			fmt.Printf("\nLast pull: %s\n\n", lastPull.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// probeRemote pings the configured remote once with a short timeout.
func probeRemote() string {
	client := remote.New(cfg.RemoteURL, remote.StaticToken(cfg.AuthToken))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return ui.RenderWarn("(offline)")
	}
	return ui.RenderPass("(online)")
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
