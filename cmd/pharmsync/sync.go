package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/syncer"
	"github.com/openpharm/pharmsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Upload queued changes now",
	Long: `Run one sync pass immediately instead of waiting for the daemon's
next tick.

Fails fast if the remote store is unreachable; queued changes stay in
the queue and upload automatically once connectivity returns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		_, facade, err := buildEngine(db, quietLogger())
		if err != nil {
			return err
		}

		result, err := facade.ForceSync(context.Background())
		if errors.Is(err, syncer.ErrOffline) {
			pending, countErr := facade.PendingSyncCount(context.Background())
			if countErr == nil {
				fmt.Printf("%s Remote store unreachable; %d change(s) remain queued\n",
					ui.RenderWarn("!"), pending)
			}
			return err
		}
		if err != nil {
			return err
		}

		if result.Attempted == 0 {
			fmt.Printf("%s Nothing to sync\n", ui.RenderPass("✓"))
			return nil
		}
		if result.Failed > 0 {
			fmt.Printf("%s Synced %d of %d change(s); %d failed and will be retried\n",
				ui.RenderWarn("!"), result.Applied, result.Attempted, result.Failed)
			return nil
		}
		fmt.Printf("%s Synced %d change(s)\n", ui.RenderPass("✓"), result.Applied)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
