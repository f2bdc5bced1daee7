// pharmsync is an offline-first inventory and point-of-sale tool for
// pharmacies with unreliable connectivity. All reads and writes go to a
// local SQLite database; changes are uploaded to a remote store in the
// background whenever connectivity allows.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/config"
	"github.com/openpharm/pharmsync/internal/pharmacy"
	"github.com/openpharm/pharmsync/internal/remote"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/syncer"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pharmsync",
	Short: "Offline-first pharmacy inventory and point-of-sale",
	Long: `pharmsync keeps a pharmacy running through network outages.

Every operation completes against the local database immediately; a
background sync daemon uploads queued changes and pulls remote updates
whenever the remote store is reachable. The pharmacy never waits on
the network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pharmsync.yaml)")
	rootCmd.AddGroup(
		&cobra.Group{ID: "catalog", Title: "Catalog and stock:"},
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured local database and ensures its schema
// exists. The caller owns the returned handle.
func openStore() (*store.DB, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// buildEngine wires the remote client, sync coordinator and facade over
// an open store. The coordinator is returned unstarted; one-shot
// commands use it only for ForceSync and Status.
func buildEngine(db *store.DB, logger *log.Logger) (*syncer.Coordinator, pharmacy.Facade, error) {
	client := remote.New(cfg.RemoteURL, remote.StaticToken(cfg.AuthToken))

	coord, err := syncer.New(db, client, &syncer.Config{
		PollInterval:  cfg.PollInterval,
		ProbeInterval: cfg.ProbeInterval,
		BatchSize:     cfg.BatchSize,
		PullEnabled:   cfg.PullEnabled,
		Retention:     cfg.Retention,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return coord, pharmacy.New(db, coord, logger), nil
}

// quietLogger returns a logger for one-shot commands where coordinator
// chatter would drown the command output.
func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
