package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/openpharm/pharmsync/internal/dashboard"
	"github.com/openpharm/pharmsync/internal/intake"
	"github.com/openpharm/pharmsync/internal/pharmacy"
	"github.com/openpharm/pharmsync/internal/remote"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/syncer"
	"github.com/openpharm/pharmsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon (foreground)",
	Long: `Run the sync daemon: probe connectivity, upload queued changes,
pull remote updates.

Optional extras, enabled through configuration:
  - intake_dir:     watch a drop directory for supplier delivery files
  - dashboard_port: serve a WebSocket feed of sync activity
  - log_file:       route daemon logs to a rotated file
  - retention:      purge synced queue entries older than this age

The daemon runs in the foreground; use a process manager for
production. Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr, "[pharmsync] ", log.LstdFlags)
		if cfg.LogFile != "" {
			logger = log.New(&lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 5,
				MaxAge:     30, // days
				Compress:   true,
			}, "[pharmsync] ", log.LstdFlags)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		var dash *dashboard.Server
		syncCfg := &syncer.Config{
			PollInterval:  cfg.PollInterval,
			ProbeInterval: cfg.ProbeInterval,
			BatchSize:     cfg.BatchSize,
			PullEnabled:   cfg.PullEnabled,
			Retention:     cfg.Retention,
			Logger:        logger,
		}

		if cfg.DashboardPort > 0 {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: logger,
			})
			if err := dash.Start(); err != nil {
				return err
			}
			defer dash.Stop()
			syncCfg.OnEvent = dash.PublishEvent
			fmt.Printf("%s Dashboard on ws://localhost:%d/ws\n",
				ui.RenderAccent("▸"), cfg.DashboardPort)
		}

		client := remote.New(cfg.RemoteURL, remote.StaticToken(cfg.AuthToken))
		coord, err := syncer.New(db, client, syncCfg)
		if err != nil {
			return err
		}

		if cfg.IntakeDir != "" {
			facade := pharmacy.New(db, coord, logger)
			watcher, err := intake.New(facade, &intake.Config{
				Dir:    cfg.IntakeDir,
				Logger: logger,
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()
			fmt.Printf("%s Watching %s for deliveries\n", ui.RenderAccent("▸"), cfg.IntakeDir)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigs
			fmt.Println("\nShutting down...")
			cancel()
		}()

		if dash != nil {
			go publishStatusLoop(ctx, dash, coord, db)
		}

		fmt.Printf("%s Sync daemon started (remote: %s)\n",
			ui.RenderAccent("▸"), remoteLabel())
		fmt.Println("Press Ctrl+C to stop")

		return coord.Start(ctx)
	},
}

// publishStatusLoop pushes a status snapshot to the dashboard every few
// seconds so clients don't have to derive state from individual events.
func publishStatusLoop(ctx context.Context, dash *dashboard.Server, coord *syncer.Coordinator, db *store.DB) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := db.PendingCount(ctx)
			if err != nil {
				continue
			}
			dash.PublishStatus(coord.Status(), pending)
		}
	}
}

func remoteLabel() string {
	if cfg.RemoteURL == "" {
		return "none, offline only"
	}
	return cfg.RemoteURL
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
