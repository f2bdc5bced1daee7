package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openpharm/pharmsync/internal/config"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "admin",
	Short:   "Interactively create a pharmsync configuration",
	Long: `Walk through initial setup and write pharmsync.yaml.

Asks for the local database location, the remote store URL and token,
and the sync intervals, then creates the local database so the first
command doesn't pay schema-creation cost.

Example:
  pharmsync init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.DefaultDBPath()
		remoteURL := ""
		authToken := ""
		pollSecs := "30"
		pullEnabled := true

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Local database path").
					Description("SQLite file holding all pharmacy data").
					Value(&dbPath),
				huh.NewInput().
					Title("Remote store URL").
					Description("Leave empty to run fully offline").
					Placeholder("https://sync.example.com").
					Value(&remoteURL),
				huh.NewInput().
					Title("Remote auth token").
					Description("Bearer token for the remote store").
					EchoMode(huh.EchoModePassword).
					Value(&authToken),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("Sync interval (seconds)").
					Description("How often queued changes are uploaded").
					Value(&pollSecs).
					Validate(func(s string) error {
						n, err := strconv.Atoi(s)
						if err != nil || n <= 0 {
							return fmt.Errorf("enter a positive number of seconds")
						}
						return nil
					}),
				huh.NewConfirm().
					Title("Pull remote changes?").
					Description("Download updates made at other branches").
					Value(&pullEnabled),
			),
		)

		if err := form.Run(); err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}

		secs, _ := strconv.Atoi(pollSecs)
		fileCfg := map[string]interface{}{
			"db_path":       dbPath,
			"remote_url":    remoteURL,
			"auth_token":    authToken,
			"poll_interval": (time.Duration(secs) * time.Second).String(),
			"pull_enabled":  pullEnabled,
		}

		out, err := yaml.Marshal(fileCfg)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		if err := os.WriteFile(config.File, out, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", config.File, err)
		}

		db, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()
		if err := db.InitSchema(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), config.File)
		fmt.Printf("%s Created database at %s\n", ui.RenderPass("✓"), dbPath)
		if remoteURL == "" {
			fmt.Printf("%s No remote configured; running fully offline\n", ui.RenderWarn("!"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
