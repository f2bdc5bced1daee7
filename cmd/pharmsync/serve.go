package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/server"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/ui"
)

var serveAddr string
var serveDBPath string
var serveToken string

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run a self-hosted remote store",
	Long: `Run the remote store REST API that pharmsync clients sync against.

The server keeps its own SQLite database, separate from any client's
local database. Point clients at it with remote_url in their config.

Example:
  pharmsync serve --addr :8080 --db ./remote.db --token s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(serveDBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.InitSchema(); err != nil {
			return err
		}

		srv := server.New(db, &server.Config{AuthToken: serveToken})
		fmt.Printf("%s Remote store on %s (db: %s)\n",
			ui.RenderAccent("▸"), serveAddr, serveDBPath)
		if serveToken == "" {
			fmt.Printf("%s No auth token configured; API is open\n", ui.RenderWarn("!"))
		}
		return srv.Run(serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "remote.db", "server database file")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "bearer token required from clients")
	rootCmd.AddCommand(serveCmd)
}
