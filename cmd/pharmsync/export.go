package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openpharm/pharmsync/internal/schema"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:     "export [table]",
	GroupID: "admin",
	Short:   "Dump local data as YAML or JSON",
	Long: `Write the local contents of one table (or all tables) to stdout.

Useful for backups and for inspecting exactly what a branch holds while
offline.

Examples:
  pharmsync export products
  pharmsync export --format json > backup.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tables := schema.Tables
		if len(args) == 1 {
			if !schema.KnownTable(args[0]) {
				return fmt.Errorf("unknown table %q (tables: %v)", args[0], schema.Tables)
			}
			tables = []string{args[0]}
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		dump := make(map[string][]schema.Record, len(tables))
		for _, table := range tables {
			records, err := db.ListRecords(ctx, table)
			if err != nil {
				return err
			}
			if records == nil {
				records = []schema.Record{}
			}
			dump[table] = records
		}

		switch exportFormat {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(dump)
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dump)
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(exportCmd)
}
