package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/ui"
)

// seedFile is the TOML catalog layout accepted by import.
type seedFile struct {
	Products []seedProduct `toml:"products"`
}

type seedProduct struct {
	Name                 string  `toml:"name"`
	GenericName          string  `toml:"generic_name"`
	Category             string  `toml:"category"`
	Barcode              string  `toml:"barcode"`
	Price                float64 `toml:"price"`
	RequiresPrescription bool    `toml:"requires_prescription"`
	Manufacturer         string  `toml:"manufacturer"`
	InitialStock         int     `toml:"initial_stock"`
	ReorderPoint         int     `toml:"reorder_point"`
}

var importCmd = &cobra.Command{
	Use:     "import <catalog.toml>",
	GroupID: "admin",
	Short:   "Import a product catalog from a TOML seed file",
	Long: `Import products (and optional starting stock) from a TOML file.

Seed file format:

  [[products]]
  name = "Paracetamol 500mg"
  generic_name = "paracetamol"
  category = "analgesic"
  price = 4.50
  initial_stock = 200
  reorder_point = 50

Each product is written locally and queued for upload like any other
write; a rejected product aborts the import at that entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var seed seedFile
		if _, err := toml.DecodeFile(args[0], &seed); err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		if len(seed.Products) == 0 {
			return fmt.Errorf("seed file has no products")
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		_, facade, err := buildEngine(db, quietLogger())
		if err != nil {
			return err
		}

		ctx := context.Background()
		for i, sp := range seed.Products {
			product := &schema.Product{
				Name:                 sp.Name,
				GenericName:          sp.GenericName,
				Category:             sp.Category,
				Barcode:              sp.Barcode,
				Price:                sp.Price,
				RequiresPrescription: sp.RequiresPrescription,
				Manufacturer:         sp.Manufacturer,
			}
			id, err := facade.Create(ctx, product)
			if err != nil {
				return fmt.Errorf("product %d (%s): %w", i+1, sp.Name, err)
			}

			if sp.InitialStock > 0 {
				item, err := facade.AdjustStock(ctx, id, schema.MovementIn, sp.InitialStock, "seed import")
				if err != nil {
					return fmt.Errorf("product %d (%s) stock: %w", i+1, sp.Name, err)
				}
				if sp.ReorderPoint > 0 {
					item.ReorderPoint = sp.ReorderPoint
					if err := facade.Update(ctx, item); err != nil {
						return fmt.Errorf("product %d (%s) reorder point: %w", i+1, sp.Name, err)
					}
				}
			}
		}

		fmt.Printf("%s Imported %d product(s) from %s\n",
			ui.RenderPass("✓"), len(seed.Products), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
