package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/ui"
)

var productCmd = &cobra.Command{
	Use:     "product",
	GroupID: "catalog",
	Short:   "Manage the product catalog",
}

var productAddFlags struct {
	name         string
	generic      string
	category     string
	barcode      string
	price        float64
	rx           bool
	manufacturer string
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product to the catalog",
	Long: `Add a product. The write completes locally and is queued for upload.

Example:
  pharmsync product add --name "Paracetamol 500mg" --price 4.50 --category analgesic`,
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

		product := &schema.Product{
			Name:                 productAddFlags.name,
			GenericName:          productAddFlags.generic,
			Category:             productAddFlags.category,
			Barcode:              productAddFlags.barcode,
			Price:                productAddFlags.price,
			RequiresPrescription: productAddFlags.rx,
			Manufacturer:         productAddFlags.manufacturer,
		}

		id, err := facade.Create(context.Background(), product)
		if err != nil {
			return err
		}
		fmt.Printf("%s Added %s (%s)\n", ui.RenderPass("✓"), product.Name, ui.RenderAccent(id))
		return nil
	},
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog products",
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

		records, err := facade.List(context.Background(), schema.TableProducts)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No products in catalog")
			return nil
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Products (%d)", len(records))))
		for _, rec := range records {
			p := rec.(*schema.Product)
			rx := ""
			if p.RequiresPrescription {
				rx = " " + ui.RenderWarn("[Rx]")
			}
			fmt.Printf("%s  %-30s %8.2f%s\n", ui.RenderDim(p.ID), p.Name, p.Price, rx)
		}
		fmt.Println()
		return nil
	},
}

var productShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one product",
	Args:  cobra.ExactArgs(1),
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

		rec, err := facade.Get(context.Background(), schema.TableProducts, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no product with id %s", args[0])
		}
		if err != nil {
			return err
		}
		printProduct(rec.(*schema.Product))
		return nil
	},
}

var productFindCmd = &cobra.Command{
	Use:   "find <barcode>",
	Short: "Find a product by barcode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		product, err := db.FindProductByBarcode(context.Background(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no product with barcode %s", args[0])
		}
		if err != nil {
			return err
		}
		printProduct(product)
		return nil
	},
}

func printProduct(p *schema.Product) {
	fmt.Printf("\n%s\n\n", ui.RenderHeader(p.Name))
	fmt.Printf("ID:            %s\n", p.ID)
	if p.GenericName != "" {
		fmt.Printf("Generic:       %s\n", p.GenericName)
	}
	if p.Category != "" {
		fmt.Printf("Category:      %s\n", p.Category)
	}
	if p.Barcode != "" {
		fmt.Printf("Barcode:       %s\n", p.Barcode)
	}
	fmt.Printf("Price:         %.2f\n", p.Price)
	fmt.Printf("Prescription:  %v\n", p.RequiresPrescription)
	if p.Manufacturer != "" {
		fmt.Printf("Manufacturer:  %s\n", p.Manufacturer)
	}
	fmt.Printf("Updated:       %s\n\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
}

func init() {
	productAddCmd.Flags().StringVar(&productAddFlags.name, "name", "", "product name (required)")
	productAddCmd.Flags().StringVar(&productAddFlags.generic, "generic", "", "generic name")
	productAddCmd.Flags().StringVar(&productAddFlags.category, "category", "", "category")
	productAddCmd.Flags().StringVar(&productAddFlags.barcode, "barcode", "", "barcode")
	productAddCmd.Flags().Float64Var(&productAddFlags.price, "price", 0, "unit price (required)")
	productAddCmd.Flags().BoolVar(&productAddFlags.rx, "rx", false, "requires prescription")
	productAddCmd.Flags().StringVar(&productAddFlags.manufacturer, "manufacturer", "", "manufacturer")
	_ = productAddCmd.MarkFlagRequired("name")

	productCmd.AddCommand(productAddCmd)
	productCmd.AddCommand(productListCmd)
	productCmd.AddCommand(productShowCmd)
	productCmd.AddCommand(productFindCmd)
	rootCmd.AddCommand(productCmd)
}
