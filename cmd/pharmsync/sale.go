package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/pharmacy"
	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/ui"
)

var saleCmd = &cobra.Command{
	Use:     "sale",
	GroupID: "catalog",
	Short:   "Record and inspect sales",
}

var saleRecordFlags struct {
	items   []string
	payment string
	cashier string
}

var saleRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a sale at the counter",
	Long: `Record a sale. Stock for every line is checked before anything is
written; on success line items are written and stock moves out.

Each --item is product-id:quantity. The total is computed from catalog
prices.

Example:
  pharmsync sale record --item 3f2a...:2 --item 9c1b...:1 --payment cash --cashier "A. Mensah"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(saleRecordFlags.items) == 0 {
			return fmt.Errorf("at least one --item is required")
		}

		var lines []pharmacy.SaleLine
		for _, raw := range saleRecordFlags.items {
			idx := strings.LastIndex(raw, ":")
			if idx <= 0 || idx == len(raw)-1 {
				return fmt.Errorf("malformed --item %q, want product-id:quantity", raw)
			}
			qty, err := strconv.Atoi(raw[idx+1:])
			if err != nil || qty <= 0 {
				return fmt.Errorf("malformed quantity in --item %q", raw)
			}
			lines = append(lines, pharmacy.SaleLine{ProductID: raw[:idx], Quantity: qty})
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

		sale, err := facade.RecordSale(context.Background(), &schema.Sale{
			PaymentMethod: saleRecordFlags.payment,
			CashierName:   saleRecordFlags.cashier,
		}, lines)
		if errors.Is(err, pharmacy.ErrInsufficientStock) {
			return fmt.Errorf("sale refused: %w", err)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s Sale %s recorded, total %.2f (%s)\n",
			ui.RenderPass("✓"), ui.RenderAccent(sale.ID), sale.Total, sale.PaymentMethod)
		return nil
	},
}

var saleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sales, newest first",
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

		records, err := facade.List(context.Background(), schema.TableSales)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No sales recorded")
			return nil
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Sales (%d)", len(records))))
		for _, rec := range records {
			s := rec.(*schema.Sale)
			cashier := s.CashierName
			if cashier == "" {
				cashier = "-"
			}
			fmt.Printf("%s  %s  %8.2f  %-6s %s\n",
				ui.RenderDim(s.ID), s.SoldAt.Local().Format("2006-01-02 15:04"),
				s.Total, s.PaymentMethod, cashier)
		}
		fmt.Println()
		return nil
	},
}

var saleShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a sale with its line items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		rec, err := db.GetRecord(ctx, schema.TableSales, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no sale with id %s", args[0])
		}
		if err != nil {
			return err
		}
		sale := rec.(*schema.Sale)

		items, err := db.ItemsForSale(ctx, sale.ID)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Sale %s", sale.ID)))
		fmt.Printf("Sold:     %s\n", sale.SoldAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Payment:  %s\n", sale.PaymentMethod)
		if sale.CashierName != "" {
			fmt.Printf("Cashier:  %s\n", sale.CashierName)
		}
		fmt.Println()
		for _, item := range items {
			fmt.Printf("  %s  x%-4d @ %8.2f  = %8.2f\n",
				ui.RenderAccent(item.ProductID), item.Quantity, item.UnitPrice, item.Subtotal)
		}
		fmt.Printf("\nTotal: %.2f\n\n", sale.Total)
		return nil
	},
}

func init() {
	saleRecordCmd.Flags().StringArrayVar(&saleRecordFlags.items, "item", nil, "line item as product-id:quantity (repeatable)")
	saleRecordCmd.Flags().StringVar(&saleRecordFlags.payment, "payment", schema.PaymentCash, "payment method: cash, card, mobile")
	saleRecordCmd.Flags().StringVar(&saleRecordFlags.cashier, "cashier", "", "cashier name")

	saleCmd.AddCommand(saleRecordCmd)
	saleCmd.AddCommand(saleListCmd)
	saleCmd.AddCommand(saleShowCmd)
	rootCmd.AddCommand(saleCmd)
}
