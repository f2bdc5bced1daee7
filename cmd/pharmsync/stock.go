package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openpharm/pharmsync/internal/pharmacy"
	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/ui"
)

var stockCmd = &cobra.Command{
	Use:     "stock",
	GroupID: "catalog",
	Short:   "Manage inventory levels",
}

var stockAdjustFlags struct {
	movementType string
	quantity     int
	reason       string
}

var stockAdjustCmd = &cobra.Command{
	Use:   "adjust <product-id>",
	Short: "Change a product's on-hand quantity",
	Long: `Change stock through the movement log.

Movement types:
  in          add received units
  out         remove units (fails if not enough on hand)
  adjustment  set the absolute count after a physical recount

Examples:
  pharmsync stock adjust 3f2a... --type in --quantity 150 --reason "initial stock"
  pharmsync stock adjust 3f2a... --type adjustment --quantity 142 --reason "shelf count"`,
	Args: cobra.ExactArgs(1),
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

		item, err := facade.AdjustStock(context.Background(), args[0],
			stockAdjustFlags.movementType, stockAdjustFlags.quantity, stockAdjustFlags.reason)
		if errors.Is(err, pharmacy.ErrInsufficientStock) {
			return fmt.Errorf("not enough stock: %w", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s Stock for %s now %d\n",
			ui.RenderPass("✓"), ui.RenderAccent(args[0]), item.Quantity)
		return nil
	},
}

var stockLowCmd = &cobra.Command{
	Use:   "low",
	Short: "List items at or below their reorder point",
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

		items, err := facade.LowStock(context.Background())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Printf("%s No items below reorder point\n", ui.RenderPass("✓"))
			return nil
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Low stock (%d)", len(items))))
		for _, item := range items {
			fmt.Printf("%s  qty %d (reorder at %d)\n",
				ui.RenderAccent(item.ProductID), item.Quantity, item.ReorderPoint)
		}
		fmt.Println()
		return nil
	},
}

var stockExpiringDays int

var stockExpiringCmd = &cobra.Command{
	Use:   "expiring",
	Short: "List batches expiring soon",
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

		window := time.Duration(stockExpiringDays) * 24 * time.Hour
		items, err := facade.Expiring(context.Background(), window)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Printf("%s Nothing expiring within %d days\n", ui.RenderPass("✓"), stockExpiringDays)
			return nil
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Expiring within %d days (%d)", stockExpiringDays, len(items))))
		for _, item := range items {
			expiry := "unknown"
			if item.ExpiryDate != nil {
				expiry = item.ExpiryDate.Format("2006-01-02")
			}
			batch := item.BatchNumber
			if batch == "" {
				batch = "-"
			}
			fmt.Printf("%s  batch %-12s expires %s  qty %d\n",
				ui.RenderAccent(item.ProductID), batch, ui.RenderWarn(expiry), item.Quantity)
		}
		fmt.Println()
		return nil
	},
}

var stockMovementsLimit int

var stockMovementsCmd = &cobra.Command{
	Use:   "movements <product-id>",
	Short: "Show a product's stock movement history",
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

		movements, err := facade.Movements(context.Background(), args[0], stockMovementsLimit)
		if err != nil {
			return err
		}
		if len(movements) == 0 {
			fmt.Println("No movements recorded")
			return nil
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Stock movements"))
		for _, m := range movements {
			sign := "+"
			if m.Type == schema.MovementOut {
				sign = "-"
			}
			reason := m.Reason
			if reason == "" {
				reason = "-"
			}
			fmt.Printf("%s  %-10s %s%-5d %s\n",
				m.Timestamp.Local().Format("2006-01-02 15:04"),
				m.Type, sign, m.Quantity, ui.RenderDim(reason))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	stockAdjustCmd.Flags().StringVar(&stockAdjustFlags.movementType, "type", schema.MovementIn, "movement type: in, out, adjustment")
	stockAdjustCmd.Flags().IntVar(&stockAdjustFlags.quantity, "quantity", 0, "units (or absolute count for adjustment)")
	stockAdjustCmd.Flags().StringVar(&stockAdjustFlags.reason, "reason", "", "reason for the change")
	_ = stockAdjustCmd.MarkFlagRequired("quantity")

	stockExpiringCmd.Flags().IntVar(&stockExpiringDays, "days", 90, "look-ahead window in days")
	stockMovementsCmd.Flags().IntVar(&stockMovementsLimit, "limit", 20, "maximum movements to show")

	stockCmd.AddCommand(stockAdjustCmd)
	stockCmd.AddCommand(stockLowCmd)
	stockCmd.AddCommand(stockExpiringCmd)
	stockCmd.AddCommand(stockMovementsCmd)
	rootCmd.AddCommand(stockCmd)
}
