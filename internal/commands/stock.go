package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/greybooks/greybooks/internal/importer"
	"github.com/greybooks/greybooks/internal/inventory"
	"github.com/greybooks/greybooks/internal/model"
)

func newStockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Manage inventory items and stock movements",
	}
	cmd.AddCommand(newStockAddItemCommand())
	cmd.AddCommand(newStockMoveCommand())
	cmd.AddCommand(newStockAdjustCommand())
	cmd.AddCommand(newStockListCommand())
	cmd.AddCommand(newStockMovementsCommand())
	cmd.AddCommand(newStockImportCommand())
	return cmd
}

func newStockAddItemCommand() *cobra.Command {
	var name, category, unit, price, quantity, threshold string

	cmd := &cobra.Command{
		Use:   "add-item",
		Short: "Create an inventory item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			unitPrice, err := parseDecimal("price", price)
			if err != nil {
				return err
			}
			initialQty, err := parseDecimal("quantity", quantity)
			if err != nil {
				return err
			}
			reorder, err := parseDecimal("reorder-at", threshold)
			if err != nil {
				return err
			}

			item, err := e.inventory.CreateItem(cmd.Context(), inventory.CreateItemParams{
				Name:             name,
				Category:         category,
				Unit:             unit,
				UnitPrice:        unitPrice,
				InitialQuantity:  initialQty,
				ReorderThreshold: reorder,
			})
			if err != nil {
				return err
			}
			e.record("stock add-item", item.Name, fmt.Sprint(item.ID))
			fmt.Printf("Created item %d %q (on hand %s)\n", item.ID, item.Name, item.Quantity)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "item name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&category, "category", "", "item category")
	cmd.Flags().StringVar(&unit, "unit", "ea", "unit of measure")
	cmd.Flags().StringVar(&price, "price", "0", "unit price")
	cmd.Flags().StringVar(&quantity, "quantity", "0", "initial quantity")
	cmd.Flags().StringVar(&threshold, "reorder-at", "0", "reorder threshold")

	return cmd
}

func newStockMoveCommand() *cobra.Command {
	var itemID int
	var delta, kind, entryID, token string

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Record a stock movement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			d, err := parseDecimal("delta", delta)
			if err != nil {
				return err
			}

			m, err := e.inventory.RecordMovement(cmd.Context(), inventory.MovementParams{
				ItemID:           itemID,
				Delta:            d,
				Kind:             model.MovementKind(kind),
				EntryID:          entryID,
				IdempotencyToken: token,
			})
			if err != nil {
				return err
			}
			e.record("stock move", fmt.Sprintf("item %d %s %s", itemID, kind, delta), m.ID)
			fmt.Printf("Recorded %s movement of %s for item %d\n", m.Kind, m.Delta, m.ItemID)
			return nil
		},
	}

	cmd.Flags().IntVar(&itemID, "item", 0, "item ID (required)")
	_ = cmd.MarkFlagRequired("item")
	cmd.Flags().StringVar(&delta, "delta", "", "signed quantity change (required)")
	_ = cmd.MarkFlagRequired("delta")
	cmd.Flags().StringVar(&kind, "kind", "", "inbound|outbound|adjustment (required)")
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().StringVar(&entryID, "entry", "", "journal entry correlation")
	cmd.Flags().StringVar(&token, "token", "", "idempotency token")

	return cmd
}

func newStockAdjustCommand() *cobra.Command {
	var itemID int
	var delta, token string

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Adjust an item's quantity without a business document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			d, err := parseDecimal("delta", delta)
			if err != nil {
				return err
			}

			m, err := e.inventory.AdjustQuantity(cmd.Context(), itemID, d, token)
			if err != nil {
				return err
			}
			e.record("stock adjust", fmt.Sprintf("item %d %s", itemID, delta), m.ID)
			fmt.Printf("Adjusted item %d by %s\n", itemID, m.Delta)
			return nil
		},
	}

	cmd.Flags().IntVar(&itemID, "item", 0, "item ID (required)")
	_ = cmd.MarkFlagRequired("item")
	cmd.Flags().StringVar(&delta, "delta", "", "signed quantity change (required)")
	_ = cmd.MarkFlagRequired("delta")
	cmd.Flags().StringVar(&token, "token", "", "idempotency token")

	return cmd
}

func newStockListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List inventory items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			items, err := e.inventory.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			for _, it := range items {
				flag := ""
				if it.Quantity.LessThanOrEqual(it.ReorderThreshold) {
					flag = "\tREORDER"
				}
				fmt.Printf("%d\t%-20s\t%s %s%s\n", it.ID, it.Name, it.Quantity, it.Unit, flag)
			}
			return nil
		},
	}
}

func newStockMovementsCommand() *cobra.Command {
	var itemID int
	var from, to string

	cmd := &cobra.Command{
		Use:   "movements",
		Short: "List movements for an item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			fromT, toT, err := parseRange(from, to)
			if err != nil {
				return err
			}

			movements, err := e.inventory.ListMovements(cmd.Context(), itemID, fromT, toT)
			if err != nil {
				return err
			}
			for _, m := range movements {
				fmt.Printf("%s\t%-10s\t%s\t%s\n", m.OccurredAt.Format(time.RFC3339), m.Kind, m.Delta, m.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&itemID, "item", 0, "item ID (required)")
	_ = cmd.MarkFlagRequired("item")
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")

	return cmd
}

func newStockImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk-load opening stock from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := importer.ImportFile(cmd.Context(), args[0], e.store, e.inventory)
			if err != nil {
				return err
			}
			e.record("stock import", args[0], fmt.Sprintf("%d applied", res.Applied))
			fmt.Printf("Imported %d movements (%d failed)\n", res.Applied, len(res.Failed))
			for _, ferr := range res.Failed {
				fmt.Printf("  %v\n", ferr)
			}
			return nil
		},
	}
	return cmd
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	var fromT, toT time.Time
	var err error
	if from != "" {
		fromT, err = time.Parse(dateFormat, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --from %q: %w", from, err)
		}
	}
	if to != "" {
		toT, err = time.Parse(dateFormat, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --to %q: %w", to, err)
		}
	}
	return fromT, toT, nil
}
