// Package importer bulk-loads opening stock from a CSV file. Each row feeds
// the normal movement path, so every validation and invariant applies to
// imported rows exactly as to hand-entered ones.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/inventory"
	"github.com/greybooks/greybooks/internal/model"
)

// Row is one parsed line of an opening-stock CSV.
type Row struct {
	ItemName string
	Quantity decimal.Decimal
	Kind     model.MovementKind
}

const (
	numFields = 3
	colItem   = 0
	colQty    = 1
	colKind   = 2
)

// Header is the expected CSV header for opening-stock files.
const Header = "item_name,quantity,kind"

// Parse reads an opening-stock CSV.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading stock CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	qty, err := decimal.NewFromString(rec[colQty])
	if err != nil {
		return Row{}, fmt.Errorf("parsing quantity %q: %w", rec[colQty], err)
	}

	kind := model.MovementKind(rec[colKind])
	if rec[colKind] == "" {
		kind = model.MovementInbound
	}
	if !kind.Valid() {
		return Row{}, fmt.Errorf("unknown movement kind %q", rec[colKind])
	}

	return Row{ItemName: rec[colItem], Quantity: qty, Kind: kind}, nil
}

// Result summarizes one import run.
type Result struct {
	Applied int
	Failed  []error
}

// ItemResolver maps an item name to its item. The inventory engine satisfies
// this through its store.
type ItemResolver interface {
	GetItemByName(ctx context.Context, name string) (model.InventoryItem, error)
}

// Apply records one movement per row through the engine. Rows fail
// individually; a bad row never blocks the rest of the file.
func Apply(ctx context.Context, rows []Row, resolver ItemResolver, engine *inventory.Engine) Result {
	var res Result
	for i, row := range rows {
		item, err := resolver.GetItemByName(ctx, row.ItemName)
		if err != nil {
			res.Failed = append(res.Failed, fmt.Errorf("row %d: item %q: %w", i+1, row.ItemName, err))
			continue
		}
		_, err = engine.RecordMovement(ctx, inventory.MovementParams{
			ItemID: item.ID,
			Delta:  row.Quantity,
			Kind:   row.Kind,
		})
		if err != nil {
			res.Failed = append(res.Failed, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		res.Applied++
	}
	return res
}

// ImportFile parses and applies an opening-stock CSV from disk.
func ImportFile(ctx context.Context, path string, resolver ItemResolver, engine *inventory.Engine) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, rows, resolver, engine), nil
}
