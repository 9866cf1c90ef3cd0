package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/id"
	"github.com/greybooks/greybooks/internal/model"
)

const dateFormat = "2006-01-02"

// AccountHeader is the CSV header for chart-of-accounts.csv.
const AccountHeader = "account_id,account_name,account_type,description,created_at"

const (
	acctNumFields = 5
	acctColID     = 0
	acctColName   = 1
	acctColType   = 2
	acctColDesc   = 3
	acctColCreate = 4
)

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(a model.Account) []string {
	row := make([]string, acctNumFields)
	row[acctColID] = strconv.Itoa(a.ID)
	row[acctColName] = a.Name
	row[acctColType] = string(a.Type)
	row[acctColDesc] = a.Description
	row[acctColCreate] = a.CreatedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(rec []string) (model.Account, error) {
	if len(rec) != acctNumFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", acctNumFields, len(rec))
	}

	accountID, err := strconv.Atoi(rec[acctColID])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing account_id %q: %w", rec[acctColID], err)
	}

	created, err := time.Parse(time.RFC3339, rec[acctColCreate])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing created_at %q: %w", rec[acctColCreate], err)
	}

	return model.Account{
		ID:          accountID,
		Name:        rec[acctColName],
		Type:        model.AccountType(rec[acctColType]),
		Description: rec[acctColDesc],
		CreatedAt:   created,
	}, nil
}

// LineHeader is the CSV header for journal.csv. Entry-level fields repeat on
// every line row; entries are reconstructed by grouping line IDs.
const LineHeader = "line_id,date,account_id,description,debit,credit,reverses,posted_at"

const (
	lineNumFields = 8
	lineColID     = 0
	lineColDate   = 1
	lineColAcct   = 2
	lineColDesc   = 3
	lineColDebit  = 4
	lineColCredit = 5
	lineColRev    = 6
	lineColPosted = 7
)

// lineRow is one journal.csv row: a ledger line plus its entry's fields.
type lineRow struct {
	Line        model.LedgerLine
	Date        time.Time
	Description string
	Reverses    string
	PostedAt    time.Time
}

// MarshalEntry converts a JournalEntry to one CSV row per line.
func MarshalEntry(e model.JournalEntry) [][]string {
	rows := make([][]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		row := make([]string, lineNumFields)
		row[lineColID] = l.LineID
		row[lineColDate] = e.Date.Format(dateFormat)
		row[lineColAcct] = strconv.Itoa(l.AccountID)
		row[lineColDesc] = e.Description
		if !l.Debit.IsZero() {
			row[lineColDebit] = l.Debit.StringFixed(2)
		}
		if !l.Credit.IsZero() {
			row[lineColCredit] = l.Credit.StringFixed(2)
		}
		row[lineColRev] = e.Reverses
		row[lineColPosted] = e.PostedAt.UTC().Format(time.RFC3339)
		rows = append(rows, row)
	}
	return rows
}

func unmarshalLineRow(rec []string) (lineRow, error) {
	if len(rec) != lineNumFields {
		return lineRow{}, fmt.Errorf("expected %d fields, got %d", lineNumFields, len(rec))
	}

	date, err := time.Parse(dateFormat, rec[lineColDate])
	if err != nil {
		return lineRow{}, fmt.Errorf("parsing date %q: %w", rec[lineColDate], err)
	}

	accountID, err := strconv.Atoi(rec[lineColAcct])
	if err != nil {
		return lineRow{}, fmt.Errorf("parsing account_id %q: %w", rec[lineColAcct], err)
	}

	debit, err := parseAmount(rec[lineColDebit])
	if err != nil {
		return lineRow{}, fmt.Errorf("parsing debit %q: %w", rec[lineColDebit], err)
	}

	credit, err := parseAmount(rec[lineColCredit])
	if err != nil {
		return lineRow{}, fmt.Errorf("parsing credit %q: %w", rec[lineColCredit], err)
	}

	posted, err := time.Parse(time.RFC3339, rec[lineColPosted])
	if err != nil {
		return lineRow{}, fmt.Errorf("parsing posted_at %q: %w", rec[lineColPosted], err)
	}

	return lineRow{
		Line: model.LedgerLine{
			LineID:    rec[lineColID],
			EntryID:   id.EntryGroup(rec[lineColID]),
			AccountID: accountID,
			Debit:     debit,
			Credit:    credit,
		},
		Date:        date,
		Description: rec[lineColDesc],
		Reverses:    rec[lineColRev],
		PostedAt:    posted,
	}, nil
}

// readEntries reads journal.csv rows and groups them back into entries,
// preserving file order.
func readEntries(r io.Reader) ([]model.JournalEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = lineNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	byID := make(map[string]*model.JournalEntry)
	var order []string
	for i, rec := range records[1:] {
		row, err := unmarshalLineRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entryID := row.Line.EntryID
		e, ok := byID[entryID]
		if !ok {
			e = &model.JournalEntry{
				ID:          entryID,
				Date:        row.Date,
				Description: row.Description,
				Reverses:    row.Reverses,
				PostedAt:    row.PostedAt,
			}
			byID[entryID] = e
			order = append(order, entryID)
		}
		e.Lines = append(e.Lines, row.Line)
	}

	entries := make([]model.JournalEntry, 0, len(order))
	for _, entryID := range order {
		entries = append(entries, *byID[entryID])
	}
	return entries, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ItemHeader is the CSV header for items.csv.
const ItemHeader = "item_id,name,category,unit,unit_price,quantity,reorder_threshold,created_at"

const (
	itemNumFields = 8
	itemColID     = 0
	itemColName   = 1
	itemColCat    = 2
	itemColUnit   = 3
	itemColPrice  = 4
	itemColQty    = 5
	itemColReord  = 6
	itemColCreate = 7
)

// MarshalItem converts an InventoryItem to a CSV row.
func MarshalItem(it model.InventoryItem) []string {
	row := make([]string, itemNumFields)
	row[itemColID] = strconv.Itoa(it.ID)
	row[itemColName] = it.Name
	row[itemColCat] = it.Category
	row[itemColUnit] = it.Unit
	row[itemColPrice] = it.UnitPrice.StringFixed(2)
	row[itemColQty] = it.Quantity.String()
	row[itemColReord] = it.ReorderThreshold.String()
	row[itemColCreate] = it.CreatedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalItem converts a CSV row to an InventoryItem.
func UnmarshalItem(rec []string) (model.InventoryItem, error) {
	if len(rec) != itemNumFields {
		return model.InventoryItem{}, fmt.Errorf("expected %d fields, got %d", itemNumFields, len(rec))
	}

	itemID, err := strconv.Atoi(rec[itemColID])
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("parsing item_id %q: %w", rec[itemColID], err)
	}

	price, err := parseAmount(rec[itemColPrice])
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("parsing unit_price %q: %w", rec[itemColPrice], err)
	}

	qty, err := parseAmount(rec[itemColQty])
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("parsing quantity %q: %w", rec[itemColQty], err)
	}

	reorder, err := parseAmount(rec[itemColReord])
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("parsing reorder_threshold %q: %w", rec[itemColReord], err)
	}

	created, err := time.Parse(time.RFC3339, rec[itemColCreate])
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("parsing created_at %q: %w", rec[itemColCreate], err)
	}

	return model.InventoryItem{
		ID:               itemID,
		Name:             rec[itemColName],
		Category:         rec[itemColCat],
		Unit:             rec[itemColUnit],
		UnitPrice:        price,
		Quantity:         qty,
		ReorderThreshold: reorder,
		CreatedAt:        created,
	}, nil
}

// MovementHeader is the CSV header for movements.csv.
const MovementHeader = "movement_id,item_id,delta,kind,entry_id,occurred_at"

const (
	movNumFields = 6
	movColID     = 0
	movColItem   = 1
	movColDelta  = 2
	movColKind   = 3
	movColEntry  = 4
	movColTime   = 5
)

// MarshalMovement converts a StockMovement to a CSV row.
func MarshalMovement(m model.StockMovement) []string {
	row := make([]string, movNumFields)
	row[movColID] = m.ID
	row[movColItem] = strconv.Itoa(m.ItemID)
	row[movColDelta] = m.Delta.String()
	row[movColKind] = string(m.Kind)
	row[movColEntry] = m.EntryID
	row[movColTime] = m.OccurredAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalMovement converts a CSV row to a StockMovement.
func UnmarshalMovement(rec []string) (model.StockMovement, error) {
	if len(rec) != movNumFields {
		return model.StockMovement{}, fmt.Errorf("expected %d fields, got %d", movNumFields, len(rec))
	}

	itemID, err := strconv.Atoi(rec[movColItem])
	if err != nil {
		return model.StockMovement{}, fmt.Errorf("parsing item_id %q: %w", rec[movColItem], err)
	}

	delta, err := decimal.NewFromString(rec[movColDelta])
	if err != nil {
		return model.StockMovement{}, fmt.Errorf("parsing delta %q: %w", rec[movColDelta], err)
	}

	occurred, err := time.Parse(time.RFC3339, rec[movColTime])
	if err != nil {
		return model.StockMovement{}, fmt.Errorf("parsing occurred_at %q: %w", rec[movColTime], err)
	}

	return model.StockMovement{
		ID:         rec[movColID],
		ItemID:     itemID,
		Delta:      delta,
		Kind:       model.MovementKind(rec[movColKind]),
		EntryID:    rec[movColEntry],
		OccurredAt: occurred,
	}, nil
}
