// Package csvfile provides a durable Store backed by CSV files under a books
// directory:
//
//	accounts/chart-of-accounts.csv
//	YYYY/MM/journal.csv        (append-only)
//	inventory/items.csv
//	inventory/movements.csv    (append-only)
//	logs/idempotency.csv       (append-only)
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/id"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Store is a CSV-file implementation of storage.Store. All methods serialize
// on a single mutex; the engines provide finer-grained per-entity sections on
// top of this.
type Store struct {
	root string
	mu   sync.Mutex
}

// compile-time interface check
var _ storage.Store = (*Store)(nil)

// New creates a Store rooted at a books directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the books directory.
func (s *Store) Root() string { return s.root }

func (s *Store) accountsPath() string {
	return filepath.Join(s.root, "accounts", "chart-of-accounts.csv")
}

func (s *Store) monthPath(year, month int) string {
	return filepath.Join(s.root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "journal.csv")
}

func (s *Store) itemsPath() string {
	return filepath.Join(s.root, "inventory", "items.csv")
}

func (s *Store) movementsPath() string {
	return filepath.Join(s.root, "inventory", "movements.csv")
}

func (s *Store) idempotencyPath() string {
	return filepath.Join(s.root, "logs", "idempotency.csv")
}

func (s *Store) SaveAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	accounts = append(accounts, a)
	return s.writeAccounts(accounts)
}

func (s *Store) UpdateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].ID == a.ID {
			accounts[i] = a
			return s.writeAccounts(accounts)
		}
	}
	return fault.ErrNotFound
}

func (s *Store) GetAccount(_ context.Context, accountID int) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return model.Account{}, err
	}
	for _, a := range accounts {
		if a.ID == accountID {
			return a, nil
		}
	}
	return model.Account{}, fault.ErrNotFound
}

func (s *Store) GetAccountByName(_ context.Context, name string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return model.Account{}, err
	}
	for _, a := range accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Account{}, fault.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAccounts()
}

func (s *Store) SaveEntry(_ context.Context, e model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.monthPath(e.Date.Year(), int(e.Date.Month()))
	return s.appendRows(path, LineHeader, MarshalEntry(e))
}

func (s *Store) GetEntry(_ context.Context, entryID string) (model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	year, month, _, err := id.ParseEntryID(entryID)
	if err != nil {
		return model.JournalEntry{}, fault.ErrNotFound
	}
	entries, err := s.readMonth(year, month)
	if err != nil {
		return model.JournalEntry{}, err
	}
	for _, e := range entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return model.JournalEntry{}, fault.ErrNotFound
}

func (s *Store) ListEntries(_ context.Context) ([]model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllEntries()
}

func (s *Store) FindReversal(_ context.Context, entryID string) (model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAllEntries()
	if err != nil {
		return model.JournalEntry{}, err
	}
	for _, e := range entries {
		if e.Reverses == entryID {
			return e, nil
		}
	}
	return model.JournalEntry{}, fault.ErrNotFound
}

func (s *Store) NextEntrySeq(_ context.Context, year, month int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readMonth(year, month)
	if err != nil {
		return 0, err
	}
	maxSeq := 0
	for _, e := range entries {
		_, _, seq, err := id.ParseEntryID(e.ID)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

func (s *Store) AccountInUse(_ context.Context, accountID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAllEntries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) SaveItem(_ context.Context, it model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readItems()
	if err != nil {
		return err
	}
	replaced := false
	for i := range items {
		if items[i].ID == it.ID {
			items[i] = it
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, it)
	}
	return s.writeItems(items)
}

func (s *Store) GetItem(_ context.Context, itemID int) (model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readItems()
	if err != nil {
		return model.InventoryItem{}, err
	}
	for _, it := range items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return model.InventoryItem{}, fault.ErrNotFound
}

func (s *Store) GetItemByName(_ context.Context, name string) (model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readItems()
	if err != nil {
		return model.InventoryItem{}, err
	}
	for _, it := range items {
		if it.Name == name {
			return it, nil
		}
	}
	return model.InventoryItem{}, fault.ErrNotFound
}

func (s *Store) ListItems(_ context.Context) ([]model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readItems()
}

// ApplyMovement appends the movement row first, then rewrites items.csv with
// the new cached quantity. If the item rewrite fails, the appended row is
// truncated away so neither half survives.
func (s *Store) ApplyMovement(_ context.Context, m model.StockMovement, updated model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readItems()
	if err != nil {
		return err
	}
	found := false
	for i := range items {
		if items[i].ID == updated.ID {
			items[i] = updated
			found = true
			break
		}
	}
	if !found {
		return fault.ErrNotFound
	}

	path := s.movementsPath()
	prevSize, err := s.appendRowsTracked(path, MovementHeader, [][]string{MarshalMovement(m)})
	if err != nil {
		return err
	}

	if err := s.writeItems(items); err != nil {
		if truncErr := os.Truncate(path, prevSize); truncErr != nil {
			return fault.Transient(fmt.Errorf("item write failed (%v) and movement rollback failed: %w", err, truncErr))
		}
		return err
	}
	return nil
}

func (s *Store) GetMovement(_ context.Context, movementID string) (model.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movements, err := s.readMovements()
	if err != nil {
		return model.StockMovement{}, err
	}
	for _, m := range movements {
		if m.ID == movementID {
			return m, nil
		}
	}
	return model.StockMovement{}, fault.ErrNotFound
}

func (s *Store) ListMovements(_ context.Context, itemID int, from, to time.Time) ([]model.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movements, err := s.readMovements()
	if err != nil {
		return nil, err
	}
	var out []model.StockMovement
	for _, m := range movements {
		if m.ItemID != itemID {
			continue
		}
		if !from.IsZero() && m.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && m.OccurredAt.After(to) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) SumMovements(_ context.Context, itemID int) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movements, err := s.readMovements()
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, m := range movements {
		if m.ItemID == itemID {
			sum = sum.Add(m.Delta)
		}
	}
	return sum, nil
}

func (s *Store) GetResult(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRows(s.idempotencyPath(), 2)
	if err != nil {
		return "", false, err
	}
	for _, rec := range records {
		if rec[0] == token {
			return rec[1], true, nil
		}
	}
	return "", false, nil
}

func (s *Store) PutResult(_ context.Context, token, resultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRows(s.idempotencyPath(), "token,result_id", [][]string{{token, resultID}})
}

// --- file helpers ---

func (s *Store) readAccounts() ([]model.Account, error) {
	records, err := s.readRows(s.accountsPath(), acctNumFields)
	if err != nil {
		return nil, err
	}
	var accounts []model.Account
	for i, rec := range records {
		a, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("accounts row %d: %w", i+2, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *Store) writeAccounts(accounts []model.Account) error {
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, MarshalAccount(a))
	}
	return s.rewriteFile(s.accountsPath(), AccountHeader, rows)
}

func (s *Store) readItems() ([]model.InventoryItem, error) {
	records, err := s.readRows(s.itemsPath(), itemNumFields)
	if err != nil {
		return nil, err
	}
	var items []model.InventoryItem
	for i, rec := range records {
		it, err := UnmarshalItem(rec)
		if err != nil {
			return nil, fmt.Errorf("items row %d: %w", i+2, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) writeItems(items []model.InventoryItem) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, MarshalItem(it))
	}
	return s.rewriteFile(s.itemsPath(), ItemHeader, rows)
}

func (s *Store) readMovements() ([]model.StockMovement, error) {
	records, err := s.readRows(s.movementsPath(), movNumFields)
	if err != nil {
		return nil, err
	}
	var movements []model.StockMovement
	for i, rec := range records {
		m, err := UnmarshalMovement(rec)
		if err != nil {
			return nil, fmt.Errorf("movements row %d: %w", i+2, err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *Store) readMonth(year, month int) ([]model.JournalEntry, error) {
	f, err := os.Open(s.monthPath(year, month))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()
	return readEntries(f)
}

func (s *Store) readAllEntries() ([]model.JournalEntry, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, "*", "*", "journal.csv"))
	if err != nil {
		return nil, fmt.Errorf("globbing journals: %w", err)
	}
	sort.Strings(paths)

	var entries []model.JournalEntry
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening journal %s: %w", path, err)
		}
		monthEntries, err := readEntries(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading journal %s: %w", path, err)
		}
		entries = append(entries, monthEntries...)
	}
	return entries, nil
}

// readRows reads all data rows (header skipped) from a CSV file. A missing
// file reads as empty.
func (s *Store) readRows(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = fields
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func (s *Store) appendRows(path, header string, rows [][]string) error {
	_, err := s.appendRowsTracked(path, header, rows)
	return err
}

// appendRowsTracked appends rows, creating the file and header if needed, and
// returns the file size before the append so a caller can roll it back.
func (s *Store) appendRowsTracked(path, header string, rows [][]string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fault.Transient(fmt.Errorf("creating dir for %s: %w", path, err))
	}

	var prevSize int64
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		prevSize = 0
	case err != nil:
		return 0, fault.Transient(fmt.Errorf("stat %s: %w", path, err))
	default:
		prevSize = info.Size()
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fault.Transient(fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	if prevSize == 0 {
		if _, err := fmt.Fprintln(f, header); err != nil {
			return 0, fault.Transient(fmt.Errorf("writing header: %w", err))
		}
	}

	cw := csv.NewWriter(f)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return 0, fault.Transient(fmt.Errorf("writing row to %s: %w", path, err))
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// Partial append: restore the previous length before reporting.
		_ = os.Truncate(path, prevSize)
		return 0, fault.Transient(fmt.Errorf("flushing %s: %w", path, err))
	}
	return prevSize, nil
}

// rewriteFile writes header+rows to a temp file and renames it into place.
func (s *Store) rewriteFile(path, header string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Transient(fmt.Errorf("creating dir for %s: %w", path, err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".greybooks-*")
	if err != nil {
		return fault.Transient(fmt.Errorf("creating temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, header, rows); err != nil {
		tmp.Close()
		return fault.Transient(err)
	}
	if err := tmp.Close(); err != nil {
		return fault.Transient(fmt.Errorf("closing temp file: %w", err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fault.Transient(fmt.Errorf("replacing %s: %w", path, err))
	}
	return nil
}

func writeCSV(w io.Writer, header string, rows [][]string) error {
	if _, err := fmt.Fprintln(w, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
