// Package postgres provides a durable Store backed by PostgreSQL. Multi-row
// commits (entry+lines, movement+cached quantity) run inside a single
// transaction; a failure rolls the whole unit back.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// database/sql driver
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Store is a PostgreSQL implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// compile-time interface check
var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fault.Transient(fmt.Errorf("pinging postgres: %w", err))
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			entry_date DATE NOT NULL,
			description TEXT NOT NULL,
			reverses TEXT NOT NULL DEFAULT '',
			posted_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS journal_lines (
			line_id TEXT PRIMARY KEY,
			entry_id TEXT NOT NULL REFERENCES journal_entries(id),
			account_id INTEGER NOT NULL REFERENCES accounts(id),
			debit NUMERIC(20,2) NOT NULL,
			credit NUMERIC(20,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			unit_price NUMERIC(20,2) NOT NULL,
			quantity NUMERIC(20,3) NOT NULL,
			reorder_threshold NUMERIC(20,3) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			item_id INTEGER NOT NULL REFERENCES inventory_items(id),
			delta NUMERIC(20,3) NOT NULL,
			kind TEXT NOT NULL,
			entry_id TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			token TEXT PRIMARY KEY,
			result_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_lines_account ON journal_lines(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements(item_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fault.Transient(fmt.Errorf("migrating: %w", err))
		}
	}
	return nil
}

func (s *Store) SaveAccount(ctx context.Context, a model.Account) error {
	const query = `INSERT INTO accounts (id, name, type, description, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, a.ID, a.Name, a.Type, a.Description, a.CreatedAt)
	if err != nil {
		return fault.Transient(fmt.Errorf("saving account: %w", err))
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a model.Account) error {
	const query = `UPDATE accounts SET name = $2, type = $3, description = $4 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, a.ID, a.Name, a.Type, a.Description)
	if err != nil {
		return fault.Transient(fmt.Errorf("updating account: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fault.Transient(err)
	}
	if n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID int) (model.Account, error) {
	const query = `SELECT id, name, type, description, created_at FROM accounts WHERE id = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, accountID))
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (model.Account, error) {
	const query = `SELECT id, name, type, description, created_at FROM accounts WHERE name = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, name))
}

func (s *Store) scanAccount(row *sql.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Description, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fault.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fault.Transient(fmt.Errorf("scanning account: %w", err))
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	const query = `SELECT id, name, type, description, created_at FROM accounts ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.Transient(fmt.Errorf("listing accounts: %w", err))
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Description, &a.CreatedAt); err != nil {
			return nil, fault.Transient(fmt.Errorf("scanning account: %w", err))
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient(err)
	}
	return accounts, nil
}

func (s *Store) SaveEntry(ctx context.Context, e model.JournalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Transient(fmt.Errorf("beginning tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const entryQuery = `INSERT INTO journal_entries (id, entry_date, description, reverses, posted_at)
	VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, entryQuery, e.ID, e.Date, e.Description, e.Reverses, e.PostedAt); err != nil {
		return fault.Transient(fmt.Errorf("saving entry: %w", err))
	}

	const lineQuery = `INSERT INTO journal_lines (line_id, entry_id, account_id, debit, credit)
	VALUES ($1, $2, $3, $4, $5)`
	for _, l := range e.Lines {
		if _, err := tx.ExecContext(ctx, lineQuery, l.LineID, e.ID, l.AccountID, l.Debit, l.Credit); err != nil {
			return fault.Transient(fmt.Errorf("saving line %s: %w", l.LineID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fault.Transient(fmt.Errorf("committing entry: %w", err))
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (model.JournalEntry, error) {
	const query = `SELECT id, entry_date, description, reverses, posted_at
	FROM journal_entries WHERE id = $1`

	var e model.JournalEntry
	err := s.db.QueryRowContext(ctx, query, entryID).
		Scan(&e.ID, &e.Date, &e.Description, &e.Reverses, &e.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JournalEntry{}, fault.ErrNotFound
	}
	if err != nil {
		return model.JournalEntry{}, fault.Transient(fmt.Errorf("scanning entry: %w", err))
	}

	e.Lines, err = s.entryLines(ctx, e.ID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	return e, nil
}

func (s *Store) entryLines(ctx context.Context, entryID string) ([]model.LedgerLine, error) {
	const query = `SELECT line_id, entry_id, account_id, debit, credit
	FROM journal_lines WHERE entry_id = $1 ORDER BY line_id`

	rows, err := s.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fault.Transient(fmt.Errorf("listing lines: %w", err))
	}
	defer rows.Close()

	var lines []model.LedgerLine
	for rows.Next() {
		var l model.LedgerLine
		if err := rows.Scan(&l.LineID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit); err != nil {
			return nil, fault.Transient(fmt.Errorf("scanning line: %w", err))
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient(err)
	}
	return lines, nil
}

func (s *Store) ListEntries(ctx context.Context) ([]model.JournalEntry, error) {
	const query = `SELECT id, entry_date, description, reverses, posted_at
	FROM journal_entries ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.Transient(fmt.Errorf("listing entries: %w", err))
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.Description, &e.Reverses, &e.PostedAt); err != nil {
			return nil, fault.Transient(fmt.Errorf("scanning entry: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient(err)
	}

	for i := range entries {
		entries[i].Lines, err = s.entryLines(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Store) FindReversal(ctx context.Context, entryID string) (model.JournalEntry, error) {
	const query = `SELECT id FROM journal_entries WHERE reverses = $1 LIMIT 1`

	var reversalID string
	err := s.db.QueryRowContext(ctx, query, entryID).Scan(&reversalID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JournalEntry{}, fault.ErrNotFound
	}
	if err != nil {
		return model.JournalEntry{}, fault.Transient(fmt.Errorf("finding reversal: %w", err))
	}
	return s.GetEntry(ctx, reversalID)
}

func (s *Store) NextEntrySeq(ctx context.Context, year, month int) (int, error) {
	// Entry IDs are "YYYY-MM-NNN"; the sequence starts at character 9.
	const query = `SELECT COALESCE(MAX(CAST(SUBSTRING(id FROM 9) AS INTEGER)), 0)
	FROM journal_entries WHERE id LIKE $1`

	prefix := fmt.Sprintf("%04d-%02d-%%", year, month)
	var maxSeq int
	if err := s.db.QueryRowContext(ctx, query, prefix).Scan(&maxSeq); err != nil {
		return 0, fault.Transient(fmt.Errorf("scanning max sequence: %w", err))
	}
	return maxSeq + 1, nil
}

func (s *Store) AccountInUse(ctx context.Context, accountID int) (bool, error) {
	const query = `SELECT 1 FROM journal_lines WHERE account_id = $1 LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fault.Transient(fmt.Errorf("checking account use: %w", err))
	}
	return true, nil
}

func (s *Store) SaveItem(ctx context.Context, it model.InventoryItem) error {
	const query = `INSERT INTO inventory_items (id, name, category, unit, unit_price, quantity, reorder_threshold, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET name = $2, category = $3, unit = $4, unit_price = $5, quantity = $6, reorder_threshold = $7`

	_, err := s.db.ExecContext(ctx, query,
		it.ID, it.Name, it.Category, it.Unit, it.UnitPrice, it.Quantity, it.ReorderThreshold, it.CreatedAt)
	if err != nil {
		return fault.Transient(fmt.Errorf("saving item: %w", err))
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID int) (model.InventoryItem, error) {
	const query = `SELECT id, name, category, unit, unit_price, quantity, reorder_threshold, created_at
	FROM inventory_items WHERE id = $1`
	return s.scanItem(s.db.QueryRowContext(ctx, query, itemID))
}

func (s *Store) GetItemByName(ctx context.Context, name string) (model.InventoryItem, error) {
	const query = `SELECT id, name, category, unit, unit_price, quantity, reorder_threshold, created_at
	FROM inventory_items WHERE name = $1`
	return s.scanItem(s.db.QueryRowContext(ctx, query, name))
}

func (s *Store) scanItem(row *sql.Row) (model.InventoryItem, error) {
	var it model.InventoryItem
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Unit, &it.UnitPrice, &it.Quantity, &it.ReorderThreshold, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryItem{}, fault.ErrNotFound
	}
	if err != nil {
		return model.InventoryItem{}, fault.Transient(fmt.Errorf("scanning item: %w", err))
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context) ([]model.InventoryItem, error) {
	const query = `SELECT id, name, category, unit, unit_price, quantity, reorder_threshold, created_at
	FROM inventory_items ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.Transient(fmt.Errorf("listing items: %w", err))
	}
	defer rows.Close()

	var items []model.InventoryItem
	for rows.Next() {
		var it model.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Unit, &it.UnitPrice, &it.Quantity, &it.ReorderThreshold, &it.CreatedAt); err != nil {
			return nil, fault.Transient(fmt.Errorf("scanning item: %w", err))
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient(err)
	}
	return items, nil
}

func (s *Store) ApplyMovement(ctx context.Context, m model.StockMovement, updated model.InventoryItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Transient(fmt.Errorf("beginning tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const movQuery = `INSERT INTO stock_movements (id, item_id, delta, kind, entry_id, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, movQuery, m.ID, m.ItemID, m.Delta, m.Kind, m.EntryID, m.OccurredAt); err != nil {
		return fault.Transient(fmt.Errorf("saving movement: %w", err))
	}

	const itemQuery = `UPDATE inventory_items SET quantity = $2 WHERE id = $1`
	res, err := tx.ExecContext(ctx, itemQuery, updated.ID, updated.Quantity)
	if err != nil {
		return fault.Transient(fmt.Errorf("updating quantity: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fault.Transient(err)
	}
	if n == 0 {
		return fault.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fault.Transient(fmt.Errorf("committing movement: %w", err))
	}
	return nil
}

func (s *Store) GetMovement(ctx context.Context, movementID string) (model.StockMovement, error) {
	const query = `SELECT id, item_id, delta, kind, entry_id, occurred_at
	FROM stock_movements WHERE id = $1`

	var m model.StockMovement
	err := s.db.QueryRowContext(ctx, query, movementID).
		Scan(&m.ID, &m.ItemID, &m.Delta, &m.Kind, &m.EntryID, &m.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StockMovement{}, fault.ErrNotFound
	}
	if err != nil {
		return model.StockMovement{}, fault.Transient(fmt.Errorf("scanning movement: %w", err))
	}
	return m, nil
}

func (s *Store) ListMovements(ctx context.Context, itemID int, from, to time.Time) ([]model.StockMovement, error) {
	query := `SELECT id, item_id, delta, kind, entry_id, occurred_at
	FROM stock_movements WHERE item_id = $1`
	args := []any{itemID}

	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}
	query += " ORDER BY occurred_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Transient(fmt.Errorf("listing movements: %w", err))
	}
	defer rows.Close()

	var movements []model.StockMovement
	for rows.Next() {
		var m model.StockMovement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.Kind, &m.EntryID, &m.OccurredAt); err != nil {
			return nil, fault.Transient(fmt.Errorf("scanning movement: %w", err))
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient(err)
	}
	return movements, nil
}

func (s *Store) SumMovements(ctx context.Context, itemID int) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(delta), 0) FROM stock_movements WHERE item_id = $1`

	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, itemID).Scan(&sum); err != nil {
		return decimal.Zero, fault.Transient(fmt.Errorf("summing movements: %w", err))
	}
	return sum, nil
}

func (s *Store) GetResult(ctx context.Context, token string) (string, bool, error) {
	const query = `SELECT result_id FROM idempotency_keys WHERE token = $1`

	var resultID string
	err := s.db.QueryRowContext(ctx, query, token).Scan(&resultID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fault.Transient(fmt.Errorf("reading idempotency key: %w", err))
	}
	return resultID, true, nil
}

func (s *Store) PutResult(ctx context.Context, token, resultID string) error {
	const query = `INSERT INTO idempotency_keys (token, result_id)
	VALUES ($1, $2) ON CONFLICT (token) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, token, resultID); err != nil {
		return fault.Transient(fmt.Errorf("saving idempotency key: %w", err))
	}
	return nil
}
