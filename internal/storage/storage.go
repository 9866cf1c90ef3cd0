// Package storage defines the repository interfaces the engines depend on.
// Implementations must honor the atomicity contract: SaveEntry persists an
// entry with all its lines as one unit, and ApplyMovement persists a movement
// together with the item's updated cached quantity as one unit. A failed call
// leaves nothing behind.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/model"
)

// AccountStore persists the chart of accounts.
type AccountStore interface {
	SaveAccount(ctx context.Context, a model.Account) error
	UpdateAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, id int) (model.Account, error)
	GetAccountByName(ctx context.Context, name string) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// JournalStore persists posted journal entries and their lines.
type JournalStore interface {
	// SaveEntry writes the entry and every line atomically.
	SaveEntry(ctx context.Context, e model.JournalEntry) error
	GetEntry(ctx context.Context, entryID string) (model.JournalEntry, error)
	ListEntries(ctx context.Context) ([]model.JournalEntry, error)
	// FindReversal returns the entry whose Reverses field names entryID, or
	// fault.ErrNotFound when the entry has not been reversed.
	FindReversal(ctx context.Context, entryID string) (model.JournalEntry, error)
	// NextEntrySeq returns the next free sequence number within a month.
	NextEntrySeq(ctx context.Context, year, month int) (int, error)
	// AccountInUse reports whether any posted line references the account.
	AccountInUse(ctx context.Context, accountID int) (bool, error)
}

// InventoryStore persists inventory items and their stock movements.
type InventoryStore interface {
	SaveItem(ctx context.Context, it model.InventoryItem) error
	GetItem(ctx context.Context, id int) (model.InventoryItem, error)
	GetItemByName(ctx context.Context, name string) (model.InventoryItem, error)
	ListItems(ctx context.Context) ([]model.InventoryItem, error)
	// ApplyMovement writes the movement and the item's new cached quantity
	// atomically.
	ApplyMovement(ctx context.Context, m model.StockMovement, updated model.InventoryItem) error
	GetMovement(ctx context.Context, movementID string) (model.StockMovement, error)
	// ListMovements returns movements for an item within [from, to]. Zero
	// bounds mean unbounded on that side.
	ListMovements(ctx context.Context, itemID int, from, to time.Time) ([]model.StockMovement, error)
	// SumMovements folds every recorded delta for the item.
	SumMovements(ctx context.Context, itemID int) (decimal.Decimal, error)
}

// IdempotencyStore remembers the result of commands carrying a token so a
// repeated command returns the original result instead of double-applying.
type IdempotencyStore interface {
	// GetResult returns the recorded result ID for token, if any.
	GetResult(ctx context.Context, token string) (string, bool, error)
	PutResult(ctx context.Context, token, resultID string) error
}

// Store is the full set of repositories a backend provides.
type Store interface {
	AccountStore
	JournalStore
	InventoryStore
	IdempotencyStore
}
