// Package memory provides an in-memory Store, safe for concurrent use.
// Reads return copies so callers can never mutate committed state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/id"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu        sync.Mutex
	accounts  map[int]model.Account
	entries   map[string]model.JournalEntry
	items     map[int]model.InventoryItem
	movements []model.StockMovement
	idem      map[string]string
}

// compile-time interface check
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts: make(map[int]model.Account),
		entries:  make(map[string]model.JournalEntry),
		items:    make(map[int]model.InventoryItem),
		idem:     make(map[string]string),
	}
}

func (s *Store) SaveAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return fault.ErrNotFound
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(_ context.Context, id int) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, fault.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAccountByName(_ context.Context, name string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Account{}, fault.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveEntry(_ context.Context, e model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Lines = append([]model.LedgerLine(nil), e.Lines...)
	s.entries[e.ID] = e
	return nil
}

func (s *Store) GetEntry(_ context.Context, entryID string) (model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return model.JournalEntry{}, fault.ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *Store) ListEntries(_ context.Context) ([]model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JournalEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindReversal(_ context.Context, entryID string) (model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Reverses == entryID {
			return copyEntry(e), nil
		}
	}
	return model.JournalEntry{}, fault.ErrNotFound
}

func (s *Store) NextEntrySeq(_ context.Context, year, month int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxSeq := 0
	for eid := range s.entries {
		y, m, seq, err := id.ParseEntryID(eid)
		if err != nil || y != year || m != month {
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
	for _, e := range s.entries {
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
	s.items[it.ID] = it
	return nil
}

func (s *Store) GetItem(_ context.Context, id int) (model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return model.InventoryItem{}, fault.ErrNotFound
	}
	return it, nil
}

func (s *Store) GetItemByName(_ context.Context, name string) (model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Name == name {
			return it, nil
		}
	}
	return model.InventoryItem{}, fault.ErrNotFound
}

func (s *Store) ListItems(_ context.Context) ([]model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.InventoryItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ApplyMovement(_ context.Context, m model.StockMovement, updated model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[updated.ID]; !ok {
		return fault.ErrNotFound
	}
	s.movements = append(s.movements, m)
	s.items[updated.ID] = updated
	return nil
}

func (s *Store) GetMovement(_ context.Context, movementID string) (model.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.movements {
		if m.ID == movementID {
			return m, nil
		}
	}
	return model.StockMovement{}, fault.ErrNotFound
}

func (s *Store) ListMovements(_ context.Context, itemID int, from, to time.Time) ([]model.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StockMovement
	for _, m := range s.movements {
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
	sum := decimal.Zero
	for _, m := range s.movements {
		if m.ItemID == itemID {
			sum = sum.Add(m.Delta)
		}
	}
	return sum, nil
}

func (s *Store) GetResult(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.idem[token]
	return res, ok, nil
}

func (s *Store) PutResult(_ context.Context, token, resultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idem[token] = resultID
	return nil
}

func copyEntry(e model.JournalEntry) model.JournalEntry {
	e.Lines = append([]model.LedgerLine(nil), e.Lines...)
	return e
}
