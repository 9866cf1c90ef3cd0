package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage/memory"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	store := memory.New()
	reg := NewRegistry(store, store, consistency.New(store), WithClock(func() time.Time {
		return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	}))
	return reg, store
}

func TestCreate_AssignsBlockIDs(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	cash, err := reg.Create(ctx, "Cash", model.AccountTypeAsset, "")
	require.NoError(t, err)
	assert.Equal(t, 1010, cash.ID)

	savings, err := reg.Create(ctx, "Savings", model.AccountTypeAsset, "")
	require.NoError(t, err)
	assert.Equal(t, 1020, savings.ID)

	sales, err := reg.Create(ctx, "Sales", model.AccountTypeRevenue, "")
	require.NoError(t, err)
	assert.Equal(t, 4010, sales.ID)
}

// slowListStore widens the window between the ID scan and the save, the way
// a real backend would.
type slowListStore struct {
	*memory.Store
}

func (s *slowListStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	time.Sleep(10 * time.Millisecond)
	return s.Store.ListAccounts(ctx)
}

func TestCreate_ConcurrentDistinctNames(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	reg := NewRegistry(&slowListStore{store}, store, consistency.New(store))

	var wg sync.WaitGroup
	for _, name := range []string{"Cash", "Savings"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := reg.Create(ctx, name, model.AccountTypeAsset, "")
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	// Both creates must survive with distinct IDs.
	all, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEqual(t, all[0].ID, all[1].ID)
}

func TestCreate_DuplicateName(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "Cash", model.AccountTypeAsset, "")
	require.NoError(t, err)

	_, err = reg.Create(ctx, "Cash", model.AccountTypeExpense, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrDuplicateName)
}

func TestCreate_Invalid(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "  ", model.AccountTypeAsset, "")
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))

	_, err = reg.Create(ctx, "Petty Cash", model.AccountType("contra"), "")
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestRename(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	a, err := reg.Create(ctx, "Cash", model.AccountTypeAsset, "")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "Savings", model.AccountTypeAsset, "")
	require.NoError(t, err)

	renamed, err := reg.Rename(ctx, a.ID, "Business Checking")
	require.NoError(t, err)
	assert.Equal(t, "Business Checking", renamed.Name)

	// Renaming to another account's name is rejected.
	_, err = reg.Rename(ctx, a.ID, "Savings")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrDuplicateName)

	// Renaming to its own current name is a no-op, not a collision.
	_, err = reg.Rename(ctx, a.ID, "Business Checking")
	assert.NoError(t, err)
}

func TestRetype(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	a, err := reg.Create(ctx, "Misc", model.AccountTypeAsset, "")
	require.NoError(t, err)

	retyped, err := reg.Retype(ctx, a.ID, model.AccountTypeExpense)
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeExpense, retyped.Type)
}

func TestRetype_LockedOnceUsed(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	cash, err := reg.Create(ctx, "Cash", model.AccountTypeAsset, "")
	require.NoError(t, err)
	sales, err := reg.Create(ctx, "Sales", model.AccountTypeRevenue, "")
	require.NoError(t, err)

	amount := decimal.RequireFromString("50.00")
	require.NoError(t, store.SaveEntry(ctx, model.JournalEntry{
		ID:          "2026-03-001",
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "Cash sale",
		Lines: []model.LedgerLine{
			{LineID: "2026-03-001a", EntryID: "2026-03-001", AccountID: cash.ID, Debit: amount},
			{LineID: "2026-03-001b", EntryID: "2026-03-001", AccountID: sales.ID, Credit: amount},
		},
	}))

	_, err = reg.Retype(ctx, cash.ID, model.AccountTypeExpense)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrTypeLocked)
}

func TestList_FilterByType(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "Cash", model.AccountTypeAsset, "")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "Savings", model.AccountTypeAsset, "")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "Sales", model.AccountTypeRevenue, "")
	require.NoError(t, err)

	assets, err := reg.List(ctx, model.AccountTypeAsset)
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	all, err := reg.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestExists(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	a, err := reg.Create(ctx, "Cash", model.AccountTypeAsset, "")
	require.NoError(t, err)

	ok, err := reg.Exists(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Exists(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart()
	require.NotEmpty(t, chart)

	seen := make(map[int]bool)
	for _, a := range chart {
		assert.True(t, a.Type.Valid(), "account %d has invalid type %q", a.ID, a.Type)
		assert.False(t, seen[a.ID], "duplicate account ID %d", a.ID)
		seen[a.ID] = true
	}
}
