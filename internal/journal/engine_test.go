package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 1010, Name: "Cash", Type: model.AccountTypeAsset}))
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 4010, Name: "Revenue", Type: model.AccountTypeRevenue}))
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 5010, Name: "Supplies", Type: model.AccountTypeExpense}))

	pub := &capturePublisher{}
	sup := consistency.New(store)
	eng := NewEngine(store, store, sup, pub, WithClock(func() time.Time {
		return date(2026, 3, 15)
	}))
	return eng, store, pub
}

func TestPost_Balanced(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	ctx := context.Background()

	entry, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 3, 1),
		Description: "Cash sale",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("100.00")},
			{AccountID: 4010, Credit: dec("100.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-001", entry.ID)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, "2026-03-001a", entry.Lines[0].LineID)
	assert.True(t, entry.TotalDebit().Equal(entry.TotalCredit()))

	// Committed and visible.
	stored, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cash sale", stored.Description)

	// Posted event emitted after commit.
	require.Len(t, pub.topics, 1)
	assert.Equal(t, "journal_entry_posted", pub.topics[0])
}

func TestPost_SequencePerMonth(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 3, 1),
		Description: "First",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("10.00")},
			{AccountID: 4010, Credit: dec("10.00")},
		},
	})
	require.NoError(t, err)

	second, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 3, 20),
		Description: "Second",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("20.00")},
			{AccountID: 4010, Credit: dec("20.00")},
		},
	})
	require.NoError(t, err)

	april, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 4, 2),
		Description: "April",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("30.00")},
			{AccountID: 4010, Credit: dec("30.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-03-001", first.ID)
	assert.Equal(t, "2026-03-002", second.ID)
	assert.Equal(t, "2026-04-001", april.ID)
}

func TestPost_UnbalancedCommitsNothing(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 3, 1),
		Description: "Broken",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("100.00")},
			{AccountID: 4010, Credit: dec("90.00")},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrUnbalancedEntry)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, pub.topics)
}

func TestPost_Idempotent(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	params := PostParams{
		Date:        date(2026, 3, 1),
		Description: "Retried sale",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("50.00")},
			{AccountID: 4010, Credit: dec("50.00")},
		},
		IdempotencyToken: "tok-123",
	}

	first, err := eng.Post(ctx, params)
	require.NoError(t, err)

	second, err := eng.Post(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "token replay must not double-post")
}

func TestReverse_SwapsSides(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	orig, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 3, 1),
		Description: "Cash sale",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("100.00")},
			{AccountID: 4010, Credit: dec("100.00")},
		},
	})
	require.NoError(t, err)

	rev, err := eng.Reverse(ctx, orig.ID, "")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, rev.Reverses)
	require.Len(t, rev.Lines, 2)
	assert.True(t, rev.Lines[0].Credit.Equal(orig.Lines[0].Debit))
	assert.True(t, rev.Lines[1].Debit.Equal(orig.Lines[1].Credit))
}

func TestReverse_Twice(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	orig, err := eng.Post(ctx, PostParams{
		Date:        date(2026, 3, 1),
		Description: "Cash sale",
		Lines: []Line{
			{AccountID: 1010, Debit: dec("100.00")},
			{AccountID: 4010, Credit: dec("100.00")},
		},
	})
	require.NoError(t, err)

	_, err = eng.Reverse(ctx, orig.ID, "")
	require.NoError(t, err)

	_, err = eng.Reverse(ctx, orig.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrAlreadyReversed)
}

func TestReverse_UnknownEntry(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.Reverse(context.Background(), "2026-03-999", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

// slowSeqStore widens the window between reading the month sequence and
// saving the entry, the way a real backend would.
type slowSeqStore struct {
	*memory.Store
}

func (s *slowSeqStore) NextEntrySeq(ctx context.Context, year, month int) (int, error) {
	time.Sleep(10 * time.Millisecond)
	return s.Store.NextEntrySeq(ctx, year, month)
}

func TestPost_ConcurrentDisjointAccounts(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 1010, Name: "Cash", Type: model.AccountTypeAsset}))
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 1020, Name: "Savings", Type: model.AccountTypeAsset}))
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 4010, Name: "Sales", Type: model.AccountTypeRevenue}))
	require.NoError(t, store.SaveAccount(ctx, model.Account{ID: 4020, Name: "Services", Type: model.AccountTypeRevenue}))

	eng := NewEngine(store, &slowSeqStore{store}, consistency.New(store), nil)

	pairs := [][2]int{{1010, 4010}, {1020, 4020}}
	var wg sync.WaitGroup
	for _, pair := range pairs {
		wg.Add(1)
		go func(debit, credit int) {
			defer wg.Done()
			_, err := eng.Post(ctx, PostParams{
				Date:        date(2026, 3, 1),
				Description: "Concurrent sale",
				Lines: []Line{
					{AccountID: debit, Debit: dec("10.00")},
					{AccountID: credit, Credit: dec("10.00")},
				},
			})
			assert.NoError(t, err)
		}(pair[0], pair[1])
	}
	wg.Wait()

	// Disjoint accounts must still mint distinct IDs: both entries survive.
	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestPost_ConcurrentSameAccounts(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Post(ctx, PostParams{
				Date:        date(2026, 3, 1),
				Description: "Concurrent sale",
				Lines: []Line{
					{AccountID: 1010, Debit: dec("1.00")},
					{AccountID: 4010, Credit: dec("1.00")},
				},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, n)

	// Sequences must be unique and contiguous.
	seen := make(map[string]bool, n)
	for _, e := range entries {
		assert.False(t, seen[e.ID], "duplicate entry ID %s", e.ID)
		seen[e.ID] = true
		assert.True(t, e.TotalDebit().Equal(e.TotalCredit()))
	}
}
