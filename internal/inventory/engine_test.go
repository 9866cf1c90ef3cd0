package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/events"
	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

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

func (p *capturePublisher) published(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.New()
	pub := &capturePublisher{}
	eng := NewEngine(store, consistency.New(store), pub, WithClock(func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}))
	return eng, store, pub
}

func newWidget(t *testing.T, eng *Engine) model.InventoryItem {
	t.Helper()
	item, err := eng.CreateItem(context.Background(), CreateItemParams{
		Name:             "Widget",
		Category:         "parts",
		Unit:             "ea",
		UnitPrice:        dec("4.50"),
		InitialQuantity:  dec("10"),
		ReorderThreshold: dec("5"),
	})
	require.NoError(t, err)
	return item
}

func TestCreateItem(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	item := newWidget(t, eng)
	assert.Equal(t, 1, item.ID)
	assert.True(t, item.Quantity.Equal(dec("10")))

	// Initial quantity lands as an adjustment movement, not a bare write.
	sum, err := store.SumMovements(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec("10")))
}

func TestCreateItem_InitialQuantityPrecision(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateItem(ctx, CreateItemParams{
		Name:            "Fine Sand",
		Unit:            "kg",
		InitialQuantity: dec("1.0005"),
	})
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))

	// The rejected item must not exist: a retry with a corrected quantity
	// would otherwise hit a duplicate name.
	_, err = store.GetItemByName(ctx, "Fine Sand")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

// slowCatalogStore widens the window between the ID scan and the save, the
// way a real backend would.
type slowCatalogStore struct {
	*memory.Store
}

func (s *slowCatalogStore) ListItems(ctx context.Context) ([]model.InventoryItem, error) {
	time.Sleep(10 * time.Millisecond)
	return s.Store.ListItems(ctx)
}

func TestCreateItem_ConcurrentDistinctNames(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	eng := NewEngine(&slowCatalogStore{store}, consistency.New(store), nil)

	var wg sync.WaitGroup
	for _, name := range []string{"Widget", "Gadget"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := eng.CreateItem(ctx, CreateItemParams{Name: name, Unit: "ea"})
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	// Both creates must survive with distinct IDs.
	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestCreateItem_DuplicateName(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	newWidget(t, eng)
	_, err := eng.CreateItem(context.Background(), CreateItemParams{Name: "Widget"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrDuplicateName)
}

func TestRecordMovement_Outbound(t *testing.T) {
	eng, _, pub := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	m, err := eng.RecordMovement(ctx, MovementParams{
		ItemID: item.ID,
		Delta:  dec("-7"),
		Kind:   model.MovementOutbound,
	})
	require.NoError(t, err)
	assert.True(t, m.Delta.Equal(dec("-7")))

	got, err := eng.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("3")))

	// 3 <= threshold 5, so the drop raises a reorder alert.
	assert.Equal(t, 1, pub.published(events.TopicReorderAlert))
}

func TestRecordMovement_InsufficientStock(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	_, err := eng.RecordMovement(ctx, MovementParams{
		ItemID: item.ID,
		Delta:  dec("-7"),
		Kind:   model.MovementOutbound,
	})
	require.NoError(t, err)

	_, err = eng.RecordMovement(ctx, MovementParams{
		ItemID: item.ID,
		Delta:  dec("-10"),
		Kind:   model.MovementOutbound,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrInsufficientStock)

	// The rejected movement left no trace.
	got, err := eng.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("3")))

	movements, err := store.ListMovements(ctx, item.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, movements, 2) // opening adjustment plus the -7
}

func TestRecordMovement_KindSigns(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	cases := []struct {
		name  string
		delta string
		kind  model.MovementKind
	}{
		{"inbound negative", "-1", model.MovementInbound},
		{"outbound positive", "1", model.MovementOutbound},
		{"zero delta", "0", model.MovementAdjustment},
		{"unknown kind", "1", model.MovementKind("transfer")},
		{"too many places", "1.0005", model.MovementInbound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.RecordMovement(ctx, MovementParams{
				ItemID: item.ID,
				Delta:  dec(tc.delta),
				Kind:   tc.kind,
			})
			require.Error(t, err)
			assert.True(t, fault.IsValidation(err))
		})
	}
}

func TestRecordMovement_Idempotent(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	params := MovementParams{
		ItemID:           item.ID,
		Delta:            dec("-2"),
		Kind:             model.MovementOutbound,
		IdempotencyToken: "ship-42",
	}

	first, err := eng.RecordMovement(ctx, params)
	require.NoError(t, err)

	second, err := eng.RecordMovement(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := eng.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("8")), "replay must apply the delta once")

	movements, err := store.ListMovements(ctx, item.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, movements, 2) // opening adjustment plus one shipment
}

func TestRecordMovement_QuantityMismatch(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	// Corrupt the cached quantity behind the engine's back.
	item.Quantity = dec("99")
	require.NoError(t, store.SaveItem(ctx, item))

	_, err := eng.RecordMovement(ctx, MovementParams{
		ItemID: item.ID,
		Delta:  dec("-1"),
		Kind:   model.MovementOutbound,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrQuantityMismatch)
}

func TestRecordMovement_Concurrent(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateItem(ctx, CreateItemParams{
		Name:            "Bulk",
		Unit:            "ea",
		InitialQuantity: dec("100"),
	})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.RecordMovement(ctx, MovementParams{
				ItemID: item.ID,
				Delta:  dec("-1"),
				Kind:   model.MovementOutbound,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := eng.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("50")), "got %s", got.Quantity)
}

func TestAdjustQuantity(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	m, err := eng.AdjustQuantity(ctx, item.ID, dec("-0.5"), "")
	require.NoError(t, err)
	assert.Equal(t, model.MovementAdjustment, m.Kind)

	got, err := eng.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("9.5")))
}

func TestListMovements_Range(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()
	item := newWidget(t, eng)

	_, err := eng.RecordMovement(ctx, MovementParams{
		ItemID: item.ID,
		Delta:  dec("5"),
		Kind:   model.MovementInbound,
	})
	require.NoError(t, err)

	all, err := eng.ListMovements(ctx, item.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// All test movements occur on 2026-03-15; a window before that is empty.
	none, err := store.ListMovements(ctx, item.ID,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordMovement_UnknownItem(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.RecordMovement(context.Background(), MovementParams{
		ItemID: 404,
		Delta:  dec("1"),
		Kind:   model.MovementInbound,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}
