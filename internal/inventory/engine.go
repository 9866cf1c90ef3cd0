// Package inventory is the stock movement engine. Every quantity change goes
// through a movement row; an item's cached quantity is the running sum of its
// movements and can never go negative.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/events"
	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/id"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Engine records stock movements and maintains cached quantities.
type Engine struct {
	store  storage.InventoryStore
	sup    *consistency.Supervisor
	pub    events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a stock movement engine.
func NewEngine(store storage.InventoryStore, sup *consistency.Supervisor, pub events.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		sup:    sup,
		pub:    pub,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateItemParams holds the inputs for creating an inventory item.
type CreateItemParams struct {
	Name             string
	Category         string
	Unit             string
	UnitPrice        decimal.Decimal
	InitialQuantity  decimal.Decimal
	ReorderThreshold decimal.Decimal
}

// CreateItem adds a new item. A non-zero initial quantity is recorded as an
// adjustment movement so the cached quantity stays a projection of the
// movement history from day one. The catalog's exclusive section is held
// across the ID scan and the save, so concurrent creates never mint the
// same ID.
func (e *Engine) CreateItem(ctx context.Context, p CreateItemParams) (model.InventoryItem, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return model.InventoryItem{}, fault.Invalid("name", "must not be empty")
	}
	if p.UnitPrice.IsNegative() {
		return model.InventoryItem{}, fault.Invalid("unit_price", "must not be negative")
	}
	if p.InitialQuantity.IsNegative() {
		return model.InventoryItem{}, fault.Invalid("initial_quantity", "must not be negative")
	}
	if !p.InitialQuantity.Mul(thousand).Equal(p.InitialQuantity.Mul(thousand).Floor()) {
		return model.InventoryItem{}, fault.Invalid("initial_quantity", "quantity %s has more than 3 decimal places", p.InitialQuantity)
	}
	if p.ReorderThreshold.IsNegative() {
		return model.InventoryItem{}, fault.Invalid("reorder_threshold", "must not be negative")
	}

	var item model.InventoryItem
	err := e.sup.Serialize(ctx, []string{consistency.CatalogKey()}, func() error {
		if _, err := e.store.GetItemByName(ctx, p.Name); err == nil {
			return fmt.Errorf("item %q: %w", p.Name, fault.ErrDuplicateName)
		} else if !errors.Is(err, fault.ErrNotFound) {
			return err
		}

		items, err := e.store.ListItems(ctx)
		if err != nil {
			return err
		}
		nextID := 1
		for _, it := range items {
			if it.ID >= nextID {
				nextID = it.ID + 1
			}
		}

		item = model.InventoryItem{
			ID:               nextID,
			Name:             p.Name,
			Category:         p.Category,
			Unit:             p.Unit,
			UnitPrice:        p.UnitPrice,
			Quantity:         decimal.Zero,
			ReorderThreshold: p.ReorderThreshold,
			CreatedAt:        e.now().UTC(),
		}
		return e.store.SaveItem(ctx, item)
	})
	if err != nil {
		return model.InventoryItem{}, err
	}
	e.logger.Info("inventory item created", "id", item.ID, "name", item.Name)

	if !p.InitialQuantity.IsZero() {
		if _, err := e.AdjustQuantity(ctx, item.ID, p.InitialQuantity, ""); err != nil {
			return model.InventoryItem{}, err
		}
		item.Quantity = p.InitialQuantity
	}
	return item, nil
}

// MovementParams holds the inputs for recording one stock movement.
type MovementParams struct {
	ItemID           int
	Delta            decimal.Decimal
	Kind             model.MovementKind
	EntryID          string // optional journal correlation
	IdempotencyToken string
}

var thousand = decimal.NewFromInt(1000)

// RecordMovement validates and atomically commits a quantity change. The
// item's exclusive section is held for the read-validate-commit span; a
// movement that would drive the quantity negative is rejected with
// ErrInsufficientStock and leaves everything untouched.
func (e *Engine) RecordMovement(ctx context.Context, p MovementParams) (model.StockMovement, error) {
	if !p.Kind.Valid() {
		return model.StockMovement{}, fault.Invalid("kind", "unknown movement kind %q", p.Kind)
	}
	if p.Delta.IsZero() {
		return model.StockMovement{}, fault.Invalid("delta", "must not be zero")
	}
	if p.Kind == model.MovementInbound && p.Delta.IsNegative() {
		return model.StockMovement{}, fault.Invalid("delta", "inbound movements must be positive")
	}
	if p.Kind == model.MovementOutbound && p.Delta.IsPositive() {
		return model.StockMovement{}, fault.Invalid("delta", "outbound movements must be negative")
	}
	if !p.Delta.Mul(thousand).Equal(p.Delta.Mul(thousand).Floor()) {
		return model.StockMovement{}, fault.Invalid("delta", "quantity %s has more than 3 decimal places", p.Delta)
	}

	var (
		movement model.StockMovement
		updated  model.InventoryItem
	)
	movementID, replayed, err := e.sup.Idempotent(ctx, p.IdempotencyToken, func() (string, error) {
		err := e.sup.Serialize(ctx, []string{consistency.ItemKey(p.ItemID)}, func() error {
			item, err := e.store.GetItem(ctx, p.ItemID)
			if err != nil {
				return fmt.Errorf("item %d: %w", p.ItemID, err)
			}

			// Cached quantity must agree with the movement history before
			// another delta is layered on top.
			sum, err := e.store.SumMovements(ctx, p.ItemID)
			if err != nil {
				return err
			}
			if !sum.Equal(item.Quantity) {
				return fmt.Errorf("item %d: cached %s, movements sum %s: %w",
					p.ItemID, item.Quantity, sum, fault.ErrQuantityMismatch)
			}

			newQty := item.Quantity.Add(p.Delta)
			if newQty.IsNegative() {
				return fmt.Errorf("item %d: on hand %s, requested %s: %w",
					p.ItemID, item.Quantity, p.Delta, fault.ErrInsufficientStock)
			}

			m := model.StockMovement{
				ID:         id.New(),
				ItemID:     p.ItemID,
				Delta:      p.Delta,
				Kind:       p.Kind,
				EntryID:    p.EntryID,
				OccurredAt: e.now().UTC(),
			}
			item.Quantity = newQty
			if err := e.store.ApplyMovement(ctx, m, item); err != nil {
				return err
			}
			movement = m
			updated = item
			return nil
		})
		return movement.ID, err
	})
	if err != nil {
		return model.StockMovement{}, err
	}
	if replayed {
		return e.store.GetMovement(ctx, movementID)
	}

	e.logger.Info("stock movement recorded",
		"item", updated.ID, "kind", movement.Kind, "delta", movement.Delta, "quantity", updated.Quantity)
	e.publishRecorded(ctx, movement, updated)
	return movement, nil
}

// AdjustQuantity records an adjustment movement: the only path allowed to
// change stock without a matching business document.
func (e *Engine) AdjustQuantity(ctx context.Context, itemID int, delta decimal.Decimal, token string) (model.StockMovement, error) {
	return e.RecordMovement(ctx, MovementParams{
		ItemID:           itemID,
		Delta:            delta,
		Kind:             model.MovementAdjustment,
		IdempotencyToken: token,
	})
}

// GetItem returns an item by ID.
func (e *Engine) GetItem(ctx context.Context, itemID int) (model.InventoryItem, error) {
	it, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("item %d: %w", itemID, err)
	}
	return it, nil
}

// ListItems returns all items.
func (e *Engine) ListItems(ctx context.Context) ([]model.InventoryItem, error) {
	return e.store.ListItems(ctx)
}

// ListMovements returns an item's movements within [from, to].
func (e *Engine) ListMovements(ctx context.Context, itemID int, from, to time.Time) ([]model.StockMovement, error) {
	if _, err := e.store.GetItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("item %d: %w", itemID, err)
	}
	return e.store.ListMovements(ctx, itemID, from, to)
}

// publishRecorded emits post-commit events. Best-effort: failures are logged,
// never propagated, and never roll back the movement.
func (e *Engine) publishRecorded(ctx context.Context, m model.StockMovement, item model.InventoryItem) {
	if e.pub == nil {
		return
	}

	recorded := events.StockMovementRecorded{
		EventID:    id.New(),
		MovementID: m.ID,
		ItemID:     m.ItemID,
		Delta:      m.Delta,
		Kind:       string(m.Kind),
		Quantity:   item.Quantity,
		OccurredAt: m.OccurredAt,
	}
	if err := e.pub.Publish(ctx, events.TopicStockRecorded, recorded); err != nil {
		e.logger.Warn("publishing movement event failed", "movement", m.ID, "error", err)
	}

	if item.Quantity.LessThanOrEqual(item.ReorderThreshold) {
		alert := events.ReorderAlert{
			EventID:          id.New(),
			ItemID:           item.ID,
			ItemName:         item.Name,
			CurrentQuantity:  item.Quantity,
			ReorderThreshold: item.ReorderThreshold,
			At:               e.now().UTC(),
		}
		if err := e.pub.Publish(ctx, events.TopicReorderAlert, alert); err != nil {
			e.logger.Warn("publishing reorder alert failed", "item", item.ID, "error", err)
		}
	}
}
