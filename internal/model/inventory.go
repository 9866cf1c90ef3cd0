package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementInbound    MovementKind = "inbound"
	MovementOutbound   MovementKind = "outbound"
	MovementAdjustment MovementKind = "adjustment"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	return k == MovementInbound || k == MovementOutbound || k == MovementAdjustment
}

// InventoryItem is one tracked stock item. Quantity is a cached projection of
// the sum of all movements recorded for the item; the two must always agree.
type InventoryItem struct {
	ID               int
	Name             string
	Category         string
	Unit             string // unit of measure, e.g. "ea", "kg"
	UnitPrice        decimal.Decimal
	Quantity         decimal.Decimal // cached on-hand quantity, never negative
	ReorderThreshold decimal.Decimal
	CreatedAt        time.Time
}

// StockMovement is one signed quantity change against an inventory item.
type StockMovement struct {
	ID         string // uuid
	ItemID     int
	Delta      decimal.Decimal // signed
	Kind       MovementKind
	EntryID    string // optional journal entry correlation for costed movements
	OccurredAt time.Time
}
