// Package events defines the outbound event surface. Events are emitted
// after commit on a best-effort, at-least-once basis; receivers are expected
// to deduplicate on event ID.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Topics events are published on.
const (
	TopicJournalPosted = "journal_entry_posted"
	TopicStockRecorded = "stock_movement_recorded"
	TopicReorderAlert  = "reorder_alert"
)

// Publisher delivers an event to an external collaborator.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// JournalEntryPosted announces a committed journal entry.
type JournalEntryPosted struct {
	EventID     string    `json:"event_id"`
	EntryID     string    `json:"entry_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	TotalDebit  string    `json:"total_debit"`
	PostedAt    time.Time `json:"posted_at"`
}

// StockMovementRecorded announces a committed stock movement.
type StockMovementRecorded struct {
	EventID    string          `json:"event_id"`
	MovementID string          `json:"movement_id"`
	ItemID     int             `json:"item_id"`
	Delta      decimal.Decimal `json:"delta"`
	Kind       string          `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ReorderAlert signals an item at or below its reorder threshold.
type ReorderAlert struct {
	EventID          string          `json:"event_id"`
	ItemID           int             `json:"item_id"`
	ItemName         string          `json:"item_name"`
	CurrentQuantity  decimal.Decimal `json:"current_quantity"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	At               time.Time       `json:"at"`
}
