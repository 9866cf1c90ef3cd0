// Package journal is the posting engine: it validates proposed entries and
// commits them atomically to the ledger. Posted entries are immutable;
// corrections go through Reverse.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/events"
	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/id"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Engine posts and reverses journal entries.
type Engine struct {
	accounts storage.AccountStore
	store    storage.JournalStore
	sup      *consistency.Supervisor
	pub      events.Publisher
	logger   *slog.Logger
	now      func() time.Time
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

// NewEngine creates a posting engine.
func NewEngine(accounts storage.AccountStore, store storage.JournalStore, sup *consistency.Supervisor, pub events.Publisher, opts ...Option) *Engine {
	e := &Engine{
		accounts: accounts,
		store:    store,
		sup:      sup,
		pub:      pub,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PostParams holds the inputs for posting one journal entry.
type PostParams struct {
	Date             time.Time
	Description      string
	Lines            []Line
	IdempotencyToken string
}

// Post validates and atomically commits a balanced journal entry. A repeated
// call with the same idempotency token returns the originally posted entry.
func (e *Engine) Post(ctx context.Context, p PostParams) (model.JournalEntry, error) {
	if p.Date.IsZero() {
		return model.JournalEntry{}, fault.Invalid("date", "must be set")
	}
	if err := ValidateLines(ctx, p.Lines, e.accounts); err != nil {
		return model.JournalEntry{}, err
	}

	// The month key guards the entry sequence: two posts touching disjoint
	// accounts must still mint distinct IDs.
	keys := append(lineKeys(p.Lines), consistency.MonthKey(p.Date.Year(), int(p.Date.Month())))

	var entry model.JournalEntry
	entryID, replayed, err := e.sup.Idempotent(ctx, p.IdempotencyToken, func() (string, error) {
		err := e.sup.Serialize(ctx, keys, func() error {
			built, err := e.buildEntry(ctx, p)
			if err != nil {
				return err
			}
			if err := e.store.SaveEntry(ctx, built); err != nil {
				return err
			}
			entry = built
			return nil
		})
		return entry.ID, err
	})
	if err != nil {
		return model.JournalEntry{}, err
	}
	if replayed {
		return e.store.GetEntry(ctx, entryID)
	}

	e.logger.Info("journal entry posted", "entry", entry.ID, "lines", len(entry.Lines), "total", entry.TotalDebit())
	e.publishPosted(ctx, entry)
	return entry, nil
}

// Reverse synthesizes a new entry with every line's debit and credit swapped,
// referencing the original. An entry can be reversed once; a second call
// fails with ErrAlreadyReversed.
func (e *Engine) Reverse(ctx context.Context, entryID, token string) (model.JournalEntry, error) {
	orig, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("entry %s: %w", entryID, err)
	}

	var entry model.JournalEntry
	newID, replayed, err := e.sup.Idempotent(ctx, token, func() (string, error) {
		date := e.now()
		keys := make([]string, 0, len(orig.Lines)+1)
		for _, l := range orig.Lines {
			keys = append(keys, consistency.AccountKey(l.AccountID))
		}
		keys = append(keys, consistency.MonthKey(date.Year(), int(date.Month())))
		err := e.sup.Serialize(ctx, keys, func() error {
			if _, err := e.store.FindReversal(ctx, entryID); err == nil {
				return fmt.Errorf("entry %s: %w", entryID, fault.ErrAlreadyReversed)
			} else if !errors.Is(err, fault.ErrNotFound) {
				return err
			}

			seq, err := e.store.NextEntrySeq(ctx, date.Year(), int(date.Month()))
			if err != nil {
				return err
			}

			built := model.JournalEntry{
				ID:          id.FormatEntryID(date.Year(), int(date.Month()), seq),
				Date:        date,
				Description: "Reversal of " + entryID + ": " + orig.Description,
				Reverses:    entryID,
				PostedAt:    e.now().UTC(),
			}
			for i, l := range orig.Lines {
				built.Lines = append(built.Lines, model.LedgerLine{
					LineID:    id.FormatLineID(built.ID, i),
					EntryID:   built.ID,
					AccountID: l.AccountID,
					Debit:     l.Credit,
					Credit:    l.Debit,
				})
			}

			if err := e.store.SaveEntry(ctx, built); err != nil {
				return err
			}
			entry = built
			return nil
		})
		return entry.ID, err
	})
	if err != nil {
		return model.JournalEntry{}, err
	}
	if replayed {
		return e.store.GetEntry(ctx, newID)
	}

	e.logger.Info("journal entry reversed", "entry", entryID, "reversal", entry.ID)
	e.publishPosted(ctx, entry)
	return entry, nil
}

// Get returns a posted entry by ID.
func (e *Engine) Get(ctx context.Context, entryID string) (model.JournalEntry, error) {
	return e.store.GetEntry(ctx, entryID)
}

func (e *Engine) buildEntry(ctx context.Context, p PostParams) (model.JournalEntry, error) {
	seq, err := e.store.NextEntrySeq(ctx, p.Date.Year(), int(p.Date.Month()))
	if err != nil {
		return model.JournalEntry{}, err
	}

	entry := model.JournalEntry{
		ID:          id.FormatEntryID(p.Date.Year(), int(p.Date.Month()), seq),
		Date:        p.Date,
		Description: p.Description,
		PostedAt:    e.now().UTC(),
	}
	for i, l := range p.Lines {
		entry.Lines = append(entry.Lines, model.LedgerLine{
			LineID:    id.FormatLineID(entry.ID, i),
			EntryID:   entry.ID,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
		})
	}
	return entry, nil
}

// publishPosted emits JournalEntryPosted after commit. Best-effort: a
// publisher failure is logged, never propagated.
func (e *Engine) publishPosted(ctx context.Context, entry model.JournalEntry) {
	if e.pub == nil {
		return
	}
	evt := events.JournalEntryPosted{
		EventID:     id.New(),
		EntryID:     entry.ID,
		Date:        entry.Date,
		Description: entry.Description,
		TotalDebit:  entry.TotalDebit().StringFixed(2),
		PostedAt:    entry.PostedAt,
	}
	if err := e.pub.Publish(ctx, events.TopicJournalPosted, evt); err != nil {
		e.logger.Warn("publishing journal event failed", "entry", entry.ID, "error", err)
	}
}

func lineKeys(lines []Line) []string {
	keys := make([]string, 0, len(lines))
	for _, l := range lines {
		keys = append(keys, consistency.AccountKey(l.AccountID))
	}
	return keys
}
