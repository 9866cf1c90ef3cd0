// Package consistency guarantees the write discipline the engines rely on:
// at most one in-flight commit per account or item, idempotent retry for
// token-carrying commands, and bounded automatic retry of transient faults.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/storage"
)

// Supervisor serializes conflicting writes per entity key and retries
// transient commit failures.
type Supervisor struct {
	mapMu sync.Mutex
	locks map[string]*sync.Mutex

	idem     storage.IdempotencyStore
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithRetry sets the total number of commit attempts and the initial backoff
// delay. The delay doubles between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Supervisor) {
		s.attempts = attempts
		s.delay = delay
	}
}

// New creates a Supervisor backed by an idempotency store.
func New(idem storage.IdempotencyStore, opts ...Option) *Supervisor {
	s := &Supervisor{
		locks:    make(map[string]*sync.Mutex),
		idem:     idem,
		attempts: 3,
		delay:    50 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccountKey returns the exclusive-section key for an account.
func AccountKey(accountID int) string { return "account/" + strconv.Itoa(accountID) }

// ItemKey returns the exclusive-section key for an inventory item.
func ItemKey(itemID int) string { return "item/" + strconv.Itoa(itemID) }

// MonthKey returns the exclusive-section key for a journal month's entry
// sequence. Posting holds it so concurrent entries never mint the same ID.
func MonthKey(year, month int) string {
	return fmt.Sprintf("journal/%04d-%02d", year, month)
}

// ChartKey returns the exclusive-section key for chart-of-accounts ID
// assignment.
func ChartKey() string { return "chart" }

// CatalogKey returns the exclusive-section key for inventory item ID
// assignment.
func CatalogKey() string { return "catalog" }

func (s *Supervisor) lockFor(key string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if _, ok := s.locks[key]; !ok {
		s.locks[key] = &sync.Mutex{}
	}
	return s.locks[key]
}

// Serialize runs fn while holding the exclusive section of every key. Keys
// are deduplicated and acquired in sorted order so concurrent commands
// touching the same entities can never deadlock. A command abandoned before
// the sections are granted has no effect; once fn starts it runs to
// completion. Transient failures from fn are retried with doubling backoff
// before surfacing.
func (s *Supervisor) Serialize(ctx context.Context, keys []string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sorted := dedupe(keys)
	for _, key := range sorted {
		mu := s.lockFor(key)
		mu.Lock()
		defer mu.Unlock()
	}

	var err error
	delay := s.delay
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, fault.ErrTransient) {
			return err
		}
		if attempt < s.attempts {
			s.logger.Warn("transient failure, retrying commit",
				"attempt", attempt, "delay", delay, "error", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// Idempotent runs fn at most once per token: a repeated token returns the
// originally recorded result ID with replayed=true and fn is not called. An
// empty token always runs fn. The token's exclusive section is held across
// check and run, so two racing calls with the same token still apply once.
func (s *Supervisor) Idempotent(ctx context.Context, token string, fn func() (string, error)) (resultID string, replayed bool, err error) {
	if token == "" {
		resultID, err = fn()
		return resultID, false, err
	}

	mu := s.lockFor("token/" + token)
	mu.Lock()
	defer mu.Unlock()

	if prior, ok, err := s.idem.GetResult(ctx, token); err != nil {
		return "", false, err
	} else if ok {
		return prior, true, nil
	}

	resultID, err = fn()
	if err != nil {
		return "", false, err
	}

	// The command is already committed; failing to record the token would
	// undo work that cannot be undone, so log and report success.
	if err := s.idem.PutResult(ctx, token, resultID); err != nil {
		s.logger.Warn("recording idempotency token failed", "token", token, "error", err)
	}
	return resultID, false, nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
