// Package accounts owns the chart of accounts. Accounts are append-mostly:
// renaming is allowed, retyping locks once ledger lines reference the
// account, and deletion does not exist.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Registry provides lookup and maintenance of the chart of accounts.
type Registry struct {
	store   storage.AccountStore
	journal storage.JournalStore
	sup     *consistency.Supervisor
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a Registry. The journal store is consulted only to
// decide whether an account's type is locked.
func NewRegistry(store storage.AccountStore, journal storage.JournalStore, sup *consistency.Supervisor, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		journal: journal,
		sup:     sup,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID blocks per account type, conventional chart numbering: assets 1000s,
// liabilities 2000s, equity 3000s, revenue 4000s, expenses 5000s.
var typeBase = map[model.AccountType]int{
	model.AccountTypeAsset:     1000,
	model.AccountTypeLiability: 2000,
	model.AccountTypeEquity:    3000,
	model.AccountTypeRevenue:   4000,
	model.AccountTypeExpense:   5000,
}

// Create adds a new account and assigns the next free ID in the type's block.
// The chart's exclusive section is held across the ID scan and the save, so
// concurrent creates never mint the same ID.
func (r *Registry) Create(ctx context.Context, name string, typ model.AccountType, description string) (model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Account{}, fault.Invalid("name", "must not be empty")
	}
	if !typ.Valid() {
		return model.Account{}, fault.Invalid("type", "unknown account type %q", typ)
	}

	var a model.Account
	err := r.sup.Serialize(ctx, []string{consistency.ChartKey()}, func() error {
		if _, err := r.store.GetAccountByName(ctx, name); err == nil {
			return fmt.Errorf("account %q: %w", name, fault.ErrDuplicateName)
		} else if !errors.Is(err, fault.ErrNotFound) {
			return err
		}

		nextID, err := r.nextID(ctx, typ)
		if err != nil {
			return err
		}

		a = model.Account{
			ID:          nextID,
			Name:        name,
			Type:        typ,
			Description: description,
			CreatedAt:   r.now().UTC(),
		}
		return r.store.SaveAccount(ctx, a)
	})
	if err != nil {
		return model.Account{}, err
	}

	r.logger.Info("account created", "id", a.ID, "name", a.Name, "type", a.Type)
	return a, nil
}

func (r *Registry) nextID(ctx context.Context, typ model.AccountType) (int, error) {
	all, err := r.store.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	base := typeBase[typ]
	maxID := base
	for _, a := range all {
		if a.ID >= base && a.ID < base+1000 && a.ID > maxID {
			maxID = a.ID
		}
	}
	return maxID + 10, nil
}

// Get returns an account by ID.
func (r *Registry) Get(ctx context.Context, accountID int) (model.Account, error) {
	a, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return model.Account{}, fmt.Errorf("account %d: %w", accountID, err)
	}
	return a, nil
}

// Exists reports whether an account ID exists.
func (r *Registry) Exists(ctx context.Context, accountID int) (bool, error) {
	_, err := r.store.GetAccount(ctx, accountID)
	if errors.Is(err, fault.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all accounts, optionally filtered by type ("" = all).
func (r *Registry) List(ctx context.Context, typ model.AccountType) ([]model.Account, error) {
	all, err := r.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return all, nil
	}
	var out []model.Account
	for _, a := range all {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out, nil
}

// Rename changes an account's display name. The new name must be unique.
func (r *Registry) Rename(ctx context.Context, accountID int, name string) (model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Account{}, fault.Invalid("name", "must not be empty")
	}

	if existing, err := r.store.GetAccountByName(ctx, name); err == nil && existing.ID != accountID {
		return model.Account{}, fmt.Errorf("account %q: %w", name, fault.ErrDuplicateName)
	} else if err != nil && !errors.Is(err, fault.ErrNotFound) {
		return model.Account{}, err
	}

	a, err := r.Get(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	a.Name = name
	if err := r.store.UpdateAccount(ctx, a); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// Retype changes an account's type. It fails with ErrTypeLocked once any
// posted ledger line references the account.
func (r *Registry) Retype(ctx context.Context, accountID int, typ model.AccountType) (model.Account, error) {
	if !typ.Valid() {
		return model.Account{}, fault.Invalid("type", "unknown account type %q", typ)
	}

	a, err := r.Get(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}

	inUse, err := r.journal.AccountInUse(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if inUse {
		return model.Account{}, fmt.Errorf("account %d: %w", accountID, fault.ErrTypeLocked)
	}

	a.Type = typ
	if err := r.store.UpdateAccount(ctx, a); err != nil {
		return model.Account{}, err
	}
	return a, nil
}
