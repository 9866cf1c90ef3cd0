// Package reports derives running balances and financial statements from
// posted journal entries. Everything here is a pure fold over committed
// state: no locks, no mutation, and the same inputs always produce the same
// statement.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage"
)

// Builder answers balance and statement queries.
type Builder struct {
	accounts storage.AccountStore
	journal  storage.JournalStore
}

// NewBuilder creates a statement builder over committed ledger state.
func NewBuilder(accounts storage.AccountStore, journal storage.JournalStore) *Builder {
	return &Builder{accounts: accounts, journal: journal}
}

// BalanceOf returns the account's balance over all entries dated on or
// before asOf, signed by the account type's normal balance: debit-normal
// accounts report debits minus credits, credit-normal accounts the reverse.
func (b *Builder) BalanceOf(ctx context.Context, accountID int, asOf time.Time) (decimal.Decimal, error) {
	acct, err := b.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account %d: %w", accountID, err)
	}

	raw, err := b.rawBalances(ctx, time.Time{}, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	bal := raw[accountID]
	if !acct.Type.DebitNormal() {
		bal = bal.Neg()
	}
	return bal, nil
}

// BalanceSheet summarizes financial position as of a date. Equity includes
// retained net income so that Assets == Liabilities + Equity always holds.
type BalanceSheet struct {
	AsOf        time.Time
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	Equity      decimal.Decimal
}

// BalanceSheet folds all entries up to asOf into a balance sheet.
func (b *Builder) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	totals, err := b.typeTotals(ctx, time.Time{}, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}

	retained := totals[model.AccountTypeRevenue].Sub(totals[model.AccountTypeExpense])
	return BalanceSheet{
		AsOf:        asOf,
		Assets:      totals[model.AccountTypeAsset],
		Liabilities: totals[model.AccountTypeLiability],
		Equity:      totals[model.AccountTypeEquity].Add(retained),
	}, nil
}

// IncomeStatement summarizes activity over a period.
type IncomeStatement struct {
	From      time.Time
	To        time.Time
	Revenues  decimal.Decimal
	Expenses  decimal.Decimal
	NetIncome decimal.Decimal
}

// IncomeStatement folds entries dated within [from, to].
func (b *Builder) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	totals, err := b.typeTotals(ctx, from, to)
	if err != nil {
		return IncomeStatement{}, err
	}

	revenues := totals[model.AccountTypeRevenue]
	expenses := totals[model.AccountTypeExpense]
	return IncomeStatement{
		From:      from,
		To:        to,
		Revenues:  revenues,
		Expenses:  expenses,
		NetIncome: revenues.Sub(expenses),
	}, nil
}

// rawBalances folds entries dated within [from, to] into per-account
// debit-minus-credit sums. Zero bounds mean unbounded on that side.
func (b *Builder) rawBalances(ctx context.Context, from, to time.Time) (map[int]decimal.Decimal, error) {
	entries, err := b.journal.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	raw := make(map[int]decimal.Decimal)
	for _, e := range entries {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		for _, l := range e.Lines {
			raw[l.AccountID] = raw[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	return raw, nil
}

// typeTotals sums normal-balance-signed account balances per account type.
func (b *Builder) typeTotals(ctx context.Context, from, to time.Time) (map[model.AccountType]decimal.Decimal, error) {
	raw, err := b.rawBalances(ctx, from, to)
	if err != nil {
		return nil, err
	}
	accts, err := b.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[model.AccountType]decimal.Decimal)
	for _, a := range accts {
		bal, ok := raw[a.ID]
		if !ok {
			continue
		}
		if !a.Type.DebitNormal() {
			bal = bal.Neg()
		}
		totals[a.Type] = totals[a.Type].Add(bal)
	}
	return totals, nil
}
