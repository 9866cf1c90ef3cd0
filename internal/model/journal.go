package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLine is a single row of a journal entry (one side of a double-entry).
// Exactly one of Debit/Credit is non-zero.
type LedgerLine struct {
	LineID    string // "YYYY-MM-NNNx" where x = a,b,c...
	EntryID   string // "YYYY-MM-NNN"
	AccountID int
	Debit     decimal.Decimal // zero if credit side
	Credit    decimal.Decimal // zero if debit side
}

// Amount returns the non-zero side of the line.
func (l LedgerLine) Amount() decimal.Decimal {
	if !l.Debit.IsZero() {
		return l.Debit
	}
	return l.Credit
}

// JournalEntry is a balanced, atomic group of ledger lines representing one
// business event. Once posted it is immutable; corrections happen through
// reversing entries.
type JournalEntry struct {
	ID          string
	Date        time.Time
	Description string
	Reverses    string // entry ID this entry reverses, empty otherwise
	PostedAt    time.Time
	Lines       []LedgerLine
}

// TotalDebit sums the debit side of all lines.
func (e JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side of all lines.
func (e JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}
