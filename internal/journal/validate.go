package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/storage"
)

// Line is one side of a proposed journal entry, before posting.
type Line struct {
	AccountID int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ValidateLines checks a proposed entry in order: at least two lines, every
// account exists, each line carries exactly one non-negative non-zero side at
// no more than 2 decimal places, and debits equal credits exactly. Nothing is
// written on failure.
func ValidateLines(ctx context.Context, lines []Line, accounts storage.AccountStore) error {
	if len(lines) < 2 {
		return fault.Invalid("lines", "entry needs at least 2 lines, got %d", len(lines))
	}

	for i, l := range lines {
		if _, err := accounts.GetAccount(ctx, l.AccountID); err != nil {
			if errors.Is(err, fault.ErrNotFound) {
				return fmt.Errorf("line %d: account %d: %w", i+1, l.AccountID, fault.ErrNotFound)
			}
			return err
		}
	}

	for i, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fault.Invalid("lines", "line %d: amounts must not be negative", i+1)
		}
		hasDebit := !l.Debit.IsZero()
		hasCredit := !l.Credit.IsZero()
		if hasDebit == hasCredit {
			return fault.Invalid("lines", "line %d: exactly one of debit or credit must be set", i+1)
		}
		amount := l.Debit
		if hasCredit {
			amount = l.Credit
		}
		if !amount.Mul(hundred).Equal(amount.Mul(hundred).Floor()) {
			return fault.Invalid("lines", "line %d: amount %s has more than 2 decimal places", i+1, amount)
		}
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	if !totalDebit.Equal(totalCredit) {
		return fmt.Errorf("debits (%s) != credits (%s): %w",
			totalDebit.StringFixed(2), totalCredit.StringFixed(2), fault.ErrUnbalancedEntry)
	}

	return nil
}
