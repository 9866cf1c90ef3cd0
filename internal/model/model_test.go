package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccountType(t *testing.T) {
	for _, typ := range AccountTypes {
		assert.True(t, typ.Valid())
	}
	assert.False(t, AccountType("contra").Valid())
	assert.False(t, AccountType("").Valid())

	assert.True(t, AccountTypeAsset.DebitNormal())
	assert.True(t, AccountTypeExpense.DebitNormal())
	assert.False(t, AccountTypeLiability.DebitNormal())
	assert.False(t, AccountTypeEquity.DebitNormal())
	assert.False(t, AccountTypeRevenue.DebitNormal())
}

func TestMovementKind(t *testing.T) {
	for _, kind := range []MovementKind{MovementInbound, MovementOutbound, MovementAdjustment} {
		assert.True(t, kind.Valid())
	}
	assert.False(t, MovementKind("transfer").Valid())
	assert.False(t, MovementKind("").Valid())
}

func TestLedgerLineAmount(t *testing.T) {
	debit := LedgerLine{Debit: decimal.RequireFromString("12.34")}
	assert.True(t, debit.Amount().Equal(decimal.RequireFromString("12.34")))

	credit := LedgerLine{Credit: decimal.RequireFromString("56.78")}
	assert.True(t, credit.Amount().Equal(decimal.RequireFromString("56.78")))
}

func TestJournalEntryTotals(t *testing.T) {
	e := JournalEntry{
		Lines: []LedgerLine{
			{Debit: decimal.RequireFromString("60.00")},
			{Debit: decimal.RequireFromString("40.00")},
			{Credit: decimal.RequireFromString("100.00")},
		},
	}
	assert.True(t, e.TotalDebit().Equal(decimal.RequireFromString("100.00")))
	assert.True(t, e.TotalCredit().Equal(decimal.RequireFromString("100.00")))
}
