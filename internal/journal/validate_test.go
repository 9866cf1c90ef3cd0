package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybooks/greybooks/internal/fault"
	"github.com/greybooks/greybooks/internal/model"
	"github.com/greybooks/greybooks/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func newTestAccounts(t *testing.T, ids ...int) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, accountID := range ids {
		typ := model.AccountTypeAsset
		if accountID >= 4000 {
			typ = model.AccountTypeRevenue
		}
		require.NoError(t, store.SaveAccount(context.Background(), model.Account{
			ID:   accountID,
			Name: "Account " + decimal.NewFromInt(int64(accountID)).String(),
			Type: typ,
		}))
	}
	return store
}

func TestValidateLines_TooFew(t *testing.T) {
	store := newTestAccounts(t, 1010)

	err := ValidateLines(context.Background(), []Line{{AccountID: 1010, Debit: dec("5.00")}}, store)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestValidateLines_UnknownAccount(t *testing.T) {
	store := newTestAccounts(t, 1010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010, Debit: dec("5.00")},
		{AccountID: 4010, Credit: dec("5.00")}, // does not exist
	}, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestValidateLines_BothSidesSet(t *testing.T) {
	store := newTestAccounts(t, 1010, 4010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010, Debit: dec("5.00"), Credit: dec("5.00")},
		{AccountID: 4010, Credit: dec("5.00")},
	}, store)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestValidateLines_NeitherSideSet(t *testing.T) {
	store := newTestAccounts(t, 1010, 4010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010},
		{AccountID: 4010, Credit: dec("5.00")},
	}, store)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestValidateLines_NegativeAmount(t *testing.T) {
	store := newTestAccounts(t, 1010, 4010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010, Debit: dec("-5.00")},
		{AccountID: 4010, Credit: dec("-5.00")},
	}, store)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestValidateLines_TooManyDecimalPlaces(t *testing.T) {
	store := newTestAccounts(t, 1010, 4010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010, Debit: dec("5.001")},
		{AccountID: 4010, Credit: dec("5.001")},
	}, store)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestValidateLines_Unbalanced(t *testing.T) {
	store := newTestAccounts(t, 1010, 4010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010, Debit: dec("100.00")},
		{AccountID: 4010, Credit: dec("99.99")},
	}, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrUnbalancedEntry)
	assert.False(t, errors.Is(err, fault.ErrTransient))
}

func TestValidateLines_BalancedMultiLine(t *testing.T) {
	store := newTestAccounts(t, 1010, 1020, 4010)

	err := ValidateLines(context.Background(), []Line{
		{AccountID: 1010, Debit: dec("60.00")},
		{AccountID: 1020, Debit: dec("40.00")},
		{AccountID: 4010, Credit: dec("100.00")},
	}, store)
	assert.NoError(t, err)
}
