package accounts

import "github.com/greybooks/greybooks/internal/model"

// DefaultChart returns the starter chart of accounts for a new books
// directory.
func DefaultChart() []model.Account {
	return []model.Account{
		{ID: 1010, Name: "Business Checking", Type: model.AccountTypeAsset, Description: "Primary checking account"},
		{ID: 1020, Name: "Inventory Asset", Type: model.AccountTypeAsset, Description: "Stock on hand at cost"},
		{ID: 1030, Name: "Accounts Receivable", Type: model.AccountTypeAsset},
		{ID: 2010, Name: "Accounts Payable", Type: model.AccountTypeLiability},
		{ID: 2020, Name: "Credit Card", Type: model.AccountTypeLiability, Description: "Business credit card"},
		{ID: 3010, Name: "Owner's Equity", Type: model.AccountTypeEquity},
		{ID: 4010, Name: "Sales Revenue", Type: model.AccountTypeRevenue},
		{ID: 5010, Name: "Cost of Goods Sold", Type: model.AccountTypeExpense},
		{ID: 5020, Name: "Rent & Utilities", Type: model.AccountTypeExpense},
		{ID: 5030, Name: "Office Supplies", Type: model.AccountTypeExpense},
	}
}
