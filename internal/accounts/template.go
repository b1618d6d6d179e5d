package accounts

import (
	"github.com/tallyhq/tally/internal/fault"
	"github.com/tallyhq/tally/internal/model"
)

// TemplateChart returns the account rows for a named chart template.
func TemplateChart(name string) ([]AccountRow, error) {
	switch name {
	case "", "small_business":
		return smallBusinessChart(), nil
	default:
		return nil, fault.Validation("unknown chart template %q", name)
	}
}

func smallBusinessChart() []AccountRow {
	return []AccountRow{
		{AccountNumber: "1010", Name: "Business Checking", Type: model.AccountTypeAsset, Subtype: "bank"},
		{AccountNumber: "1020", Name: "Business Savings", Type: model.AccountTypeAsset, Subtype: "bank"},
		{AccountNumber: "1200", Name: "Accounts Receivable", Type: model.AccountTypeAsset, Subtype: "receivable", IsSystem: true},
		{AccountNumber: "2010", Name: "Credit Card", Type: model.AccountTypeLiability, Subtype: "credit_card"},
		{AccountNumber: "2100", Name: "Accounts Payable", Type: model.AccountTypeLiability, Subtype: "payable", IsSystem: true},
		{AccountNumber: "3010", Name: "Owner's Equity", Type: model.AccountTypeEquity},
		{AccountNumber: "3900", Name: "Retained Earnings", Type: model.AccountTypeEquity, IsSystem: true},
		{AccountNumber: "4010", Name: "Service Revenue", Type: model.AccountTypeIncome},
		{AccountNumber: "4020", Name: "Product Revenue", Type: model.AccountTypeIncome},
		{AccountNumber: "5010", Name: "Advertising & Marketing", Type: model.AccountTypeExpense},
		{AccountNumber: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense},
		{AccountNumber: "5030", Name: "Office Supplies", Type: model.AccountTypeExpense},
		{AccountNumber: "5040", Name: "Professional Services", Type: model.AccountTypeExpense},
		{AccountNumber: "5050", Name: "Shipping & Postage", Type: model.AccountTypeExpense},
	}
}
