package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// ValidAccountType reports whether t is one of the five account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// BalanceSide is the side on which an account's balance is conventionally positive.
type BalanceSide string

const (
	BalanceDebit  BalanceSide = "debit"
	BalanceCredit BalanceSide = "credit"
)

// NormalBalanceFor derives the normal balance side from an account type.
// Asset and expense accounts carry debit balances; the rest carry credit.
func NormalBalanceFor(t AccountType) BalanceSide {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return BalanceDebit
	}
	return BalanceCredit
}

// TypeOrder returns the fixed report sort position:
// asset, liability, equity, income, expense.
func TypeOrder(t AccountType) int {
	switch t {
	case AccountTypeAsset:
		return 0
	case AccountTypeLiability:
		return 1
	case AccountTypeEquity:
		return 2
	case AccountTypeIncome:
		return 3
	case AccountTypeExpense:
		return 4
	}
	return 5
}

// Account is a row in the chart of accounts. Balances are derived from
// ledger postings; accounts referenced by postings are never hard-deleted,
// only deactivated.
type Account struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenant_id"`
	AccountNumber string      `json:"account_number"`
	Name          string      `json:"name"`
	Type          AccountType `json:"account_type"`
	Subtype       string      `json:"subtype,omitempty"`
	ParentID      string      `json:"parent_id,omitempty"` // empty = top-level; hierarchy is the caller's to keep acyclic
	IsActive      bool        `json:"is_active"`
	IsSystem      bool        `json:"is_system"`
	NormalBalance BalanceSide `json:"normal_balance"`
	// CurrentBalance caches the postings-derived balance on the account's
	// normal side. The ledger postings stay authoritative.
	CurrentBalance decimal.Decimal `json:"current_balance"`
	DisplayOrder   int             `json:"display_order"`
	CreatedAt      time.Time       `json:"created_at"`
}
