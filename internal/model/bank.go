package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is an external account transactions are imported into.
// COAAccountID links it to the chart-of-accounts account that represents
// it on the balance sheet; the link is required before any of its
// transactions can post.
type BankAccount struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	Name          string `json:"name"`
	Institution   string `json:"institution,omitempty"`
	AccountNumber string `json:"account_number,omitempty"` // masked, last four only
	Type          string `json:"account_type,omitempty"`
	Currency      string `json:"currency"`
	COAAccountID  string `json:"coa_account_id,omitempty"`
	// CurrentBalance caches the sum of posted transaction amounts.
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TxnStatus is the lifecycle state of an imported bank transaction.
// unmatched -> matched -> posted is the only path to postings;
// excluded is terminal from unmatched or matched.
type TxnStatus string

const (
	TxnUnmatched TxnStatus = "unmatched"
	TxnMatched   TxnStatus = "matched"
	TxnPosted    TxnStatus = "posted"
	TxnExcluded  TxnStatus = "excluded"
)

// BankTransaction is one imported bank statement row. Amount is signed:
// positive = money in. ReconciliationID is an ownership token set only
// while a reconciliation has claimed the transaction.
type BankTransaction struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenant_id"`
	BankAccountID      string          `json:"bank_account_id"`
	TransactionDate    time.Time       `json:"transaction_date"`
	Description        string          `json:"description"`
	Amount             decimal.Decimal `json:"amount"`
	Status             TxnStatus       `json:"status"`
	MatchedAccountID   string          `json:"matched_account_id,omitempty"`
	MatchedVendorID    string          `json:"matched_vendor_id,omitempty"`
	MatchedCRMClientID string          `json:"matched_crm_client_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	JournalEntryID     string          `json:"journal_entry_id,omitempty"`
	ReconciliationID   string          `json:"reconciliation_id,omitempty"`
	PostedDate         *time.Time      `json:"posted_date,omitempty"`
	ImportBatchID      string          `json:"import_batch_id,omitempty"`
	ImportHash         string          `json:"-"`
}

// ImportedTransaction is a parsed statement row before persistence.
type ImportedTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = money out
	Reference   string
}
