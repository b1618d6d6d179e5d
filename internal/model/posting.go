package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies which writer produced a posting.
type SourceType string

const (
	SourceJournalEntry    SourceType = "journal_entry"
	SourceBankTransaction SourceType = "bank_txn"
)

// Posting is an immutable debit or credit against one account.
// Postings are created as a balanced set per source and deleted only as
// a unit when the originating source is voided. For any source ID,
// sum(debit) == sum(credit).
type Posting struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	SourceType   SourceType      `json:"source_type"`
	SourceID     string          `json:"source_id"`
	PostingDate  time.Time       `json:"posting_date"`
	AccountID    string          `json:"account_id"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	Memo         string          `json:"memo,omitempty"`
}
