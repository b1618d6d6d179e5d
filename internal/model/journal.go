package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the lifecycle state of a journal entry.
// Transitions are one-way: draft -> posted -> voided, with voided also
// reachable directly from draft.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "draft"
	EntryPosted EntryStatus = "posted"
	EntryVoided EntryStatus = "voided"
)

// JournalEntry is the header of a manual double-entry. Totals and
// IsBalanced are recomputed from the line set on every write.
type JournalEntry struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	EntryNumber string          `json:"entry_number"`
	EntryDate   time.Time       `json:"entry_date"`
	Memo        string          `json:"memo,omitempty"`
	Status      EntryStatus     `json:"status"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	IsBalanced  bool            `json:"is_balanced"`
	SourceType  string          `json:"source_type,omitempty"` // optional originating subsystem, e.g. "bank_txn"
	SourceID    string          `json:"source_id,omitempty"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	PostedBy    string          `json:"posted_by,omitempty"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	VoidedBy    string          `json:"voided_by,omitempty"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty"`
	VoidReason  string          `json:"void_reason,omitempty"`
	Lines       []JournalLine   `json:"lines,omitempty"`
}

// JournalLine is one side of an entry. Exactly one of DebitAmount and
// CreditAmount is positive, the other zero.
type JournalLine struct {
	ID           string          `json:"id"`
	EntryID      string          `json:"entry_id"`
	AccountID    string          `json:"account_id"`
	Description  string          `json:"description,omitempty"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	LineOrder    int             `json:"line_order"`
}
