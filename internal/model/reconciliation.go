package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconStatus is the lifecycle state of a statement reconciliation.
// in_progress -> completed or voided; voided is also reachable from
// completed and releases the claimed transactions.
type ReconStatus string

const (
	ReconInProgress ReconStatus = "in_progress"
	ReconCompleted  ReconStatus = "completed"
	ReconVoided     ReconStatus = "voided"
)

// Reconciliation tracks one statement period against one bank account.
// ClearedBalance and Difference are nil until the first cleared-balance
// update. At most one in_progress reconciliation may exist per bank
// account.
type Reconciliation struct {
	ID                     string           `json:"id"`
	TenantID               string           `json:"tenant_id"`
	BankAccountID          string           `json:"bank_account_id"`
	StatementDate          time.Time        `json:"statement_date"`
	StatementEndingBalance decimal.Decimal  `json:"statement_ending_balance"`
	ClearedBalance         *decimal.Decimal `json:"cleared_balance,omitempty"`
	Difference             *decimal.Decimal `json:"difference,omitempty"`
	Status                 ReconStatus      `json:"status"`
	Notes                  string           `json:"notes,omitempty"`
	CreatedBy              string           `json:"created_by"`
	CreatedAt              time.Time        `json:"created_at"`
	CompletedBy            string           `json:"completed_by,omitempty"`
	CompletedAt            *time.Time       `json:"completed_at,omitempty"`
}
