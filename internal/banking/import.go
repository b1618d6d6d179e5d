package banking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/fault"
	"github.com/tallyhq/tally/internal/id"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// ImportResult reports the outcome of one import batch.
type ImportResult struct {
	BatchID  string `json:"batch_id"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// ImportBatch ingests parsed statement rows into a bank account. Rows
// whose content hash already exists for the account are silently
// skipped and counted; the rest share one batch id and start unmatched.
// Importing the same batch twice imports nothing the second time.
func (s *Service) ImportBatch(ctx context.Context, bankAccountID string, rows []model.ImportedTransaction) (*ImportResult, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "bank_txn.import", "bank_transaction") {
		return nil, fault.Authorization("bank_txn.import")
	}
	if bankAccountID == "" {
		return nil, fault.Validation("bank account is required")
	}

	result := &ImportResult{BatchID: id.FormatBatchID(time.Now())}
	err = s.db.Transaction(func(tx *sql.Tx) error {
		if _, err := getBankAccountTx(tx, scope.TenantID, bankAccountID); err != nil {
			return err
		}

		for _, row := range rows {
			res, err := tx.Exec(`INSERT INTO bank_transactions
				(id, tenant_id, bank_account_id, transaction_date, description, amount,
				 status, import_batch_id, import_hash)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(bank_account_id, import_hash) DO NOTHING`,
				uuid.NewString(), scope.TenantID, bankAccountID,
				store.FormatDate(row.Date), row.Description, row.Amount.String(),
				string(model.TxnUnmatched), result.BatchID, ImportHash(row))
			if err != nil {
				return fmt.Errorf("importing row %q: %w", row.Description, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				result.Imported++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "bank_txn.import",
		EntityType: "bank_account", EntityID: bankAccountID,
		Metadata: map[string]any{
			"batch_id": result.BatchID,
			"imported": result.Imported,
			"skipped":  result.Skipped,
		},
	})
	return result, nil
}

// ImportHash is the content key used for idempotent dedup within one
// bank account: date|amount|description truncated to 50 bytes. It is a
// dedup key, not an integrity hash.
func ImportHash(row model.ImportedTransaction) string {
	desc := row.Description
	if len(desc) > 50 {
		desc = desc[:50]
	}
	return fmt.Sprintf("%s|%s|%s", store.FormatDate(row.Date), row.Amount.String(), desc)
}
