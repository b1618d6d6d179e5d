// Package reconcile matches a bank account's posted transactions
// against a bank statement. Completion is gated on a zero difference
// and atomically claims the cleared transactions; voiding releases
// the claim.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/fault"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// Epsilon is the completion tolerance for the statement difference.
// It absorbs floating rounding from callers, nothing more.
var Epsilon = decimal.New(1, -2) // 0.01

// Service provides reconciliation operations.
type Service struct {
	db      *store.DB
	authz   tenant.Authorizer
	auditor audit.Recorder
	log     *slog.Logger
}

// NewService creates a reconcile Service.
func NewService(db *store.DB, authz tenant.Authorizer, auditor audit.Recorder, log *slog.Logger) *Service {
	return &Service{db: db, authz: authz, auditor: auditor, log: log}
}

const reconCols = `id, tenant_id, bank_account_id, statement_date, statement_ending_balance,
	cleared_balance, difference, status, notes, created_by, created_at, completed_by, completed_at`

// Start opens a reconciliation for one statement period. At most one
// may be in progress per bank account; the schema enforces it, so a
// concurrent start loses cleanly.
func (s *Service) Start(ctx context.Context, bankAccountID string, statementDate time.Time, statementEndingBalance decimal.Decimal, notes string) (*model.Reconciliation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "reconciliation.start", "reconciliation") {
		return nil, fault.Authorization("reconciliation.start")
	}

	recon := &model.Reconciliation{
		ID:                     uuid.NewString(),
		TenantID:               scope.TenantID,
		BankAccountID:          bankAccountID,
		StatementDate:          statementDate,
		StatementEndingBalance: statementEndingBalance,
		Status:                 model.ReconInProgress,
		Notes:                  notes,
		CreatedBy:              scope.ActorID,
		CreatedAt:              time.Now().UTC(),
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRow(`SELECT 1 FROM bank_accounts WHERE id = ? AND tenant_id = ?`,
			bankAccountID, scope.TenantID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fault.NotFound("bank account", bankAccountID)
		}
		if err != nil {
			return fmt.Errorf("checking bank account: %w", err)
		}

		_, err = tx.Exec(`INSERT INTO bank_reconciliations
			(id, tenant_id, bank_account_id, statement_date, statement_ending_balance,
			 cleared_balance, difference, status, notes, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, NULL, NULL, ?, ?, ?, ?)`,
			recon.ID, recon.TenantID, recon.BankAccountID,
			store.FormatDate(recon.StatementDate), recon.StatementEndingBalance.String(),
			string(recon.Status), recon.Notes, recon.CreatedBy, store.FormatTime(recon.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fault.Conflict("there is already an open reconciliation for this bank account")
			}
			return fmt.Errorf("starting reconciliation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "reconciliation.start",
		EntityType: "reconciliation", EntityID: recon.ID,
		Metadata: map[string]any{"bank_account_id": bankAccountID},
	})
	return recon, nil
}

// UpdateClearedBalance records the running sum of transactions the user
// has marked cleared and recomputes the difference. Purely advisory
// until completion.
func (s *Service) UpdateClearedBalance(ctx context.Context, reconciliationID string, clearedBalance decimal.Decimal) (*model.Reconciliation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "reconciliation.update", "reconciliation") {
		return nil, fault.Authorization("reconciliation.update")
	}

	var recon *model.Reconciliation
	err = s.db.Transaction(func(tx *sql.Tx) error {
		recon, err = getReconciliationTx(tx, scope.TenantID, reconciliationID)
		if err != nil {
			return err
		}
		if recon.Status != model.ReconInProgress {
			return fault.Conflict("reconciliation is %s", recon.Status)
		}

		difference := recon.StatementEndingBalance.Sub(clearedBalance)
		_, err = tx.Exec(`UPDATE bank_reconciliations
			SET cleared_balance = ?, difference = ?
			WHERE id = ? AND tenant_id = ?`,
			clearedBalance.String(), difference.String(), reconciliationID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("updating cleared balance: %w", err)
		}
		recon.ClearedBalance = &clearedBalance
		recon.Difference = &difference
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recon, nil
}

// ListEligibleTransactions returns the transactions a user may mark
// cleared for a statement: posted, unclaimed, dated on or before the
// statement date, newest first. Read-only.
func (s *Service) ListEligibleTransactions(ctx context.Context, bankAccountID string, statementDate time.Time) ([]model.BankTransaction, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT id, transaction_date, description, amount FROM bank_transactions
		WHERE tenant_id = ? AND bank_account_id = ? AND status = ?
		  AND reconciliation_id IS NULL AND transaction_date <= ?
		ORDER BY transaction_date DESC, id`,
		scope.TenantID, bankAccountID, string(model.TxnPosted), store.FormatDate(statementDate))
	if err != nil {
		return nil, fmt.Errorf("listing eligible transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.BankTransaction
	for rows.Next() {
		var t model.BankTransaction
		var txnDate, amount string
		if err := rows.Scan(&t.ID, &txnDate, &t.Description, &amount); err != nil {
			return nil, err
		}
		if t.TransactionDate, err = store.ParseDate(txnDate); err != nil {
			return nil, fmt.Errorf("parsing transaction date: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing transaction amount: %w", err)
		}
		t.TenantID = scope.TenantID
		t.BankAccountID = bankAccountID
		t.Status = model.TxnPosted
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Complete closes the reconciliation. It fails while the difference is
// outside Epsilon, and otherwise claims every cleared transaction and
// flips the status in one transaction. Claims only move from unclaimed.
func (s *Service) Complete(ctx context.Context, reconciliationID string, clearedTransactionIDs []string) (*model.Reconciliation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "reconciliation.complete", "reconciliation") {
		return nil, fault.Authorization("reconciliation.complete")
	}

	var recon *model.Reconciliation
	err = s.db.Transaction(func(tx *sql.Tx) error {
		recon, err = getReconciliationTx(tx, scope.TenantID, reconciliationID)
		if err != nil {
			return err
		}
		if recon.Status != model.ReconInProgress {
			return fault.Conflict("reconciliation is %s", recon.Status)
		}
		if recon.Difference == nil || recon.Difference.Abs().GreaterThan(Epsilon) {
			return fault.Validation("cannot complete reconciliation: difference must be zero")
		}

		for _, txnID := range clearedTransactionIDs {
			res, err := tx.Exec(`UPDATE bank_transactions SET reconciliation_id = ?
				WHERE id = ? AND tenant_id = ? AND reconciliation_id IS NULL`,
				reconciliationID, txnID, scope.TenantID)
			if err != nil {
				return fmt.Errorf("claiming transaction %s: %w", txnID, err)
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return fault.Conflict("transaction %s is already claimed by another reconciliation", txnID)
			}
		}

		now := time.Now().UTC()
		res, err := tx.Exec(`UPDATE bank_reconciliations
			SET status = ?, completed_by = ?, completed_at = ?
			WHERE id = ? AND tenant_id = ? AND status = ?`,
			string(model.ReconCompleted), scope.ActorID, store.FormatTime(now),
			reconciliationID, scope.TenantID, string(model.ReconInProgress))
		if err != nil {
			return fmt.Errorf("completing reconciliation: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fault.Conflict("reconciliation was changed concurrently")
		}
		recon.Status = model.ReconCompleted
		recon.CompletedBy = scope.ActorID
		recon.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "reconciliation.complete",
		EntityType: "reconciliation", EntityID: reconciliationID,
		Metadata: map[string]any{"cleared_count": len(clearedTransactionIDs)},
	})
	return recon, nil
}

// Void releases every transaction the reconciliation claims and marks
// it voided. Reachable from in_progress and completed.
func (s *Service) Void(ctx context.Context, reconciliationID string) (*model.Reconciliation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "reconciliation.void", "reconciliation") {
		return nil, fault.Authorization("reconciliation.void")
	}

	var recon *model.Reconciliation
	err = s.db.Transaction(func(tx *sql.Tx) error {
		recon, err = getReconciliationTx(tx, scope.TenantID, reconciliationID)
		if err != nil {
			return err
		}
		if recon.Status == model.ReconVoided {
			return fault.Conflict("reconciliation is already voided")
		}

		if _, err := tx.Exec(`UPDATE bank_transactions SET reconciliation_id = NULL
			WHERE tenant_id = ? AND reconciliation_id = ?`,
			scope.TenantID, reconciliationID); err != nil {
			return fmt.Errorf("releasing claimed transactions: %w", err)
		}

		res, err := tx.Exec(`UPDATE bank_reconciliations SET status = ?
			WHERE id = ? AND tenant_id = ? AND status != ?`,
			string(model.ReconVoided), reconciliationID, scope.TenantID, string(model.ReconVoided))
		if err != nil {
			return fmt.Errorf("voiding reconciliation: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fault.Conflict("reconciliation was changed concurrently")
		}
		recon.Status = model.ReconVoided
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "reconciliation.void",
		EntityType: "reconciliation", EntityID: reconciliationID,
	})
	return recon, nil
}

// Get returns one reconciliation within the caller's tenant.
func (s *Service) Get(ctx context.Context, reconciliationID string) (*model.Reconciliation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	var recon *model.Reconciliation
	err = s.db.Transaction(func(tx *sql.Tx) error {
		recon, err = getReconciliationTx(tx, scope.TenantID, reconciliationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recon, nil
}

func getReconciliationTx(tx *sql.Tx, tenantID, reconciliationID string) (*model.Reconciliation, error) {
	row := tx.QueryRow(`SELECT `+reconCols+` FROM bank_reconciliations
		WHERE id = ? AND tenant_id = ?`, reconciliationID, tenantID)
	recon, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("reconciliation", reconciliationID)
	}
	return recon, err
}

func scanReconciliation(row *sql.Row) (*model.Reconciliation, error) {
	var r model.Reconciliation
	var statementDate, endingBalance, createdAt string
	var cleared, difference, completedAt sql.NullString
	err := row.Scan(&r.ID, &r.TenantID, &r.BankAccountID, &statementDate, &endingBalance,
		&cleared, &difference, (*string)(&r.Status), &r.Notes, &r.CreatedBy, &createdAt,
		&r.CompletedBy, &completedAt)
	if err != nil {
		return nil, err
	}

	if r.StatementDate, err = store.ParseDate(statementDate); err != nil {
		return nil, fmt.Errorf("parsing statement date: %w", err)
	}
	if r.StatementEndingBalance, err = decimal.NewFromString(endingBalance); err != nil {
		return nil, fmt.Errorf("parsing statement balance: %w", err)
	}
	if r.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing reconciliation created_at: %w", err)
	}
	if cleared.Valid {
		d, err := decimal.NewFromString(cleared.String)
		if err != nil {
			return nil, fmt.Errorf("parsing cleared balance: %w", err)
		}
		r.ClearedBalance = &d
	}
	if difference.Valid {
		d, err := decimal.NewFromString(difference.String)
		if err != nil {
			return nil, fmt.Errorf("parsing difference: %w", err)
		}
		r.Difference = &d
	}
	if completedAt.Valid {
		t, err := store.ParseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		r.CompletedAt = &t
	}
	return &r, nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint
// failure, without depending on driver error types here.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
