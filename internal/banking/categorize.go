package banking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/fault"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// CategorizeInput maps a transaction to an account plus optional
// vendor/CRM references. Vendor and CRM ids are opaque here; the engine
// never validates their existence.
type CategorizeInput struct {
	MatchedAccountID   string
	MatchedVendorID    string
	MatchedCRMClientID string
	Notes              string
}

// Categorize records the match and moves the transaction to matched.
// No postings or balances change until Post.
func (s *Service) Categorize(ctx context.Context, txnID string, in CategorizeInput) (*model.BankTransaction, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "bank_txn.categorize", "bank_transaction") {
		return nil, fault.Authorization("bank_txn.categorize")
	}
	if in.MatchedAccountID == "" {
		return nil, fault.Validation("an account to categorize against is required")
	}

	var txn *model.BankTransaction
	err = s.db.Transaction(func(tx *sql.Tx) error {
		txn, err = getTransactionTx(tx, scope.TenantID, txnID)
		if err != nil {
			return err
		}
		switch txn.Status {
		case model.TxnPosted:
			return fault.Conflict("transaction is already posted")
		case model.TxnExcluded:
			return fault.Conflict("transaction is excluded")
		}
		if err := checkAccountTx(tx, scope.TenantID, in.MatchedAccountID); err != nil {
			return err
		}

		_, err = tx.Exec(`UPDATE bank_transactions
			SET status = ?, matched_account_id = ?, matched_vendor_id = ?, matched_crm_client_id = ?, notes = ?
			WHERE id = ? AND tenant_id = ?`,
			string(model.TxnMatched), in.MatchedAccountID, in.MatchedVendorID,
			in.MatchedCRMClientID, in.Notes, txnID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("categorizing transaction: %w", err)
		}
		txn.Status = model.TxnMatched
		txn.MatchedAccountID = in.MatchedAccountID
		txn.MatchedVendorID = in.MatchedVendorID
		txn.MatchedCRMClientID = in.MatchedCRMClientID
		txn.Notes = in.Notes
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "bank_txn.categorize",
		EntityType: "bank_transaction", EntityID: txnID,
		Metadata: map[string]any{"matched_account_id": in.MatchedAccountID},
	})
	return txn, nil
}

// Post emits the transaction's two-sided posting pair and moves it to
// posted, atomically. The pair is derived, not caller-supplied: the
// bank's linked COA account takes the money side (debit when money
// comes in), the matched account the opposite side, both at |amount|.
func (s *Service) Post(ctx context.Context, txnID string) (*model.BankTransaction, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "bank_txn.post", "bank_transaction") {
		return nil, fault.Authorization("bank_txn.post")
	}

	var txn *model.BankTransaction
	err = s.db.Transaction(func(tx *sql.Tx) error {
		txn, err = getTransactionTx(tx, scope.TenantID, txnID)
		if err != nil {
			return err
		}
		switch txn.Status {
		case model.TxnPosted:
			return fault.Conflict("transaction is already posted")
		case model.TxnExcluded:
			return fault.Conflict("transaction is excluded")
		}
		if txn.MatchedAccountID == "" {
			return fault.Validation("transaction must be categorized before posting")
		}

		bankAccount, err := getBankAccountTx(tx, scope.TenantID, txn.BankAccountID)
		if err != nil {
			return err
		}
		if bankAccount.COAAccountID == "" {
			return fault.Validation("bank account must be mapped to a COA account before posting")
		}

		now := time.Now().UTC()
		res, err := tx.Exec(`UPDATE bank_transactions
			SET status = ?, posted_date = ?
			WHERE id = ? AND tenant_id = ? AND status = ?`,
			string(model.TxnPosted), store.FormatDate(now),
			txnID, scope.TenantID, string(model.TxnMatched))
		if err != nil {
			return fmt.Errorf("posting transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fault.Conflict("transaction was changed concurrently")
		}
		txn.Status = model.TxnPosted
		txn.PostedDate = &now

		isMoneyIn := txn.Amount.IsPositive()
		magnitude := txn.Amount.Abs()

		bankPosting := model.Posting{
			ID:          uuid.NewString(),
			TenantID:    scope.TenantID,
			SourceType:  model.SourceBankTransaction,
			SourceID:    txn.ID,
			PostingDate: txn.TransactionDate,
			AccountID:   bankAccount.COAAccountID,
			Memo:        txn.Description,
		}
		matchedPosting := model.Posting{
			ID:          uuid.NewString(),
			TenantID:    scope.TenantID,
			SourceType:  model.SourceBankTransaction,
			SourceID:    txn.ID,
			PostingDate: txn.TransactionDate,
			AccountID:   txn.MatchedAccountID,
			Memo:        txn.Description,
		}
		if isMoneyIn {
			bankPosting.DebitAmount = magnitude
			matchedPosting.CreditAmount = magnitude
		} else {
			bankPosting.CreditAmount = magnitude
			matchedPosting.DebitAmount = magnitude
		}
		if err := ledger.InsertSetTx(tx, []model.Posting{bankPosting, matchedPosting}); err != nil {
			return err
		}

		newBalance := bankAccount.CurrentBalance.Add(txn.Amount)
		_, err = tx.Exec(`UPDATE bank_accounts SET current_balance = ? WHERE id = ? AND tenant_id = ?`,
			newBalance.String(), bankAccount.ID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("updating bank balance cache: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "bank_txn.post",
		EntityType: "bank_transaction", EntityID: txnID,
		Metadata: map[string]any{"amount": txn.Amount.String()},
	})
	return txn, nil
}

// Exclude removes a transaction from consideration. Terminal; posted
// transactions cannot be excluded.
func (s *Service) Exclude(ctx context.Context, txnID string) (*model.BankTransaction, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "bank_txn.exclude", "bank_transaction") {
		return nil, fault.Authorization("bank_txn.exclude")
	}

	var txn *model.BankTransaction
	err = s.db.Transaction(func(tx *sql.Tx) error {
		txn, err = getTransactionTx(tx, scope.TenantID, txnID)
		if err != nil {
			return err
		}
		switch txn.Status {
		case model.TxnPosted:
			return fault.Conflict("posted transactions cannot be excluded")
		case model.TxnExcluded:
			return fault.Conflict("transaction is already excluded")
		}

		res, err := tx.Exec(`UPDATE bank_transactions SET status = ?
			WHERE id = ? AND tenant_id = ? AND status IN (?, ?)`,
			string(model.TxnExcluded), txnID, scope.TenantID,
			string(model.TxnUnmatched), string(model.TxnMatched))
		if err != nil {
			return fmt.Errorf("excluding transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fault.Conflict("transaction was changed concurrently")
		}
		txn.Status = model.TxnExcluded
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "bank_txn.exclude",
		EntityType: "bank_transaction", EntityID: txnID,
	})
	return txn, nil
}

// Suggestion is a categorization hint from a previously matched
// transaction with a similar description.
type Suggestion struct {
	AccountID   string `json:"account_id"`
	Description string `json:"description"`
	Distance    int    `json:"distance"`
}

// SuggestAccount finds the already-categorized transaction in the same
// tenant whose description is closest by edit distance and suggests its
// account. Returns nil when nothing has been categorized yet.
func (s *Service) SuggestAccount(ctx context.Context, txnID string) (*Suggestion, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	txn, err := s.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT description, matched_account_id FROM bank_transactions
		WHERE tenant_id = ? AND id != ? AND matched_account_id IS NOT NULL`,
		scope.TenantID, txnID)
	if err != nil {
		return nil, fmt.Errorf("loading categorized transactions: %w", err)
	}
	defer rows.Close()

	var best *Suggestion
	for rows.Next() {
		var desc, accountID string
		if err := rows.Scan(&desc, &accountID); err != nil {
			return nil, err
		}
		d := levenshtein.ComputeDistance(txn.Description, desc)
		if best == nil || d < best.Distance {
			best = &Suggestion{AccountID: accountID, Description: desc, Distance: d}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return best, nil
}
