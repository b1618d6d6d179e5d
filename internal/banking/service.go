// Package banking owns bank accounts and their imported transactions:
// batch import with content-hash dedup, categorization, and posting of
// the two-sided ledger pair for each transaction.
package banking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/fault"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// Service provides bank account and bank transaction operations.
type Service struct {
	db      *store.DB
	authz   tenant.Authorizer
	auditor audit.Recorder
	log     *slog.Logger
}

// NewService creates a banking Service.
func NewService(db *store.DB, authz tenant.Authorizer, auditor audit.Recorder, log *slog.Logger) *Service {
	return &Service{db: db, authz: authz, auditor: auditor, log: log}
}

const bankAccountCols = `id, tenant_id, name, institution, account_number, account_type,
	currency, coa_account_id, current_balance, is_active, created_at`

const txnCols = `id, tenant_id, bank_account_id, transaction_date, description, amount, status,
	matched_account_id, matched_vendor_id, matched_crm_client_id, notes, journal_entry_id,
	reconciliation_id, posted_date, import_batch_id, import_hash`

// CreateBankAccountInput holds the fields for a new bank account.
type CreateBankAccountInput struct {
	Name          string
	Institution   string
	AccountNumber string // stored masked; only the last four are kept
	Type          string
	Currency      string
	COAAccountID  string
}

// CreateBankAccount registers a bank account. Linking a COA account may
// happen here or later via LinkCOAAccount, but is required before any
// of the account's transactions can post.
func (s *Service) CreateBankAccount(ctx context.Context, in CreateBankAccountInput) (*model.BankAccount, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "bank_account.create", "bank_account") {
		return nil, fault.Authorization("bank_account.create")
	}
	if in.Name == "" {
		return nil, fault.Validation("bank account name is required")
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	account := &model.BankAccount{
		ID:            uuid.NewString(),
		TenantID:      scope.TenantID,
		Name:          in.Name,
		Institution:   in.Institution,
		AccountNumber: maskNumber(in.AccountNumber),
		Type:          in.Type,
		Currency:      currency,
		COAAccountID:  in.COAAccountID,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		if account.COAAccountID != "" {
			if err := checkAccountTx(tx, scope.TenantID, account.COAAccountID); err != nil {
				return err
			}
		}
		var coa any
		if account.COAAccountID != "" {
			coa = account.COAAccountID
		}
		_, err := tx.Exec(`INSERT INTO bank_accounts (`+bankAccountCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, '0', ?, ?)`,
			account.ID, account.TenantID, account.Name, account.Institution,
			account.AccountNumber, account.Type, account.Currency, coa,
			account.IsActive, store.FormatTime(account.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting bank account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "bank_account.create",
		EntityType: "bank_account", EntityID: account.ID,
		Metadata: map[string]any{"name": account.Name},
	})
	return account, nil
}

// LinkCOAAccount points a bank account at the chart-of-accounts account
// that represents it.
func (s *Service) LinkCOAAccount(ctx context.Context, bankAccountID, coaAccountID string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if !s.authz.Can(scope, "bank_account.link", "bank_account") {
		return fault.Authorization("bank_account.link")
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		if _, err := getBankAccountTx(tx, scope.TenantID, bankAccountID); err != nil {
			return err
		}
		if err := checkAccountTx(tx, scope.TenantID, coaAccountID); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE bank_accounts SET coa_account_id = ? WHERE id = ? AND tenant_id = ?`,
			coaAccountID, bankAccountID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("linking COA account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "bank_account.link",
		EntityType: "bank_account", EntityID: bankAccountID,
		Metadata: map[string]any{"coa_account_id": coaAccountID},
	})
	return nil
}

// GetBankAccount returns one bank account within the caller's tenant.
func (s *Service) GetBankAccount(ctx context.Context, bankAccountID string) (*model.BankAccount, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	var account *model.BankAccount
	err = s.db.Transaction(func(tx *sql.Tx) error {
		account, err = getBankAccountTx(tx, scope.TenantID, bankAccountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListBankAccounts returns the tenant's bank accounts.
func (s *Service) ListBankAccounts(ctx context.Context) ([]model.BankAccount, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT `+bankAccountCols+` FROM bank_accounts
		WHERE tenant_id = ? ORDER BY name`, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("listing bank accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.BankAccount
	for rows.Next() {
		account, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// ListTransactions returns a bank account's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, bankAccountID string) ([]model.BankTransaction, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT `+txnCols+` FROM bank_transactions
		WHERE tenant_id = ? AND bank_account_id = ?
		ORDER BY transaction_date DESC, id`, scope.TenantID, bankAccountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.BankTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// GetTransaction returns one transaction within the caller's tenant.
func (s *Service) GetTransaction(ctx context.Context, txnID string) (*model.BankTransaction, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	var txn *model.BankTransaction
	err = s.db.Transaction(func(tx *sql.Tx) error {
		txn, err = getTransactionTx(tx, scope.TenantID, txnID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func maskNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}

func checkAccountTx(tx *sql.Tx, tenantID, accountID string) error {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM accounts WHERE id = ? AND tenant_id = ?`,
		accountID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fault.NotFound("account", accountID)
	}
	if err != nil {
		return fmt.Errorf("checking account %s: %w", accountID, err)
	}
	return nil
}

func getBankAccountTx(tx *sql.Tx, tenantID, bankAccountID string) (*model.BankAccount, error) {
	row := tx.QueryRow(`SELECT `+bankAccountCols+` FROM bank_accounts
		WHERE id = ? AND tenant_id = ?`, bankAccountID, tenantID)
	account, err := scanBankAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("bank account", bankAccountID)
	}
	return account, err
}

func getTransactionTx(tx *sql.Tx, tenantID, txnID string) (*model.BankTransaction, error) {
	row := tx.QueryRow(`SELECT `+txnCols+` FROM bank_transactions
		WHERE id = ? AND tenant_id = ?`, txnID, tenantID)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("bank transaction", txnID)
	}
	return txn, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBankAccount(sc rowScanner) (*model.BankAccount, error) {
	var a model.BankAccount
	var coa sql.NullString
	var balance, createdAt string
	err := sc.Scan(&a.ID, &a.TenantID, &a.Name, &a.Institution, &a.AccountNumber,
		&a.Type, &a.Currency, &coa, &balance, &a.IsActive, &createdAt)
	if err != nil {
		return nil, err
	}
	a.COAAccountID = coa.String
	if a.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing bank account balance: %w", err)
	}
	if a.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing bank account created_at: %w", err)
	}
	return &a, nil
}

func scanTransaction(sc rowScanner) (*model.BankTransaction, error) {
	var t model.BankTransaction
	var txnDate, amount string
	var matchedAccount, reconciliationID, postedDate sql.NullString
	err := sc.Scan(&t.ID, &t.TenantID, &t.BankAccountID, &txnDate, &t.Description,
		&amount, (*string)(&t.Status), &matchedAccount, &t.MatchedVendorID,
		&t.MatchedCRMClientID, &t.Notes, &t.JournalEntryID, &reconciliationID,
		&postedDate, &t.ImportBatchID, &t.ImportHash)
	if err != nil {
		return nil, err
	}
	t.MatchedAccountID = matchedAccount.String
	t.ReconciliationID = reconciliationID.String
	if t.TransactionDate, err = store.ParseDate(txnDate); err != nil {
		return nil, fmt.Errorf("parsing transaction date: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing transaction amount: %w", err)
	}
	if postedDate.Valid {
		d, err := store.ParseDate(postedDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing posted date: %w", err)
		}
		t.PostedDate = &d
	}
	return &t, nil
}
