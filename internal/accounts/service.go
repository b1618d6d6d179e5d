// Package accounts owns the chart of accounts: typed, hierarchical
// financial accounts with a fixed normal-balance side per type.
package accounts

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

// Service provides chart-of-accounts operations.
type Service struct {
	db      *store.DB
	authz   tenant.Authorizer
	auditor audit.Recorder
	log     *slog.Logger
}

// NewService creates an accounts Service.
func NewService(db *store.DB, authz tenant.Authorizer, auditor audit.Recorder, log *slog.Logger) *Service {
	return &Service{db: db, authz: authz, auditor: auditor, log: log}
}

const accountCols = `id, tenant_id, account_number, name, account_type, account_subtype,
	parent_id, is_active, is_system, normal_balance, current_balance, display_order, created_at`

// CreateAccountInput holds the fields for a new account.
type CreateAccountInput struct {
	AccountNumber string
	Name          string
	Type          model.AccountType
	Subtype       string
	ParentID      string
	IsSystem      bool
	DisplayOrder  int
}

// CreateAccount creates one account. The normal balance side is derived
// from the account type, never supplied by the caller.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (*model.Account, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "account.create", "account") {
		return nil, fault.Authorization("account.create")
	}

	if in.Name == "" {
		return nil, fault.Validation("account name is required")
	}
	if !model.ValidAccountType(in.Type) {
		return nil, fault.Validation("invalid account type %q", in.Type)
	}

	acct := &model.Account{
		ID:            uuid.NewString(),
		TenantID:      scope.TenantID,
		AccountNumber: in.AccountNumber,
		Name:          in.Name,
		Type:          in.Type,
		Subtype:       in.Subtype,
		ParentID:      in.ParentID,
		IsActive:      true,
		IsSystem:      in.IsSystem,
		NormalBalance: model.NormalBalanceFor(in.Type),
		DisplayOrder:  in.DisplayOrder,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		if acct.ParentID != "" {
			if _, err := getAccountTx(tx, scope.TenantID, acct.ParentID); err != nil {
				return err
			}
		}
		return insertAccountTx(tx, acct)
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "account.create",
		EntityType: "account", EntityID: acct.ID,
		Metadata: map[string]any{"name": acct.Name, "type": string(acct.Type)},
	})
	return acct, nil
}

// UpdateAccountInput holds a partial update; nil fields are untouched.
type UpdateAccountInput struct {
	AccountNumber *string
	Name          *string
	Type          *model.AccountType
	Subtype       *string
	ParentID      *string
	DisplayOrder  *int
	IsActive      *bool
}

func (in UpdateAccountInput) touchesCoreFields() bool {
	return in.AccountNumber != nil || in.Name != nil || in.Type != nil || in.ParentID != nil
}

// UpdateAccount applies a partial update. A type change recomputes the
// normal balance; core fields of system accounts cannot be changed.
func (s *Service) UpdateAccount(ctx context.Context, accountID string, in UpdateAccountInput) (*model.Account, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "account.update", "account") {
		return nil, fault.Authorization("account.update")
	}

	var acct *model.Account
	err = s.db.Transaction(func(tx *sql.Tx) error {
		acct, err = getAccountTx(tx, scope.TenantID, accountID)
		if err != nil {
			return err
		}
		if acct.IsSystem && in.touchesCoreFields() {
			return fault.Validation("system account core fields cannot be changed")
		}

		if in.AccountNumber != nil {
			acct.AccountNumber = *in.AccountNumber
		}
		if in.Name != nil {
			if *in.Name == "" {
				return fault.Validation("account name is required")
			}
			acct.Name = *in.Name
		}
		if in.Type != nil {
			if !model.ValidAccountType(*in.Type) {
				return fault.Validation("invalid account type %q", *in.Type)
			}
			acct.Type = *in.Type
			acct.NormalBalance = model.NormalBalanceFor(*in.Type)
		}
		if in.Subtype != nil {
			acct.Subtype = *in.Subtype
		}
		if in.ParentID != nil {
			if *in.ParentID != "" {
				if _, err := getAccountTx(tx, scope.TenantID, *in.ParentID); err != nil {
					return err
				}
			}
			acct.ParentID = *in.ParentID
		}
		if in.DisplayOrder != nil {
			acct.DisplayOrder = *in.DisplayOrder
		}
		if in.IsActive != nil {
			acct.IsActive = *in.IsActive
		}

		var parent any
		if acct.ParentID != "" {
			parent = acct.ParentID
		}
		_, err = tx.Exec(`UPDATE accounts SET account_number = ?, name = ?, account_type = ?,
			account_subtype = ?, parent_id = ?, is_active = ?, normal_balance = ?, display_order = ?
			WHERE id = ? AND tenant_id = ?`,
			acct.AccountNumber, acct.Name, string(acct.Type), acct.Subtype, parent,
			acct.IsActive, string(acct.NormalBalance), acct.DisplayOrder,
			accountID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("updating account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "account.update",
		EntityType: "account", EntityID: accountID, Metadata: nil,
	})
	return acct, nil
}

// DeactivateAccount marks an account inactive. Historical postings stay
// valid; the caller must ensure no future entries reference it.
func (s *Service) DeactivateAccount(ctx context.Context, accountID string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if !s.authz.Can(scope, "account.deactivate", "account") {
		return fault.Authorization("account.deactivate")
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		acct, err := getAccountTx(tx, scope.TenantID, accountID)
		if err != nil {
			return err
		}
		if acct.IsSystem {
			return fault.Validation("system accounts cannot be deactivated")
		}
		_, err = tx.Exec(`UPDATE accounts SET is_active = 0 WHERE id = ? AND tenant_id = ?`,
			accountID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("deactivating account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "account.deactivate",
		EntityType: "account", EntityID: accountID,
	})
	return nil
}

// ApplyTemplate bulk-inserts the named template chart. Display order
// follows template order; each row derives its own normal balance.
func (s *Service) ApplyTemplate(ctx context.Context, template string) ([]model.Account, error) {
	rows, err := TemplateChart(template)
	if err != nil {
		return nil, err
	}
	return s.ImportAccounts(ctx, rows)
}

// AccountRow is one account in a bulk template or import.
type AccountRow struct {
	AccountNumber string
	Name          string
	Type          model.AccountType
	Subtype       string
	IsSystem      bool
}

// ImportAccounts bulk-inserts accounts with display_order assigned by
// input order. The whole batch is one transaction.
func (s *Service) ImportAccounts(ctx context.Context, rows []AccountRow) ([]model.Account, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "account.import", "account") {
		return nil, fault.Authorization("account.import")
	}

	now := time.Now().UTC()
	created := make([]model.Account, 0, len(rows))
	for i, row := range rows {
		if row.Name == "" {
			return nil, fault.Validation("row %d: account name is required", i+1)
		}
		if !model.ValidAccountType(row.Type) {
			return nil, fault.Validation("row %d: invalid account type %q", i+1, row.Type)
		}
		created = append(created, model.Account{
			ID:            uuid.NewString(),
			TenantID:      scope.TenantID,
			AccountNumber: row.AccountNumber,
			Name:          row.Name,
			Type:          row.Type,
			Subtype:       row.Subtype,
			IsActive:      true,
			IsSystem:      row.IsSystem,
			NormalBalance: model.NormalBalanceFor(row.Type),
			DisplayOrder:  i,
			CreatedAt:     now,
		})
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		for i := range created {
			if err := insertAccountTx(tx, &created[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "account.import",
		EntityType: "account", EntityID: "",
		Metadata: map[string]any{"count": len(created)},
	})
	return created, nil
}

// Get returns one account within the caller's tenant.
func (s *Service) Get(ctx context.Context, accountID string) (*model.Account, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var acct *model.Account
	err = s.db.Transaction(func(tx *sql.Tx) error {
		acct, err = getAccountTx(tx, scope.TenantID, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// List returns all accounts for the caller's tenant in display order.
func (s *Service) List(ctx context.Context) ([]model.Account, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT `+accountCols+` FROM accounts
		WHERE tenant_id = ? ORDER BY display_order, account_number, name`, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accts []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accts = append(accts, *acct)
	}
	return accts, rows.Err()
}

func insertAccountTx(tx *sql.Tx, a *model.Account) error {
	var parent any
	if a.ParentID != "" {
		parent = a.ParentID
	}
	_, err := tx.Exec(`INSERT INTO accounts (`+accountCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.AccountNumber, a.Name, string(a.Type), a.Subtype,
		parent, a.IsActive, a.IsSystem, string(a.NormalBalance),
		a.CurrentBalance.String(), a.DisplayOrder, store.FormatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting account %q: %w", a.Name, err)
	}
	return nil
}

func getAccountTx(tx *sql.Tx, tenantID, accountID string) (*model.Account, error) {
	row := tx.QueryRow(`SELECT `+accountCols+` FROM accounts
		WHERE id = ? AND tenant_id = ?`, accountID, tenantID)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("account", accountID)
	}
	return acct, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc rowScanner) (*model.Account, error) {
	var a model.Account
	var parent sql.NullString
	var balance, createdAt string
	err := sc.Scan(&a.ID, &a.TenantID, &a.AccountNumber, &a.Name,
		(*string)(&a.Type), &a.Subtype, &parent, &a.IsActive, &a.IsSystem,
		(*string)(&a.NormalBalance), &balance, &a.DisplayOrder, &createdAt)
	if err != nil {
		return nil, err
	}
	a.ParentID = parent.String
	if a.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing account balance: %w", err)
	}
	if a.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing account created_at: %w", err)
	}
	return &a, nil
}
