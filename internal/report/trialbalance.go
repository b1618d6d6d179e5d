// Package report holds the read-only aggregations over ledger
// postings. Reports are pure summations: their results depend only on
// the set of postings, never on insertion order. Amounts are summed in
// Go so decimals stay exact; SQL aggregation would coerce to float.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// ErrOutOfBalance is returned when the trial balance grand totals do
// not agree. A well-formed ledger can never produce it.
var ErrOutOfBalance = errors.New("trial balance out of balance")

// Service computes reports.
type Service struct {
	db *store.DB
}

// NewService creates a report Service.
func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

// Row is one account's net position in a trial balance.
type Row struct {
	AccountID     string            `json:"account_id"`
	AccountNumber string            `json:"account_number"`
	AccountName   string            `json:"account_name"`
	AccountType   model.AccountType `json:"account_type"`
	NormalBalance model.BalanceSide `json:"normal_balance"`
	TotalDebit    decimal.Decimal   `json:"total_debit"`
	TotalCredit   decimal.Decimal   `json:"total_credit"`
	// Balance is net on the account's normal side: debit accounts show
	// debits minus credits, credit accounts the reverse.
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalance is a point-in-time view of every account with postings.
type TrialBalance struct {
	AsOf        *time.Time      `json:"as_of,omitempty"`
	Rows        []Row           `json:"rows"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// Compute sums all postings per account, optionally cut off at asOf,
// and orders rows by account type (asset, liability, equity, income,
// expense) then account number and name. For a well-formed ledger the
// grand debit and credit totals agree.
func (s *Service) Compute(ctx context.Context, asOf *time.Time) (*TrialBalance, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT a.id, a.account_number, a.name, a.account_type, a.normal_balance,
			p.debit_amount, p.credit_amount
		FROM ledger_postings p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.tenant_id = ?`
	args := []any{scope.TenantID}
	if asOf != nil {
		query += ` AND p.posting_date <= ?`
		args = append(args, store.FormatDate(*asOf))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("computing trial balance: %w", err)
	}
	defer rows.Close()

	byAccount := make(map[string]*Row)
	for rows.Next() {
		var r Row
		var debit, credit string
		if err := rows.Scan(&r.AccountID, &r.AccountNumber, &r.AccountName,
			(*string)(&r.AccountType), (*string)(&r.NormalBalance), &debit, &credit); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(debit)
		if err != nil {
			return nil, fmt.Errorf("parsing posting debit: %w", err)
		}
		c, err := decimal.NewFromString(credit)
		if err != nil {
			return nil, fmt.Errorf("parsing posting credit: %w", err)
		}

		acc, ok := byAccount[r.AccountID]
		if !ok {
			r.TotalDebit = decimal.Zero
			r.TotalCredit = decimal.Zero
			byAccount[r.AccountID] = &r
			acc = &r
		}
		acc.TotalDebit = acc.TotalDebit.Add(d)
		acc.TotalCredit = acc.TotalCredit.Add(c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tb := &TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, acc := range byAccount {
		if acc.NormalBalance == model.BalanceDebit {
			acc.Balance = acc.TotalDebit.Sub(acc.TotalCredit)
		} else {
			acc.Balance = acc.TotalCredit.Sub(acc.TotalDebit)
		}
		tb.TotalDebit = tb.TotalDebit.Add(acc.TotalDebit)
		tb.TotalCredit = tb.TotalCredit.Add(acc.TotalCredit)
		tb.Rows = append(tb.Rows, *acc)
	}

	sort.SliceStable(tb.Rows, func(i, j int) bool {
		ti, tj := model.TypeOrder(tb.Rows[i].AccountType), model.TypeOrder(tb.Rows[j].AccountType)
		if ti != tj {
			return ti < tj
		}
		if tb.Rows[i].AccountNumber != tb.Rows[j].AccountNumber {
			return tb.Rows[i].AccountNumber < tb.Rows[j].AccountNumber
		}
		return tb.Rows[i].AccountName < tb.Rows[j].AccountName
	})
	return tb, nil
}

// CheckBalanceCaches recomputes each account's balance from postings
// and returns the ids of accounts whose cached current_balance
// disagrees. The postings are authoritative; a non-empty result means
// the caches need rebuilding.
func (s *Service) CheckBalanceCaches(ctx context.Context) ([]string, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	tb, err := s.Compute(ctx, nil)
	if err != nil {
		return nil, err
	}
	derived := make(map[string]decimal.Decimal, len(tb.Rows))
	for _, r := range tb.Rows {
		derived[r.AccountID] = r.Balance
	}

	rows, err := s.db.Query(`SELECT id, current_balance FROM accounts
		WHERE tenant_id = ? ORDER BY id`, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("checking balance caches: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var accountID, cached string
		if err := rows.Scan(&accountID, &cached); err != nil {
			return nil, err
		}
		cachedBalance, err := decimal.NewFromString(cached)
		if err != nil {
			return nil, fmt.Errorf("parsing cached balance: %w", err)
		}
		want, ok := derived[accountID]
		if !ok {
			want = decimal.Zero
		}
		if !want.Equal(cachedBalance) {
			stale = append(stale, accountID)
		}
	}
	return stale, rows.Err()
}
