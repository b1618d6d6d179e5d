// Package ledger is the single writer surface for ledger postings.
// The journal engine and the bank-transaction poster both go through it
// so the balanced-set invariant is enforced in one place: for any
// source id, sum(debit) == sum(credit), and postings are only ever
// created or deleted as a whole set per source.
package ledger

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
)

// InsertSetTx inserts a set of postings for one source inside tx.
// The set must be non-empty, share one source, and balance exactly.
func InsertSetTx(tx *sql.Tx, postings []model.Posting) error {
	if len(postings) == 0 {
		return fmt.Errorf("posting set is empty")
	}

	first := postings[0]
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, p := range postings {
		if p.SourceType != first.SourceType || p.SourceID != first.SourceID {
			return fmt.Errorf("posting set mixes sources %s/%s and %s/%s",
				first.SourceType, first.SourceID, p.SourceType, p.SourceID)
		}
		totalDebit = totalDebit.Add(p.DebitAmount)
		totalCredit = totalCredit.Add(p.CreditAmount)
	}
	if !totalDebit.Equal(totalCredit) {
		return fmt.Errorf("posting set for %s %s does not balance: debits %s, credits %s",
			first.SourceType, first.SourceID, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}

	for _, p := range postings {
		_, err := tx.Exec(`INSERT INTO ledger_postings
			(id, tenant_id, source_type, source_id, posting_date, account_id, debit_amount, credit_amount, memo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.TenantID, string(p.SourceType), p.SourceID,
			store.FormatDate(p.PostingDate), p.AccountID,
			p.DebitAmount.String(), p.CreditAmount.String(), p.Memo)
		if err != nil {
			return fmt.Errorf("inserting posting for account %s: %w", p.AccountID, err)
		}
		if err := applyBalanceTx(tx, p.TenantID, p.AccountID, p.DebitAmount.Sub(p.CreditAmount)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBySourceTx removes the whole posting set of one source and
// reverses its effect on the account balance caches. A writer may only
// delete postings of its own source type.
func DeleteBySourceTx(tx *sql.Tx, tenantID string, sourceType model.SourceType, sourceID string) error {
	rows, err := tx.Query(`SELECT account_id, debit_amount, credit_amount FROM ledger_postings
		WHERE tenant_id = ? AND source_type = ? AND source_id = ?`,
		tenantID, string(sourceType), sourceID)
	if err != nil {
		return fmt.Errorf("loading postings for %s %s: %w", sourceType, sourceID, err)
	}

	type delta struct {
		accountID string
		net       decimal.Decimal
	}
	var deltas []delta
	for rows.Next() {
		var accountID, debit, credit string
		if err := rows.Scan(&accountID, &debit, &credit); err != nil {
			rows.Close()
			return err
		}
		d, err := decimal.NewFromString(debit)
		if err != nil {
			rows.Close()
			return fmt.Errorf("parsing posting debit: %w", err)
		}
		c, err := decimal.NewFromString(credit)
		if err != nil {
			rows.Close()
			return fmt.Errorf("parsing posting credit: %w", err)
		}
		deltas = append(deltas, delta{accountID: accountID, net: c.Sub(d)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, d := range deltas {
		if err := applyBalanceTx(tx, tenantID, d.accountID, d.net); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`DELETE FROM ledger_postings
		WHERE tenant_id = ? AND source_type = ? AND source_id = ?`,
		tenantID, string(sourceType), sourceID)
	if err != nil {
		return fmt.Errorf("deleting postings for %s %s: %w", sourceType, sourceID, err)
	}
	return nil
}

// applyBalanceTx shifts an account's cached balance by a net debit
// amount, converted to the account's normal side.
func applyBalanceTx(tx *sql.Tx, tenantID, accountID string, netDebit decimal.Decimal) error {
	var normal, balance string
	err := tx.QueryRow(`SELECT normal_balance, current_balance FROM accounts
		WHERE id = ? AND tenant_id = ?`, accountID, tenantID).Scan(&normal, &balance)
	if err != nil {
		return fmt.Errorf("loading balance cache for account %s: %w", accountID, err)
	}
	current, err := decimal.NewFromString(balance)
	if err != nil {
		return fmt.Errorf("parsing balance cache for account %s: %w", accountID, err)
	}

	change := netDebit
	if model.BalanceSide(normal) == model.BalanceCredit {
		change = netDebit.Neg()
	}
	_, err = tx.Exec(`UPDATE accounts SET current_balance = ? WHERE id = ? AND tenant_id = ?`,
		current.Add(change).String(), accountID, tenantID)
	if err != nil {
		return fmt.Errorf("updating balance cache for account %s: %w", accountID, err)
	}
	return nil
}
