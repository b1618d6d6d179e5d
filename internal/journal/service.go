// Package journal is the engine for manual double-entries: draft
// creation and editing, posting to the ledger, and voiding. It is the
// sole writer of journal_entry postings.
package journal

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
	"github.com/tallyhq/tally/internal/id"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

// Service provides journal entry operations.
type Service struct {
	db      *store.DB
	authz   tenant.Authorizer
	auditor audit.Recorder
	log     *slog.Logger
}

// NewService creates a journal Service.
func NewService(db *store.DB, authz tenant.Authorizer, auditor audit.Recorder, log *slog.Logger) *Service {
	return &Service{db: db, authz: authz, auditor: auditor, log: log}
}

const entryCols = `id, tenant_id, entry_number, entry_date, memo, status, total_debit, total_credit,
	is_balanced, source_type, source_id, created_by, created_at, posted_by, posted_at,
	voided_by, voided_at, void_reason`

// CreateEntryInput holds the fields for a new draft entry.
type CreateEntryInput struct {
	Date       time.Time
	Memo       string
	Lines      []LineInput
	SourceType string
	SourceID   string
}

// CreateEntry validates the line set, allocates the next entry number
// for the tenant, and persists header and lines in one transaction.
// The entry starts as a draft.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (*model.JournalEntry, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "journal.create", "journal_entry") {
		return nil, fault.Authorization("journal.create")
	}

	totalDebit, totalCredit, err := ValidateLines(in.Lines)
	if err != nil {
		return nil, err
	}

	entry := &model.JournalEntry{
		ID:          uuid.NewString(),
		TenantID:    scope.TenantID,
		EntryDate:   in.Date,
		Memo:        in.Memo,
		Status:      model.EntryDraft,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		IsBalanced:  Balanced(totalDebit, totalCredit),
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
		CreatedBy:   scope.ActorID,
		CreatedAt:   time.Now().UTC(),
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		if err := checkLineAccountsTx(tx, scope.TenantID, in.Lines); err != nil {
			return err
		}

		seq, err := nextSequenceTx(tx, scope.TenantID)
		if err != nil {
			return err
		}
		entry.EntryNumber = id.FormatEntryNumber(seq)

		_, err = tx.Exec(`INSERT INTO journal_entries (`+entryCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', NULL, '', NULL, '')`,
			entry.ID, entry.TenantID, entry.EntryNumber, store.FormatDate(entry.EntryDate),
			entry.Memo, string(entry.Status), entry.TotalDebit.String(), entry.TotalCredit.String(),
			entry.IsBalanced, entry.SourceType, entry.SourceID,
			entry.CreatedBy, store.FormatTime(entry.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting entry: %w", err)
		}

		entry.Lines, err = insertLinesTx(tx, entry.ID, in.Lines)
		return err
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "journal.create",
		EntityType: "journal_entry", EntityID: entry.ID,
		Metadata: map[string]any{"entry_number": entry.EntryNumber},
	})
	return entry, nil
}

// UpdateEntryInput holds a draft edit: the full replacement line set
// plus optional header changes.
type UpdateEntryInput struct {
	Date  *time.Time
	Memo  *string
	Lines []LineInput
}

// UpdateEntry replaces a draft's line set and recomputes totals exactly
// as create does. Only drafts may be edited.
func (s *Service) UpdateEntry(ctx context.Context, entryID string, in UpdateEntryInput) (*model.JournalEntry, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "journal.update", "journal_entry") {
		return nil, fault.Authorization("journal.update")
	}

	totalDebit, totalCredit, err := ValidateLines(in.Lines)
	if err != nil {
		return nil, err
	}

	var entry *model.JournalEntry
	err = s.db.Transaction(func(tx *sql.Tx) error {
		entry, err = getEntryTx(tx, scope.TenantID, entryID)
		if err != nil {
			return err
		}
		if entry.Status != model.EntryDraft {
			return fault.Validation("only draft entries can be edited, entry is %s", entry.Status)
		}
		if err := checkLineAccountsTx(tx, scope.TenantID, in.Lines); err != nil {
			return err
		}

		if in.Date != nil {
			entry.EntryDate = *in.Date
		}
		if in.Memo != nil {
			entry.Memo = *in.Memo
		}
		entry.TotalDebit = totalDebit
		entry.TotalCredit = totalCredit
		entry.IsBalanced = Balanced(totalDebit, totalCredit)

		_, err = tx.Exec(`UPDATE journal_entries
			SET entry_date = ?, memo = ?, total_debit = ?, total_credit = ?, is_balanced = ?
			WHERE id = ? AND tenant_id = ?`,
			store.FormatDate(entry.EntryDate), entry.Memo,
			totalDebit.String(), totalCredit.String(), entry.IsBalanced,
			entryID, scope.TenantID)
		if err != nil {
			return fmt.Errorf("updating entry: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM journal_entry_lines WHERE entry_id = ?`, entryID); err != nil {
			return fmt.Errorf("clearing entry lines: %w", err)
		}
		entry.Lines, err = insertLinesTx(tx, entryID, in.Lines)
		return err
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "journal.update",
		EntityType: "journal_entry", EntityID: entryID,
	})
	return entry, nil
}

// PostEntry transitions a draft to posted and emits one ledger posting
// per line, atomically. Balance is re-derived from the stored lines at
// posting time rather than trusting the cached flag, so no edit path
// can desynchronize the two.
func (s *Service) PostEntry(ctx context.Context, entryID string) (*model.JournalEntry, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "journal.post", "journal_entry") {
		return nil, fault.Authorization("journal.post")
	}

	var entry *model.JournalEntry
	err = s.db.Transaction(func(tx *sql.Tx) error {
		entry, err = getEntryTx(tx, scope.TenantID, entryID)
		if err != nil {
			return err
		}
		if entry.Status != model.EntryDraft {
			return fault.Conflict("entry is %s, only draft entries can be posted", entry.Status)
		}

		entry.Lines, err = getLinesTx(tx, entryID)
		if err != nil {
			return err
		}

		totalDebit := decimal.Zero
		totalCredit := decimal.Zero
		for _, line := range entry.Lines {
			totalDebit = totalDebit.Add(line.DebitAmount)
			totalCredit = totalCredit.Add(line.CreditAmount)
		}
		if !Balanced(totalDebit, totalCredit) {
			return fault.Validation("debits must equal credits")
		}

		now := time.Now().UTC()
		res, err := tx.Exec(`UPDATE journal_entries
			SET status = ?, posted_by = ?, posted_at = ?
			WHERE id = ? AND tenant_id = ? AND status = ?`,
			string(model.EntryPosted), scope.ActorID, store.FormatTime(now),
			entryID, scope.TenantID, string(model.EntryDraft))
		if err != nil {
			return fmt.Errorf("posting entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fault.Conflict("entry %s was changed concurrently", entry.EntryNumber)
		}
		entry.Status = model.EntryPosted
		entry.PostedBy = scope.ActorID
		entry.PostedAt = &now

		postings := make([]model.Posting, 0, len(entry.Lines))
		for _, line := range entry.Lines {
			memo := line.Description
			if memo == "" {
				memo = entry.Memo
			}
			postings = append(postings, model.Posting{
				ID:           uuid.NewString(),
				TenantID:     scope.TenantID,
				SourceType:   model.SourceJournalEntry,
				SourceID:     entry.ID,
				PostingDate:  entry.EntryDate,
				AccountID:    line.AccountID,
				DebitAmount:  line.DebitAmount,
				CreditAmount: line.CreditAmount,
				Memo:         memo,
			})
		}
		return ledger.InsertSetTx(tx, postings)
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "journal.post",
		EntityType: "journal_entry", EntityID: entryID,
		Metadata: map[string]any{"entry_number": entry.EntryNumber},
	})
	return entry, nil
}

// VoidEntry marks an entry voided and removes its postings as a unit.
// Allowed from draft or posted; voided is terminal.
func (s *Service) VoidEntry(ctx context.Context, entryID, reason string) (*model.JournalEntry, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(scope, "journal.void", "journal_entry") {
		return nil, fault.Authorization("journal.void")
	}

	var entry *model.JournalEntry
	err = s.db.Transaction(func(tx *sql.Tx) error {
		entry, err = getEntryTx(tx, scope.TenantID, entryID)
		if err != nil {
			return err
		}
		if entry.Status == model.EntryVoided {
			return fault.Conflict("entry %s is already voided", entry.EntryNumber)
		}

		now := time.Now().UTC()
		res, err := tx.Exec(`UPDATE journal_entries
			SET status = ?, voided_by = ?, voided_at = ?, void_reason = ?
			WHERE id = ? AND tenant_id = ? AND status != ?`,
			string(model.EntryVoided), scope.ActorID, store.FormatTime(now), reason,
			entryID, scope.TenantID, string(model.EntryVoided))
		if err != nil {
			return fmt.Errorf("voiding entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fault.Conflict("entry %s was changed concurrently", entry.EntryNumber)
		}
		entry.Status = model.EntryVoided
		entry.VoidedBy = scope.ActorID
		entry.VoidedAt = &now
		entry.VoidReason = reason

		return ledger.DeleteBySourceTx(tx, scope.TenantID, model.SourceJournalEntry, entryID)
	})
	if err != nil {
		return nil, err
	}

	audit.Try(ctx, s.log, s.auditor, audit.Event{
		TenantID: scope.TenantID, Action: "journal.void",
		EntityType: "journal_entry", EntityID: entryID,
		Metadata: map[string]any{"reason": reason},
	})
	return entry, nil
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID string) (*model.JournalEntry, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var entry *model.JournalEntry
	err = s.db.Transaction(func(tx *sql.Tx) error {
		entry, err = getEntryTx(tx, scope.TenantID, entryID)
		if err != nil {
			return err
		}
		entry.Lines, err = getLinesTx(tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all entry headers for the tenant, newest entry number first.
func (s *Service) List(ctx context.Context) ([]model.JournalEntry, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT `+entryCols+` FROM journal_entries
		WHERE tenant_id = ? ORDER BY entry_number DESC`, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func nextSequenceTx(tx *sql.Tx, tenantID string) (int64, error) {
	var seq int64
	err := tx.QueryRow(`INSERT INTO journal_sequences (tenant_id, next_seq) VALUES (?, 1)
		ON CONFLICT(tenant_id) DO UPDATE SET next_seq = next_seq + 1
		RETURNING next_seq`, tenantID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("allocating entry number: %w", err)
	}
	return seq, nil
}

func checkLineAccountsTx(tx *sql.Tx, tenantID string, lines []LineInput) error {
	for _, line := range lines {
		var one int
		err := tx.QueryRow(`SELECT 1 FROM accounts WHERE id = ? AND tenant_id = ?`,
			line.AccountID, tenantID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fault.NotFound("account", line.AccountID)
		}
		if err != nil {
			return fmt.Errorf("checking account %s: %w", line.AccountID, err)
		}
	}
	return nil
}

func insertLinesTx(tx *sql.Tx, entryID string, lines []LineInput) ([]model.JournalLine, error) {
	out := make([]model.JournalLine, 0, len(lines))
	for i, in := range lines {
		line := model.JournalLine{
			ID:           uuid.NewString(),
			EntryID:      entryID,
			AccountID:    in.AccountID,
			Description:  in.Description,
			DebitAmount:  in.DebitAmount,
			CreditAmount: in.CreditAmount,
			LineOrder:    i,
		}
		_, err := tx.Exec(`INSERT INTO journal_entry_lines
			(id, entry_id, account_id, description, debit_amount, credit_amount, line_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID, line.EntryID, line.AccountID, line.Description,
			line.DebitAmount.String(), line.CreditAmount.String(), line.LineOrder)
		if err != nil {
			return nil, fmt.Errorf("inserting line %d: %w", i+1, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func getLinesTx(tx *sql.Tx, entryID string) ([]model.JournalLine, error) {
	rows, err := tx.Query(`SELECT id, entry_id, account_id, description, debit_amount, credit_amount, line_order
		FROM journal_entry_lines WHERE entry_id = ? ORDER BY line_order`, entryID)
	if err != nil {
		return nil, fmt.Errorf("loading entry lines: %w", err)
	}
	defer rows.Close()

	var lines []model.JournalLine
	for rows.Next() {
		var line model.JournalLine
		var debit, credit string
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Description,
			&debit, &credit, &line.LineOrder); err != nil {
			return nil, err
		}
		if line.DebitAmount, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("parsing line debit: %w", err)
		}
		if line.CreditAmount, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("parsing line credit: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func getEntryTx(tx *sql.Tx, tenantID, entryID string) (*model.JournalEntry, error) {
	row := tx.QueryRow(`SELECT `+entryCols+` FROM journal_entries
		WHERE id = ? AND tenant_id = ?`, entryID, tenantID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("journal entry", entryID)
	}
	return entry, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc rowScanner) (*model.JournalEntry, error) {
	var e model.JournalEntry
	var entryDate, createdAt, totalDebit, totalCredit string
	var postedAt, voidedAt sql.NullString
	err := sc.Scan(&e.ID, &e.TenantID, &e.EntryNumber, &entryDate, &e.Memo,
		(*string)(&e.Status), &totalDebit, &totalCredit, &e.IsBalanced,
		&e.SourceType, &e.SourceID, &e.CreatedBy, &createdAt,
		&e.PostedBy, &postedAt, &e.VoidedBy, &voidedAt, &e.VoidReason)
	if err != nil {
		return nil, err
	}

	if e.EntryDate, err = store.ParseDate(entryDate); err != nil {
		return nil, fmt.Errorf("parsing entry date: %w", err)
	}
	if e.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing entry created_at: %w", err)
	}
	if e.TotalDebit, err = decimal.NewFromString(totalDebit); err != nil {
		return nil, fmt.Errorf("parsing total debit: %w", err)
	}
	if e.TotalCredit, err = decimal.NewFromString(totalCredit); err != nil {
		return nil, fmt.Errorf("parsing total credit: %w", err)
	}
	if postedAt.Valid {
		t, err := store.ParseTime(postedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing posted_at: %w", err)
		}
		e.PostedAt = &t
	}
	if voidedAt.Valid {
		t, err := store.ParseTime(voidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing voided_at: %w", err)
		}
		e.VoidedAt = &t
	}
	return &e, nil
}
