package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/accounts"
	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/banking"
	"github.com/tallyhq/tally/internal/fault"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

func testCtx() context.Context {
	return tenant.NewContext(context.Background(), tenant.Scope{TenantID: "t1", ActorID: "alice"})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	db      *store.DB
	svc     *Service
	banking *banking.Service
	bankID  string
	expense string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.NewTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authz := tenant.AllowAll{}
	ctx := testCtx()

	acctSvc := accounts.NewService(db, authz, audit.Nop{}, log)
	checking, err := acctSvc.CreateAccount(ctx, accounts.CreateAccountInput{
		AccountNumber: "1010", Name: "Business Checking", Type: model.AccountTypeAsset,
	})
	require.NoError(t, err)
	expense, err := acctSvc.CreateAccount(ctx, accounts.CreateAccountInput{
		AccountNumber: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense,
	})
	require.NoError(t, err)

	bankSvc := banking.NewService(db, authz, audit.Nop{}, log)
	bank, err := bankSvc.CreateBankAccount(ctx, banking.CreateBankAccountInput{
		Name: "Checking", COAAccountID: checking.ID,
	})
	require.NoError(t, err)

	return &fixture{
		db:      db,
		svc:     NewService(db, authz, audit.Nop{}, log),
		banking: bankSvc,
		bankID:  bank.ID,
		expense: expense.ID,
	}
}

// postTxn imports, categorizes, and posts one transaction, returning its id.
func (f *fixture) postTxn(t *testing.T, day int, desc, amount string) string {
	t.Helper()
	ctx := testCtx()
	_, err := f.banking.ImportBatch(ctx, f.bankID, []model.ImportedTransaction{
		{Date: date(2025, 6, day), Description: desc, Amount: dec(amount)},
	})
	require.NoError(t, err)

	txns, err := f.banking.ListTransactions(ctx, f.bankID)
	require.NoError(t, err)
	for _, txn := range txns {
		if txn.Description != desc {
			continue
		}
		_, err = f.banking.Categorize(ctx, txn.ID, banking.CategorizeInput{MatchedAccountID: f.expense})
		require.NoError(t, err)
		_, err = f.banking.Post(ctx, txn.ID)
		require.NoError(t, err)
		return txn.ID
	}
	t.Fatalf("transaction %q not found", desc)
	return ""
}

func (f *fixture) claimedBy(t *testing.T, txnID string) string {
	t.Helper()
	var claimed *string
	err := f.db.QueryRow(`SELECT reconciliation_id FROM bank_transactions WHERE id = ?`, txnID).Scan(&claimed)
	require.NoError(t, err)
	if claimed == nil {
		return ""
	}
	return *claimed
}

func TestStart(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.Start(testCtx(), f.bankID, date(2025, 6, 30), dec("1000.00"), "June statement")
	require.NoError(t, err)

	assert.Equal(t, model.ReconInProgress, rec.Status)
	assert.Nil(t, rec.ClearedBalance)
	assert.Nil(t, rec.Difference)
	assert.Equal(t, "alice", rec.CreatedBy)
}

func TestStart_OnePerBankAccount(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	_, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("1000"), "")
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, f.bankID, date(2025, 7, 31), dec("1200"), "")
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.Contains(t, err.Error(), "already an open reconciliation")
}

func TestStart_AllowedAfterVoid(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	first, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("1000"), "")
	require.NoError(t, err)
	_, err = f.svc.Void(ctx, first.ID)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("1000"), "")
	require.NoError(t, err)
}

func TestStart_UnknownBankAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(testCtx(), "missing", date(2025, 6, 30), dec("0"), "")
	assert.True(t, fault.IsNotFound(err))
}

func TestUpdateClearedBalance(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("1000.00"), "")
	require.NoError(t, err)

	updated, err := f.svc.UpdateClearedBalance(ctx, rec.ID, dec("990.00"))
	require.NoError(t, err)
	require.NotNil(t, updated.ClearedBalance)
	require.NotNil(t, updated.Difference)
	assert.True(t, updated.ClearedBalance.Equal(dec("990.00")))
	assert.True(t, updated.Difference.Equal(dec("10.00")))
}

func TestListEligibleTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	inRange := f.postTxn(t, 10, "IN RANGE", "-40.00")
	f.postTxn(t, 25, "AFTER STATEMENT", "-5.00")

	// Unposted transactions are never eligible.
	_, err := f.banking.ImportBatch(ctx, f.bankID, []model.ImportedTransaction{
		{Date: date(2025, 6, 5), Description: "STILL UNMATCHED", Amount: dec("-1.00")},
	})
	require.NoError(t, err)

	eligible, err := f.svc.ListEligibleTransactions(ctx, f.bankID, date(2025, 6, 15))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, inRange, eligible[0].ID)
}

func TestComplete_NonzeroDifferenceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("1000.00"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateClearedBalance(ctx, rec.ID, dec("990.00"))
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, rec.ID, nil)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
	assert.Contains(t, err.Error(), "difference must be zero")
}

func TestComplete_NeverUpdatedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("1000.00"), "")
	require.NoError(t, err)

	// No cleared-balance update yet, difference is unknown.
	_, err = f.svc.Complete(ctx, rec.ID, nil)
	assert.True(t, fault.IsValidation(err))
}

func TestComplete_ClaimsTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	a := f.postTxn(t, 5, "RENT", "-700.00")
	b := f.postTxn(t, 6, "PAYOUT", "900.00")

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("200.00"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateClearedBalance(ctx, rec.ID, dec("200.00"))
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, rec.ID, []string{a, b})
	require.NoError(t, err)

	assert.Equal(t, model.ReconCompleted, done.Status)
	assert.Equal(t, "alice", done.CompletedBy)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, rec.ID, f.claimedBy(t, a))
	assert.Equal(t, rec.ID, f.claimedBy(t, b))
}

func TestComplete_AlreadyClaimedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	txn := f.postTxn(t, 5, "RENT", "-700.00")

	first, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("-700.00"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateClearedBalance(ctx, first.ID, dec("-700.00"))
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, first.ID, []string{txn})
	require.NoError(t, err)

	second, err := f.svc.Start(ctx, f.bankID, date(2025, 7, 31), dec("-700.00"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateClearedBalance(ctx, second.ID, dec("-700.00"))
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, second.ID, []string{txn})
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))

	// The failed completion left nothing behind: still in progress,
	// claim still owned by the first reconciliation.
	got, err := f.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReconInProgress, got.Status)
	assert.Equal(t, first.ID, f.claimedBy(t, txn))
}

func TestComplete_NotInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("0"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateClearedBalance(ctx, rec.ID, dec("0"))
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, rec.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, rec.ID, nil)
	assert.True(t, fault.IsConflict(err))
}

func TestVoid_ReleasesClaims(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	txn := f.postTxn(t, 5, "RENT", "-700.00")

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("-700.00"), "")
	require.NoError(t, err)
	_, err = f.svc.UpdateClearedBalance(ctx, rec.ID, dec("-700.00"))
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, rec.ID, []string{txn})
	require.NoError(t, err)
	require.Equal(t, rec.ID, f.claimedBy(t, txn))

	voided, err := f.svc.Void(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReconVoided, voided.Status)
	assert.Equal(t, "", f.claimedBy(t, txn))

	// Released transactions are eligible again.
	eligible, err := f.svc.ListEligibleTransactions(ctx, f.bankID, date(2025, 6, 30))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, txn, eligible[0].ID)
}

func TestVoid_AlreadyVoided(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	rec, err := f.svc.Start(ctx, f.bankID, date(2025, 6, 30), dec("0"), "")
	require.NoError(t, err)
	_, err = f.svc.Void(ctx, rec.ID)
	require.NoError(t, err)

	_, err = f.svc.Void(ctx, rec.ID)
	assert.True(t, fault.IsConflict(err))
}
