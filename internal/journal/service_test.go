package journal

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
	cash    string
	revenue string
	expense string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.NewTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authz := tenant.AllowAll{}

	acctSvc := accounts.NewService(db, authz, audit.Nop{}, log)
	ctx := testCtx()
	cash, err := acctSvc.CreateAccount(ctx, accounts.CreateAccountInput{
		AccountNumber: "1010", Name: "Business Checking", Type: model.AccountTypeAsset,
	})
	require.NoError(t, err)
	revenue, err := acctSvc.CreateAccount(ctx, accounts.CreateAccountInput{
		AccountNumber: "4010", Name: "Service Revenue", Type: model.AccountTypeIncome,
	})
	require.NoError(t, err)
	expense, err := acctSvc.CreateAccount(ctx, accounts.CreateAccountInput{
		AccountNumber: "5010", Name: "Office Supplies", Type: model.AccountTypeExpense,
	})
	require.NoError(t, err)

	return &fixture{
		db:      db,
		svc:     NewService(db, authz, audit.Nop{}, log),
		cash:    cash.ID,
		revenue: revenue.ID,
		expense: expense.ID,
	}
}

func (f *fixture) balancedLines(amount string) []LineInput {
	return []LineInput{
		{AccountID: f.cash, DebitAmount: dec(amount)},
		{AccountID: f.revenue, CreditAmount: dec(amount)},
	}
}

func (f *fixture) postingCount(t *testing.T, entryID string) int {
	t.Helper()
	var n int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM ledger_postings
		WHERE source_type = 'journal_entry' AND source_id = ?`, entryID).Scan(&n)
	require.NoError(t, err)
	return n
}

func (f *fixture) accountBalance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	var raw string
	err := f.db.QueryRow(`SELECT current_balance FROM accounts WHERE id = ?`, accountID).Scan(&raw)
	require.NoError(t, err)
	return dec(raw)
}

func TestCreateEntry(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.CreateEntry(testCtx(), CreateEntryInput{
		Date:  date(2025, 3, 10),
		Memo:  "March invoice",
		Lines: f.balancedLines("100.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "JE-00001", entry.EntryNumber)
	assert.Equal(t, model.EntryDraft, entry.Status)
	assert.True(t, entry.TotalDebit.Equal(dec("100.00")))
	assert.True(t, entry.TotalCredit.Equal(dec("100.00")))
	assert.True(t, entry.IsBalanced)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, 0, entry.Lines[0].LineOrder)
	assert.Equal(t, 1, entry.Lines[1].LineOrder)

	// Drafts create no postings.
	assert.Equal(t, 0, f.postingCount(t, entry.ID))
}

func TestCreateEntry_SequentialNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	first, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)
	second, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 2), Lines: f.balancedLines("20")})
	require.NoError(t, err)

	assert.Equal(t, "JE-00001", first.EntryNumber)
	assert.Equal(t, "JE-00002", second.EntryNumber)
}

func TestCreateEntry_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateEntry(testCtx(), CreateEntryInput{
		Date: date(2025, 1, 1),
		Lines: []LineInput{
			{AccountID: f.cash, DebitAmount: dec("10")},
			{AccountID: "nope", CreditAmount: dec("10")},
		},
	})
	assert.True(t, fault.IsNotFound(err))
}

func TestCreateEntry_AllowsUnbalancedDraft(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.CreateEntry(testCtx(), CreateEntryInput{
		Date: date(2025, 1, 1),
		Lines: []LineInput{
			{AccountID: f.cash, DebitAmount: dec("10")},
			{AccountID: f.revenue, CreditAmount: dec("7")},
		},
	})
	require.NoError(t, err)
	assert.False(t, entry.IsBalanced)
}

func TestUpdateEntry_ReplacesLines(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)

	memo := "corrected"
	updated, err := f.svc.UpdateEntry(ctx, entry.ID, UpdateEntryInput{
		Memo: &memo,
		Lines: []LineInput{
			{AccountID: f.expense, DebitAmount: dec("25.50")},
			{AccountID: f.cash, CreditAmount: dec("25.50")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "corrected", updated.Memo)
	assert.True(t, updated.TotalDebit.Equal(dec("25.50")))
	assert.True(t, updated.IsBalanced)
	require.Len(t, updated.Lines, 2)
	assert.Equal(t, f.expense, updated.Lines[0].AccountID)
}

func TestUpdateEntry_PostedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)
	_, err = f.svc.PostEntry(ctx, entry.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateEntry(ctx, entry.ID, UpdateEntryInput{Lines: f.balancedLines("20")})
	assert.True(t, fault.IsValidation(err))
}

func TestPostEntry(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{
		Date: date(2025, 3, 10), Memo: "March invoice", Lines: f.balancedLines("100.00"),
	})
	require.NoError(t, err)

	posted, err := f.svc.PostEntry(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, model.EntryPosted, posted.Status)
	assert.Equal(t, "alice", posted.PostedBy)
	require.NotNil(t, posted.PostedAt)

	assert.Equal(t, 2, f.postingCount(t, entry.ID))
	assert.True(t, f.accountBalance(t, f.cash).Equal(dec("100")))
	assert.True(t, f.accountBalance(t, f.revenue).Equal(dec("100")))
}

func TestPostEntry_Unbalanced(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{
		Date: date(2025, 1, 1),
		Lines: []LineInput{
			{AccountID: f.cash, DebitAmount: dec("10")},
			{AccountID: f.revenue, CreditAmount: dec("7")},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.PostEntry(ctx, entry.ID)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
	assert.Contains(t, err.Error(), "debits must equal credits")
	assert.Equal(t, 0, f.postingCount(t, entry.ID))
}

func TestPostEntry_BalanceDerivedFromLines(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	// Start unbalanced, fix via edit, then post. The post decision must
	// reflect the current lines, not the state at creation.
	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{
		Date: date(2025, 1, 1),
		Lines: []LineInput{
			{AccountID: f.cash, DebitAmount: dec("10")},
			{AccountID: f.revenue, CreditAmount: dec("7")},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateEntry(ctx, entry.ID, UpdateEntryInput{Lines: f.balancedLines("10")})
	require.NoError(t, err)

	posted, err := f.svc.PostEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryPosted, posted.Status)
}

func TestPostEntry_AlreadyPosted(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)
	_, err = f.svc.PostEntry(ctx, entry.ID)
	require.NoError(t, err)

	_, err = f.svc.PostEntry(ctx, entry.ID)
	assert.True(t, fault.IsConflict(err))
}

func TestVoidEntry_RemovesPostings(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("100")})
	require.NoError(t, err)
	_, err = f.svc.PostEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, 2, f.postingCount(t, entry.ID))

	voided, err := f.svc.VoidEntry(ctx, entry.ID, "duplicate")
	require.NoError(t, err)

	assert.Equal(t, model.EntryVoided, voided.Status)
	assert.Equal(t, "duplicate", voided.VoidReason)
	assert.Equal(t, 0, f.postingCount(t, entry.ID))
	assert.True(t, f.accountBalance(t, f.cash).IsZero())
	assert.True(t, f.accountBalance(t, f.revenue).IsZero())
}

func TestVoidEntry_Draft(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)

	voided, err := f.svc.VoidEntry(ctx, entry.ID, "never happened")
	require.NoError(t, err)
	assert.Equal(t, model.EntryVoided, voided.Status)
}

func TestVoidEntry_AlreadyVoided(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	entry, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)
	_, err = f.svc.VoidEntry(ctx, entry.ID, "once")
	require.NoError(t, err)

	_, err = f.svc.VoidEntry(ctx, entry.ID, "twice")
	assert.True(t, fault.IsConflict(err))
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateEntry(ctx, CreateEntryInput{Date: date(2025, 1, 1+i), Lines: f.balancedLines("10")})
		require.NoError(t, err)
	}

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "JE-00003", list[0].EntryNumber)
	assert.Equal(t, "JE-00001", list[2].EntryNumber)
}

func TestGet_OtherTenantInvisible(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.CreateEntry(testCtx(), CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	require.NoError(t, err)

	other := tenant.NewContext(context.Background(), tenant.Scope{TenantID: "t2", ActorID: "mallory"})
	_, err = f.svc.Get(other, entry.ID)
	assert.True(t, fault.IsNotFound(err))
}

func TestCreateEntry_RequiresScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateEntry(context.Background(), CreateEntryInput{Date: date(2025, 1, 1), Lines: f.balancedLines("10")})
	assert.ErrorIs(t, err, fault.ErrNotAuthenticated)
}
