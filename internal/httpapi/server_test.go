package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/accounts"
	"github.com/tallyhq/tally/internal/audit"
	"github.com/tallyhq/tally/internal/banking"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/journal"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/reconcile"
	"github.com/tallyhq/tally/internal/report"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/tenant"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := store.NewTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authz := tenant.AllowAll{}

	api := New(
		accounts.NewService(db, authz, audit.Nop{}, log),
		journal.NewService(db, authz, audit.Nop{}, log),
		banking.NewService(db, authz, audit.Nop{}, log),
		reconcile.NewService(db, authz, audit.Nop{}, log),
		report.NewService(db),
		importer.DefaultRegistry(),
		log,
	)

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv
}

// do sends a request with identity headers and decodes the JSON reply
// into out when it is non-nil.
func do(t *testing.T, srv *httptest.Server, method, path string, body, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "t1")
	req.Header.Set("X-Actor-ID", "alice")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestIdentityRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/v1/accounts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthzOpen(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var acct model.Account
	resp := do(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"account_number": "1010",
		"name":           "Business Checking",
		"account_type":   "asset",
	}, &acct)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.BalanceDebit, acct.NormalBalance)

	var list []model.Account
	resp = do(t, srv, http.MethodGet, "/v1/accounts", nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)

	resp = do(t, srv, http.MethodPatch, "/v1/accounts/"+acct.ID, map[string]any{
		"name": "Main Checking",
	}, &acct)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Main Checking", acct.Name)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	// Validation: unknown account type.
	resp := do(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"name": "Bad", "account_type": "contra",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Not found.
	resp = do(t, srv, http.MethodGet, "/v1/accounts/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Bad JSON body.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/accounts", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "t1")
	req.Header.Set("X-Actor-ID", "alice")
	raw, err := srv.Client().Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestJournalFlow(t *testing.T) {
	srv := newTestServer(t)

	var cash, revenue model.Account
	do(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"account_number": "1010", "name": "Checking", "account_type": "asset",
	}, &cash)
	do(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"account_number": "4010", "name": "Revenue", "account_type": "income",
	}, &revenue)

	var entry model.JournalEntry
	resp := do(t, srv, http.MethodPost, "/v1/journal-entries", map[string]any{
		"entry_date": "2025-06-01",
		"memo":       "June invoice",
		"lines": []map[string]any{
			{"account_id": cash.ID, "debit_amount": "100.00"},
			{"account_id": revenue.ID, "credit_amount": "100.00"},
		},
	}, &entry)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "JE-00001", entry.EntryNumber)
	assert.Equal(t, model.EntryDraft, entry.Status)

	resp = do(t, srv, http.MethodPost, fmt.Sprintf("/v1/journal-entries/%s/post", entry.ID), nil, &entry)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.EntryPosted, entry.Status)

	// Posting twice conflicts.
	resp = do(t, srv, http.MethodPost, fmt.Sprintf("/v1/journal-entries/%s/post", entry.ID), nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var tb report.TrialBalance
	resp = do(t, srv, http.MethodGet, "/v1/reports/trial-balance", nil, &tb)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, tb.Rows, 2)
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
}

func TestBankImportFlow(t *testing.T) {
	srv := newTestServer(t)

	var checking model.Account
	do(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"account_number": "1010", "name": "Checking", "account_type": "asset",
	}, &checking)
	var expense model.Account
	do(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"account_number": "5020", "name": "Software", "account_type": "expense",
	}, &expense)

	var bank model.BankAccount
	resp := do(t, srv, http.MethodPost, "/v1/bank-accounts", map[string]any{
		"name": "Checking", "coa_account_id": checking.ID,
	}, &bank)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Upload a CSV statement.
	csv := "date,description,amount\n2025-06-01,GITHUB INC,-4.00\n"
	req, err := http.NewRequest(http.MethodPost,
		srv.URL+"/v1/bank-accounts/"+bank.ID+"/import?format=generic",
		bytes.NewBufferString(csv))
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "t1")
	req.Header.Set("X-Actor-ID", "alice")
	raw, err := srv.Client().Do(req)
	require.NoError(t, err)
	var result banking.ImportResult
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&result))
	raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
	assert.Equal(t, 1, result.Imported)

	var txns []model.BankTransaction
	resp = do(t, srv, http.MethodGet, "/v1/bank-accounts/"+bank.ID+"/transactions", nil, &txns)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, txns, 1)

	var txn model.BankTransaction
	resp = do(t, srv, http.MethodPost, "/v1/bank-transactions/"+txns[0].ID+"/categorize", map[string]any{
		"matched_account_id": expense.ID,
	}, &txn)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.TxnMatched, txn.Status)

	resp = do(t, srv, http.MethodPost, "/v1/bank-transactions/"+txns[0].ID+"/post", nil, &txn)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.TxnPosted, txn.Status)
}
