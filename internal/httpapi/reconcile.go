package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/store"
)

type startReconciliationRequest struct {
	BankAccountID          string          `json:"bank_account_id"`
	StatementDate          string          `json:"statement_date"`
	StatementEndingBalance decimal.Decimal `json:"statement_ending_balance"`
	Notes                  string          `json:"notes"`
}

func (a *API) startReconciliation(w http.ResponseWriter, r *http.Request) {
	var req startReconciliationRequest
	if !a.decode(w, r, &req) {
		return
	}
	date, err := store.ParseDate(req.StatementDate)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid statement_date: " + err.Error()})
		return
	}
	rec, err := a.reconcile.Start(r.Context(), req.BankAccountID, date, req.StatementEndingBalance, req.Notes)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, rec)
}

type clearedBalanceRequest struct {
	ClearedBalance decimal.Decimal `json:"cleared_balance"`
}

func (a *API) updateClearedBalance(w http.ResponseWriter, r *http.Request) {
	var req clearedBalanceRequest
	if !a.decode(w, r, &req) {
		return
	}
	rec, err := a.reconcile.UpdateClearedBalance(r.Context(), chi.URLParam(r, "reconciliationID"), req.ClearedBalance)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) listEligibleTransactions(w http.ResponseWriter, r *http.Request) {
	rec, err := a.reconcile.Get(r.Context(), chi.URLParam(r, "reconciliationID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	list, err := a.reconcile.ListEligibleTransactions(r.Context(), rec.BankAccountID, rec.StatementDate)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

type completeReconciliationRequest struct {
	ClearedTransactionIDs []string `json:"cleared_transaction_ids"`
}

func (a *API) completeReconciliation(w http.ResponseWriter, r *http.Request) {
	var req completeReconciliationRequest
	if !a.decode(w, r, &req) {
		return
	}
	rec, err := a.reconcile.Complete(r.Context(), chi.URLParam(r, "reconciliationID"), req.ClearedTransactionIDs)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) voidReconciliation(w http.ResponseWriter, r *http.Request) {
	rec, err := a.reconcile.Void(r.Context(), chi.URLParam(r, "reconciliationID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) getReconciliation(w http.ResponseWriter, r *http.Request) {
	rec, err := a.reconcile.Get(r.Context(), chi.URLParam(r, "reconciliationID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}
