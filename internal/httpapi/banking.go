package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/banking"
)

type createBankAccountRequest struct {
	Name          string `json:"name"`
	Institution   string `json:"institution"`
	AccountNumber string `json:"account_number"`
	Type          string `json:"account_type"`
	Currency      string `json:"currency"`
	COAAccountID  string `json:"coa_account_id"`
}

func (a *API) createBankAccount(w http.ResponseWriter, r *http.Request) {
	var req createBankAccountRequest
	if !a.decode(w, r, &req) {
		return
	}
	acct, err := a.banking.CreateBankAccount(r.Context(), banking.CreateBankAccountInput{
		Name:          req.Name,
		Institution:   req.Institution,
		AccountNumber: req.AccountNumber,
		Type:          req.Type,
		Currency:      req.Currency,
		COAAccountID:  req.COAAccountID,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, acct)
}

type linkCOARequest struct {
	COAAccountID string `json:"coa_account_id"`
}

func (a *API) linkCOAAccount(w http.ResponseWriter, r *http.Request) {
	var req linkCOARequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.banking.LinkCOAAccount(r.Context(), chi.URLParam(r, "bankAccountID"), req.COAAccountID); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) getBankAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := a.banking.GetBankAccount(r.Context(), chi.URLParam(r, "bankAccountID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, acct)
}

func (a *API) listBankAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := a.banking.ListBankAccounts(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

// importTransactions accepts a statement file as the raw request body.
// The parser is chosen by the format query parameter, defaulting to
// generic.
func (a *API) importTransactions(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "generic"
	}
	parser := a.parsers.Get(format)
	if parser == nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown import format: " + format})
		return
	}

	rows, err := parser.Parse(r.Body)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	result, err := a.banking.ImportBatch(r.Context(), chi.URLParam(r, "bankAccountID"), rows)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := a.banking.ListTransactions(r.Context(), chi.URLParam(r, "bankAccountID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

func (a *API) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := a.banking.GetTransaction(r.Context(), chi.URLParam(r, "txnID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, txn)
}

type categorizeRequest struct {
	MatchedAccountID   string `json:"matched_account_id"`
	MatchedVendorID    string `json:"matched_vendor_id"`
	MatchedCRMClientID string `json:"matched_crm_client_id"`
	Notes              string `json:"notes"`
}

func (a *API) categorizeTransaction(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if !a.decode(w, r, &req) {
		return
	}
	txn, err := a.banking.Categorize(r.Context(), chi.URLParam(r, "txnID"), banking.CategorizeInput{
		MatchedAccountID:   req.MatchedAccountID,
		MatchedVendorID:    req.MatchedVendorID,
		MatchedCRMClientID: req.MatchedCRMClientID,
		Notes:              req.Notes,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, txn)
}

func (a *API) postTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := a.banking.Post(r.Context(), chi.URLParam(r, "txnID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, txn)
}

func (a *API) excludeTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := a.banking.Exclude(r.Context(), chi.URLParam(r, "txnID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, txn)
}

func (a *API) suggestAccount(w http.ResponseWriter, r *http.Request) {
	suggestion, err := a.banking.SuggestAccount(r.Context(), chi.URLParam(r, "txnID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if suggestion == nil {
		a.writeJSON(w, http.StatusNoContent, nil)
		return
	}
	a.writeJSON(w, http.StatusOK, suggestion)
}
