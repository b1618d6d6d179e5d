package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/accounts"
	"github.com/tallyhq/tally/internal/model"
)

type createAccountRequest struct {
	AccountNumber string `json:"account_number"`
	Name          string `json:"name"`
	Type          string `json:"account_type"`
	Subtype       string `json:"subtype"`
	ParentID      string `json:"parent_id"`
	IsSystem      bool   `json:"is_system"`
	DisplayOrder  int    `json:"display_order"`
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !a.decode(w, r, &req) {
		return
	}
	acct, err := a.accounts.CreateAccount(r.Context(), accounts.CreateAccountInput{
		AccountNumber: req.AccountNumber,
		Name:          req.Name,
		Type:          model.AccountType(req.Type),
		Subtype:       req.Subtype,
		ParentID:      req.ParentID,
		IsSystem:      req.IsSystem,
		DisplayOrder:  req.DisplayOrder,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, acct)
}

type updateAccountRequest struct {
	AccountNumber *string `json:"account_number"`
	Name          *string `json:"name"`
	Type          *string `json:"account_type"`
	Subtype       *string `json:"subtype"`
	ParentID      *string `json:"parent_id"`
	DisplayOrder  *int    `json:"display_order"`
	IsActive      *bool   `json:"is_active"`
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if !a.decode(w, r, &req) {
		return
	}
	in := accounts.UpdateAccountInput{
		AccountNumber: req.AccountNumber,
		Name:          req.Name,
		Subtype:       req.Subtype,
		ParentID:      req.ParentID,
		DisplayOrder:  req.DisplayOrder,
		IsActive:      req.IsActive,
	}
	if req.Type != nil {
		t := model.AccountType(*req.Type)
		in.Type = &t
	}
	acct, err := a.accounts.UpdateAccount(r.Context(), chi.URLParam(r, "accountID"), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, acct)
}

func (a *API) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.DeactivateAccount(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

type applyTemplateRequest struct {
	Template string `json:"template"`
}

func (a *API) applyTemplate(w http.ResponseWriter, r *http.Request) {
	var req applyTemplateRequest
	if !a.decode(w, r, &req) {
		return
	}
	created, err := a.accounts.ApplyTemplate(r.Context(), req.Template)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, created)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := a.accounts.Get(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, acct)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := a.accounts.List(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}
