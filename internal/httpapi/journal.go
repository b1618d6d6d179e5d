package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/journal"
	"github.com/tallyhq/tally/internal/store"
)

type lineRequest struct {
	AccountID    string          `json:"account_id"`
	Description  string          `json:"description"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

func toLineInputs(lines []lineRequest) []journal.LineInput {
	out := make([]journal.LineInput, len(lines))
	for i, l := range lines {
		out[i] = journal.LineInput{
			AccountID:    l.AccountID,
			Description:  l.Description,
			DebitAmount:  l.DebitAmount,
			CreditAmount: l.CreditAmount,
		}
	}
	return out
}

type createEntryRequest struct {
	Date       string        `json:"entry_date"`
	Memo       string        `json:"memo"`
	Lines      []lineRequest `json:"lines"`
	SourceType string        `json:"source_type"`
	SourceID   string        `json:"source_id"`
}

func (a *API) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !a.decode(w, r, &req) {
		return
	}
	date, err := store.ParseDate(req.Date)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid entry_date: " + err.Error()})
		return
	}
	entry, err := a.journal.CreateEntry(r.Context(), journal.CreateEntryInput{
		Date:       date,
		Memo:       req.Memo,
		Lines:      toLineInputs(req.Lines),
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, entry)
}

type updateEntryRequest struct {
	Date  *string       `json:"entry_date"`
	Memo  *string       `json:"memo"`
	Lines []lineRequest `json:"lines"`
}

func (a *API) updateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if !a.decode(w, r, &req) {
		return
	}
	in := journal.UpdateEntryInput{
		Memo:  req.Memo,
		Lines: toLineInputs(req.Lines),
	}
	if req.Date != nil {
		date, err := store.ParseDate(*req.Date)
		if err != nil {
			a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid entry_date: " + err.Error()})
			return
		}
		in.Date = &date
	}
	entry, err := a.journal.UpdateEntry(r.Context(), chi.URLParam(r, "entryID"), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entry)
}

func (a *API) postEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := a.journal.PostEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entry)
}

type voidEntryRequest struct {
	Reason string `json:"reason"`
}

func (a *API) voidEntry(w http.ResponseWriter, r *http.Request) {
	var req voidEntryRequest
	if !a.decode(w, r, &req) {
		return
	}
	entry, err := a.journal.VoidEntry(r.Context(), chi.URLParam(r, "entryID"), req.Reason)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entry)
}

func (a *API) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := a.journal.Get(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entry)
}

func (a *API) listEntries(w http.ResponseWriter, r *http.Request) {
	list, err := a.journal.List(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

// parseAsOf reads an optional as_of date query parameter.
func parseAsOf(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return nil, nil
	}
	t, err := store.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
