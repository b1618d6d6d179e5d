package httpapi

import "net/http"

func (a *API) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid as_of: " + err.Error()})
		return
	}
	tb, err := a.report.Compute(r.Context(), asOf)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tb)
}

type balanceCheckResponse struct {
	Consistent    bool     `json:"consistent"`
	StaleAccounts []string `json:"stale_accounts,omitempty"`
}

func (a *API) balanceCheck(w http.ResponseWriter, r *http.Request) {
	stale, err := a.report.CheckBalanceCaches(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, balanceCheckResponse{
		Consistent:    len(stale) == 0,
		StaleAccounts: stale,
	})
}
