package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tallyhq/tally/internal/fault"
)

type errorBody struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("encoding response", slog.String("error", err.Error()))
	}
}

// writeError maps the service error taxonomy onto HTTP statuses:
// validation 422, conflict 409, not found 404, authorization 403,
// missing identity 401, anything else 500.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, fault.ErrNotAuthenticated), errors.Is(err, fault.ErrNoActiveTenant):
		status = http.StatusUnauthorized
	case fault.IsAuthorization(err):
		status = http.StatusForbidden
	case fault.IsNotFound(err):
		status = http.StatusNotFound
	case fault.IsConflict(err):
		status = http.StatusConflict
	case fault.IsValidation(err):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
		a.log.Error("request failed", slog.String("error", err.Error()))
	}
	a.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
