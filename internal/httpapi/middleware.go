package httpapi

import (
	"net/http"

	"github.com/tallyhq/tally/internal/tenant"
)

// Identity headers. Upstream gateways are expected to authenticate the
// caller and forward the resolved tenant and actor.
const (
	headerTenant = "X-Tenant-ID"
	headerActor  = "X-Actor-ID"
)

// withScope rejects requests without identity headers and installs the
// tenant scope on the request context.
func (a *API) withScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get(headerActor)
		if actorID == "" {
			a.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + headerActor + " header"})
			return
		}
		tenantID := r.Header.Get(headerTenant)
		if tenantID == "" {
			a.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + headerTenant + " header"})
			return
		}

		ctx := tenant.NewContext(r.Context(), tenant.Scope{TenantID: tenantID, ActorID: actorID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
