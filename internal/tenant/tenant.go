// Package tenant carries the authenticated actor and active tenant
// through context, and defines the authorization capability every
// mutating operation checks before touching the ledger.
package tenant

import (
	"context"

	"github.com/tallyhq/tally/internal/fault"
)

// Scope identifies the active tenant and the acting user.
type Scope struct {
	TenantID string
	ActorID  string
}

type ctxKey struct{}

// NewContext returns ctx with the scope attached.
func NewContext(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, scope)
}

// FromContext extracts the scope. Missing actor or tenant fails before
// any domain logic runs.
func FromContext(ctx context.Context) (Scope, error) {
	scope, ok := ctx.Value(ctxKey{}).(Scope)
	if !ok || scope.ActorID == "" {
		return Scope{}, fault.ErrNotAuthenticated
	}
	if scope.TenantID == "" {
		return Scope{}, fault.ErrNoActiveTenant
	}
	return scope, nil
}

// Authorizer decides whether an actor may perform an action on a
// resource. Permission resolution itself is an external collaborator.
type Authorizer interface {
	Can(scope Scope, action, resource string) bool
}

// AllowAll permits every action. Used by the CLI and as the default
// when no permission collaborator is wired in.
type AllowAll struct{}

// Can always returns true.
func (AllowAll) Can(Scope, string, string) bool { return true }
