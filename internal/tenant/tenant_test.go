package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/fault"
)

func TestFromContext(t *testing.T) {
	ctx := NewContext(context.Background(), Scope{TenantID: "t1", ActorID: "alice"})

	scope, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", scope.TenantID)
	assert.Equal(t, "alice", scope.ActorID)
}

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, fault.ErrNotAuthenticated)
}

func TestFromContext_NoActor(t *testing.T) {
	ctx := NewContext(context.Background(), Scope{TenantID: "t1"})
	_, err := FromContext(ctx)
	assert.ErrorIs(t, err, fault.ErrNotAuthenticated)
}

func TestFromContext_NoTenant(t *testing.T) {
	ctx := NewContext(context.Background(), Scope{ActorID: "alice"})
	_, err := FromContext(ctx)
	assert.ErrorIs(t, err, fault.ErrNoActiveTenant)
}
