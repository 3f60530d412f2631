package policy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/catalog"
	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *repository.Memory, *clock.Fake) {
	t.Helper()

	cat, err := catalog.New()
	require.NoError(t, err)

	mem := repository.NewMemory()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := discardLogger()
	aud := audit.NewLogger(mem, clk, log)
	return NewStore(cat, mem, mem, aud, clk, log), mem, clk
}

func auditEvents(t *testing.T, mem *repository.Memory, eventType string) []model.AuditEvent {
	t.Helper()

	cur, err := mem.FindEvents(context.Background(), repository.AuditFilter{EventType: eventType})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	var out []model.AuditEvent
	for cur.Next(context.Background()) {
		var e model.AuditEvent
		require.NoError(t, cur.Decode(&e))
		out = append(out, e)
	}
	return out
}

func TestAssignRoleAndCheck(t *testing.T) {
	store, mem, _ := newTestStore(t)
	ctx := context.Background()

	assigned, err := store.AssignRole(ctx, "alice", model.RolePremiumUser, "admin_user", "upgrade")
	require.NoError(t, err)
	assert.True(t, assigned)

	t.Run("premium user may execute premium tools", func(t *testing.T) {
		ok, err := store.Check(ctx, "alice", "tool", "execute", "premium")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("premium user may not delete tools", func(t *testing.T) {
		ok, err := store.Check(ctx, "alice", "tool", "delete", "basic")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wildcard scope in role covers concrete scope", func(t *testing.T) {
		ok, err := store.Check(ctx, "alice", "prompt", "read", "premium")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("user with no roles is denied", func(t *testing.T) {
		ok, err := store.Check(ctx, "nobody", "mcp", "read", "*")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("assignment recorded in history", func(t *testing.T) {
		entries, err := store.History(ctx, "alice", 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.HistoryActionGrant, entries[0].Action)
		assert.Equal(t, model.PermissionTypeRole, entries[0].PermissionType)
		assert.Equal(t, model.RolePremiumUser, entries[0].PermissionValue)
		assert.Equal(t, "admin_user", entries[0].Actor)
	})

	t.Run("assignment audited", func(t *testing.T) {
		events := auditEvents(t, mem, model.EventRoleAssigned)
		require.Len(t, events, 1)
		assert.Equal(t, model.DecisionAllow, events[0].Decision)
	})
}

func TestAssignRoleUnknownRole(t *testing.T) {
	store, mem, _ := newTestStore(t)
	ctx := context.Background()

	assigned, err := store.AssignRole(ctx, "alice", "superuser", "admin_user", "")
	require.NoError(t, err)
	assert.False(t, assigned)

	roles, err := store.UserRoles(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, roles)

	events := auditEvents(t, mem, model.EventRoleAssigned)
	require.Len(t, events, 1)
	assert.Equal(t, model.DecisionDeny, events[0].Decision)
}

func TestAssignRoleDuplicate(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	assigned, err := store.AssignRole(ctx, "alice", model.RoleFreeUser, "system", "")
	require.NoError(t, err)
	assert.True(t, assigned)

	assigned, err = store.AssignRole(ctx, "alice", model.RoleFreeUser, "system", "")
	require.NoError(t, err)
	assert.False(t, assigned)

	roles, err := store.UserRoles(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleFreeUser}, roles)

	entries, err := store.History(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "idempotent no-op must not write history")
}

func TestRevokeRole(t *testing.T) {
	store, mem, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AssignRole(ctx, "alice", model.RolePremiumUser, "system", "")
	require.NoError(t, err)

	revoked, err := store.RevokeRole(ctx, "alice", model.RolePremiumUser, "admin_user", "downgrade")
	require.NoError(t, err)
	assert.True(t, revoked)

	ok, err := store.Check(ctx, "alice", "tool", "execute", "premium")
	require.NoError(t, err)
	assert.False(t, ok, "revocation takes effect on the next check")

	t.Run("revoking an unheld role returns false and audits", func(t *testing.T) {
		revoked, err := store.RevokeRole(ctx, "alice", model.RoleAdmin, "admin_user", "")
		require.NoError(t, err)
		assert.False(t, revoked)

		events := auditEvents(t, mem, model.EventRoleRevoked)
		require.Len(t, events, 2)
		assert.Equal(t, model.DecisionDeny, events[1].Decision)
	})
}

func TestUserRolesOrderedByAssignment(t *testing.T) {
	store, _, clk := newTestStore(t)
	ctx := context.Background()

	_, err := store.AssignRole(ctx, "alice", model.RolePremiumUser, "system", "")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = store.AssignRole(ctx, "alice", model.RoleFreeUser, "system", "")
	require.NoError(t, err)

	roles, err := store.UserRoles(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{model.RolePremiumUser, model.RoleFreeUser}, roles)
}

func TestCheckDetailedReturnsMatches(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AssignRole(ctx, "alice", model.RolePremiumUser, "system", "")
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, "alice", model.RoleFreeUser, "system", "")
	require.NoError(t, err)

	ok, matches, err := store.CheckDetailed(ctx, "alice", "tool", "execute", "basic")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, matches, 2, "both roles grant tool:execute:basic")
	for _, m := range matches {
		assert.True(t, Match(m.Permission, "tool", "execute", "basic"))
	}
}

func TestUsers(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AssignRole(ctx, "bob", model.RoleFreeUser, "system", "")
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, "alice", model.RolePremiumUser, "system", "")
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, "alice", model.RoleFreeUser, "system", "")
	require.NoError(t, err)

	users, err := store.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}
