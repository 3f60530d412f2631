package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionString(t *testing.T) {
	p := Permission{Resource: "tool", Action: "execute", Scope: "basic"}
	assert.Equal(t, "tool:execute:basic", p.String())
}

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("mcp:admin:*")
	require.NoError(t, err)
	assert.Equal(t, Permission{Resource: "mcp", Action: "admin", Scope: "*"}, p)

	for _, bad := range []string{"", "mcp", "mcp:admin", "mcp:admin:*:extra", "mcp::*", ":admin:*"} {
		_, err := ParsePermission(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseAnnotationType(t *testing.T) {
	at, ok := ParseAnnotationType("destructive")
	assert.True(t, ok)
	assert.Equal(t, AnnotationDestructive, at)

	_, ok = ParseAnnotationType("dangerous")
	assert.False(t, ok)
}

func TestCheckPermissionReqValidate(t *testing.T) {
	t.Run("normalizes and defaults scope", func(t *testing.T) {
		req := CheckPermissionReq{Resource: " Tool ", Action: "EXECUTE"}
		require.NoError(t, req.Validate())
		assert.Equal(t, "tool", req.Resource)
		assert.Equal(t, "execute", req.Action)
		assert.Equal(t, "*", req.Scope)
	})

	t.Run("rejects request-side wildcards", func(t *testing.T) {
		req := CheckPermissionReq{Resource: "*", Action: "execute"}
		assert.Error(t, req.Validate())

		req = CheckPermissionReq{Resource: "tool", Action: "*"}
		assert.Error(t, req.Validate())
	})

	t.Run("requires resource and action", func(t *testing.T) {
		req := CheckPermissionReq{Resource: "tool"}
		assert.Error(t, req.Validate())
	})
}

func TestGrantTemporaryReqValidate(t *testing.T) {
	req := GrantTemporaryReq{UserID: "carol", Resource: "mcp", Action: "admin", Scope: "*", TTLSeconds: 60}
	assert.NoError(t, req.Validate())

	req.TTLSeconds = 0
	assert.Error(t, req.Validate())
}

func TestReviewRequestReqValidate(t *testing.T) {
	req := ReviewRequestReq{Decision: "Approve "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "approve", req.Decision)

	req = ReviewRequestReq{Decision: "maybe"}
	assert.Error(t, req.Validate())
}
