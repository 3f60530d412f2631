package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"authzd/internal/authz/model"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		stored   model.Permission
		resource string
		action   string
		scope    string
		want     bool
	}{
		{
			name:   "exact match",
			stored: model.Permission{Resource: "tool", Action: "execute", Scope: "basic"},
			resource: "tool", action: "execute", scope: "basic",
			want: true,
		},
		{
			name:   "wildcard scope covers any scope",
			stored: model.Permission{Resource: "tool", Action: "execute", Scope: "*"},
			resource: "tool", action: "execute", scope: "premium",
			want: true,
		},
		{
			name:   "wildcard action covers any action",
			stored: model.Permission{Resource: "mcp", Action: "*", Scope: "*"},
			resource: "mcp", action: "admin", scope: "global",
			want: true,
		},
		{
			name:   "full wildcard covers everything",
			stored: model.Permission{Resource: "*", Action: "*", Scope: "*"},
			resource: "system", action: "write", scope: "config",
			want: true,
		},
		{
			name:   "resource mismatch",
			stored: model.Permission{Resource: "tool", Action: "execute", Scope: "*"},
			resource: "prompt", action: "execute", scope: "basic",
			want: false,
		},
		{
			name:   "action mismatch",
			stored: model.Permission{Resource: "tool", Action: "read", Scope: "*"},
			resource: "tool", action: "execute", scope: "basic",
			want: false,
		},
		{
			name:   "scope mismatch without wildcard",
			stored: model.Permission{Resource: "tool", Action: "execute", Scope: "basic"},
			resource: "tool", action: "execute", scope: "premium",
			want: false,
		},
		{
			name:   "requested wildcard is literal, stored literal does not cover it",
			stored: model.Permission{Resource: "tool", Action: "execute", Scope: "basic"},
			resource: "tool", action: "execute", scope: "*",
			want: false,
		},
		{
			name:   "all three segments must match, two of three is deny",
			stored: model.Permission{Resource: "tool", Action: "execute", Scope: "basic"},
			resource: "tool", action: "delete", scope: "basic",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.stored, tt.resource, tt.action, tt.scope)
			assert.Equal(t, tt.want, got)
		})
	}
}
