package model

import (
	"fmt"
	"strings"
	"time"
)

// Permission is an immutable (resource, action, scope) capability triple.
// Scope may be the wildcard "*" on the stored side; requests never carry
// wildcards.
type Permission struct {
	Resource    string `json:"resource" bson:"resource"`
	Action      string `json:"action" bson:"action"`
	Scope       string `json:"scope" bson:"scope"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// String returns the canonical "resource:action:scope" serialization.
func (p Permission) String() string {
	return p.Resource + ":" + p.Action + ":" + p.Scope
}

// ParsePermission parses a canonical "resource:action:scope" string.
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Permission{}, fmt.Errorf("invalid permission string: %q", s)
	}
	return Permission{Resource: parts[0], Action: parts[1], Scope: parts[2]}, nil
}

// RoleDefinition is a static catalog entry: a named, ordered permission set
// plus informational limitations (rate quotas etc.) that are NOT enforced by
// the decision engine.
type RoleDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Permissions []Permission   `json:"permissions"`
	Limitations map[string]any `json:"limitations,omitempty"`
}

// RoleAssignment links a user to a catalog role. Uniqueness key is
// (user_id, role); a user may hold multiple roles concurrently.
type RoleAssignment struct {
	ID         string    `bson:"_id,omitempty" json:"id,omitempty"`
	UserID     string    `bson:"user_id" json:"user_id"`
	Role       string    `bson:"role" json:"role"`
	AssignedBy string    `bson:"assigned_by" json:"assigned_by"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	AssignedAt time.Time `bson:"assigned_at" json:"assigned_at"`
}

// PermissionHistory is an append-only record of a grant or revoke. Rows are
// never updated or deleted.
type PermissionHistory struct {
	ID              string            `bson:"_id,omitempty" json:"id,omitempty"`
	UserID          string            `bson:"user_id" json:"user_id"`
	Action          string            `bson:"action" json:"action"` // grant / revoke
	PermissionType  string            `bson:"permission_type" json:"permission_type"`
	PermissionValue string            `bson:"permission_value" json:"permission_value"`
	Actor           string            `bson:"actor" json:"actor"`
	Reason          string            `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	Metadata        map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// TemporaryPermission is a time-bounded grant independent of role membership.
// It expires by wall clock regardless of IsActive; revocation flips IsActive
// but preserves the row.
type TemporaryPermission struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Resource  string    `bson:"resource" json:"resource"`
	Action    string    `bson:"action" json:"action"`
	Scope     string    `bson:"scope" json:"scope"`
	GrantedBy string    `bson:"granted_by" json:"granted_by"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Permission returns the triple carried by the grant.
func (t *TemporaryPermission) Permission() Permission {
	return Permission{Resource: t.Resource, Action: t.Action, Scope: t.Scope}
}

// RequestStatus is the permission-request state. Requests start pending and
// finalize exactly once to approved or rejected.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// PermissionRequest is a user's petition for a catalog role, reviewed by an
// administrator.
type PermissionRequest struct {
	ID            string        `bson:"_id" json:"id"`
	UserID        string        `bson:"user_id" json:"user_id"`
	RequestedRole string        `bson:"requested_role" json:"requested_role"`
	Reason        string        `bson:"reason,omitempty" json:"reason,omitempty"`
	Status        RequestStatus `bson:"status" json:"status"`
	ReviewerID    string        `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewComment string        `bson:"review_comment,omitempty" json:"review_comment,omitempty"`
	SubmittedAt   time.Time     `bson:"submitted_at" json:"submitted_at"`
	ReviewedAt    *time.Time    `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
}

// AuditEvent is an append-only record of an authorization decision or an
// administrative change, keyed by (timestamp, seq).
type AuditEvent struct {
	ID        string            `bson:"_id" json:"id"`
	Timestamp time.Time         `bson:"timestamp" json:"timestamp"`
	Seq       int64             `bson:"seq" json:"seq"`
	Actor     string            `bson:"actor" json:"actor"`
	Resource  string            `bson:"resource,omitempty" json:"resource,omitempty"`
	Action    string            `bson:"action,omitempty" json:"action,omitempty"`
	Scope     string            `bson:"scope,omitempty" json:"scope,omitempty"`
	Decision  string            `bson:"decision" json:"decision"` // allow / deny / error
	EventType string            `bson:"event_type" json:"event_type"`
	Metadata  map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// UserMetadata describes a principal in summaries. This engine does not
// persist user records; identity resolution is external.
type UserMetadata struct {
	UserID      string            `json:"user_id"`
	DisplayName string            `json:"display_name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Status      string            `json:"status,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ErrorResponse for consistent error handling
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *ErrorDetail) Error() string {
	return e.Message
}
