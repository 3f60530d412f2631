package repository

import (
	"context"
	"errors"
	"time"

	"authzd/internal/authz/model"
)

var (
	ErrDuplicate        = errors.New("duplicate record")
	ErrNotFound         = errors.New("record not found")
	ErrAlreadyFinalized = errors.New("request already finalized")
)

// RoleRepository persists role assignments. The (user_id, role) pair is
// unique; InsertAssignment returns ErrDuplicate when it already exists.
type RoleRepository interface {
	InsertAssignment(ctx context.Context, a *model.RoleAssignment) error
	// DeleteAssignment removes the assignment; ErrNotFound if absent.
	DeleteAssignment(ctx context.Context, userID, role string) error
	// FindAssignments returns the user's assignments ordered by assignment time.
	FindAssignments(ctx context.Context, userID string) ([]*model.RoleAssignment, error)
	// DistinctUsers lists user ids holding at least one role.
	DistinctUsers(ctx context.Context) ([]string, error)
	EnsureIndexes(ctx context.Context) error
}

// HistoryRepository is append-only; no update or delete exists.
type HistoryRepository interface {
	AppendHistory(ctx context.Context, h *model.PermissionHistory) error
	// FindHistory returns the user's entries newest first, capped at limit
	// (limit <= 0 means no cap).
	FindHistory(ctx context.Context, userID string, limit int64) ([]*model.PermissionHistory, error)
}

// TemporaryPermissionRepository persists time-bounded grants. Rows are never
// deleted; revocation and expiry flip is_active.
type TemporaryPermissionRepository interface {
	InsertGrant(ctx context.Context, t *model.TemporaryPermission) error
	// FindGrants returns all rows for the user, active or not.
	FindGrants(ctx context.Context, userID string) ([]*model.TemporaryPermission, error)
	// DeactivateGrant sets is_active=false; ErrNotFound for unknown ids.
	DeactivateGrant(ctx context.Context, id string) error
	// DeactivateExpired flips is_active for rows past now. Storage hygiene
	// only; correctness never depends on it.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// RequestRepository persists permission requests. FinalizeRequest is the one
// conditional write in the engine: it transitions pending → terminal exactly
// once and returns ErrAlreadyFinalized to the loser of a race.
type RequestRepository interface {
	InsertRequest(ctx context.Context, r *model.PermissionRequest) error
	GetRequest(ctx context.Context, id string) (*model.PermissionRequest, error)
	// FindRequests filters by status; empty status returns all, newest first.
	FindRequests(ctx context.Context, status model.RequestStatus) ([]*model.PermissionRequest, error)
	FinalizeRequest(ctx context.Context, id string, status model.RequestStatus, reviewerID, comment string, reviewedAt time.Time) error
}

// AuditFilter narrows an audit query. Zero values mean "no constraint".
type AuditFilter struct {
	Actor     string
	EventType string
	From      time.Time
	To        time.Time
	Limit     int64
}

// AuditCursor is a lazy, forward-only stream of audit events. *mongo.Cursor
// satisfies it directly.
type AuditCursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// AuditRepository is append-only; events are keyed by (timestamp, seq).
type AuditRepository interface {
	AppendEvent(ctx context.Context, e *model.AuditEvent) error
	// FindEvents streams matching events ordered by (timestamp, seq) ascending.
	FindEvents(ctx context.Context, filter AuditFilter) (AuditCursor, error)
}
