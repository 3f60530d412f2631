// Package policy evaluates role-derived and temporary permissions against
// requested capability tuples. The decision path is a pure read; default is
// deny.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/catalog"
	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
)

// RoleMatch names the role and the stored permission that covered a request.
type RoleMatch struct {
	Role       string           `json:"role"`
	Permission model.Permission `json:"permission"`
}

// Store persists role assignments and evaluates role-derived permission
// matches against the static catalog.
type Store struct {
	catalog *catalog.Catalog
	roles   repository.RoleRepository
	history repository.HistoryRepository
	audit   *audit.Logger
	clock   clock.Clock
	log     *slog.Logger
}

func NewStore(cat *catalog.Catalog, roles repository.RoleRepository, history repository.HistoryRepository, aud *audit.Logger, clk clock.Clock, log *slog.Logger) *Store {
	return &Store{catalog: cat, roles: roles, history: history, audit: aud, clock: clk, log: log}
}

// AssignRole inserts the (user, role) assignment if absent. It returns false
// without error for an unknown role (fail closed) and for a duplicate
// assignment (idempotent no-op). The assignment row is the durable source of
// truth; a failed history or audit write afterwards is logged for operator
// reconciliation and never rolls the assignment back.
func (s *Store) AssignRole(ctx context.Context, userID, role, assignedBy, reason string) (bool, error) {
	if !s.catalog.HasRole(role) {
		s.log.Warn("role assignment refused for unknown role", "user_id", userID, "role", role, "assigned_by", assignedBy)
		s.audit.Record(ctx, model.AuditEvent{
			Actor:     assignedBy,
			Decision:  model.DecisionDeny,
			EventType: model.EventRoleAssigned,
			Metadata:  map[string]string{"user_id": userID, "role": role, "reason": "unknown role"},
		})
		return false, nil
	}

	now := s.clock.Now()
	err := s.roles.InsertAssignment(ctx, &model.RoleAssignment{
		UserID:     userID,
		Role:       role,
		AssignedBy: assignedBy,
		Reason:     reason,
		AssignedAt: now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert role assignment: %w", err)
	}

	s.appendHistory(ctx, &model.PermissionHistory{
		UserID:          userID,
		Action:          model.HistoryActionGrant,
		PermissionType:  model.PermissionTypeRole,
		PermissionValue: role,
		Actor:           assignedBy,
		Reason:          reason,
		CreatedAt:       now,
	})
	s.audit.Record(ctx, model.AuditEvent{
		Actor:     assignedBy,
		Decision:  model.DecisionAllow,
		EventType: model.EventRoleAssigned,
		Metadata:  map[string]string{"user_id": userID, "role": role, "reason": reason},
	})
	return true, nil
}

// RevokeRole removes the assignment if present; revoking a role the user does
// not hold returns false, never an error, and still writes an audit entry.
func (s *Store) RevokeRole(ctx context.Context, userID, role, revokedBy, reason string) (bool, error) {
	err := s.roles.DeleteAssignment(ctx, userID, role)
	if errors.Is(err, repository.ErrNotFound) {
		s.audit.Record(ctx, model.AuditEvent{
			Actor:     revokedBy,
			Decision:  model.DecisionDeny,
			EventType: model.EventRoleRevoked,
			Metadata:  map[string]string{"user_id": userID, "role": role, "reason": "role not held"},
		})
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete role assignment: %w", err)
	}

	s.appendHistory(ctx, &model.PermissionHistory{
		UserID:          userID,
		Action:          model.HistoryActionRevoke,
		PermissionType:  model.PermissionTypeRole,
		PermissionValue: role,
		Actor:           revokedBy,
		Reason:          reason,
		CreatedAt:       s.clock.Now(),
	})
	s.audit.Record(ctx, model.AuditEvent{
		Actor:     revokedBy,
		Decision:  model.DecisionAllow,
		EventType: model.EventRoleRevoked,
		Metadata:  map[string]string{"user_id": userID, "role": role, "reason": reason},
	})
	return true, nil
}

// UserRoles returns the user's role names ordered by assignment time.
func (s *Store) UserRoles(ctx context.Context, userID string) ([]string, error) {
	assignments, err := s.roles.FindAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find role assignments: %w", err)
	}
	roles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		roles = append(roles, a.Role)
	}
	return roles, nil
}

// Check resolves the user's roles, unions their permission sets and tests the
// three-segment match rule. Absence of any matching row means false.
func (s *Store) Check(ctx context.Context, userID, resource, action, scope string) (bool, error) {
	allowed, _, err := s.CheckDetailed(ctx, userID, resource, action, scope)
	return allowed, err
}

// CheckDetailed is Check plus the matching rows, shared with the diagnostic
// path so that explain and enforcement can never diverge.
func (s *Store) CheckDetailed(ctx context.Context, userID, resource, action, scope string) (bool, []RoleMatch, error) {
	roles, err := s.UserRoles(ctx, userID)
	if err != nil {
		return false, nil, err
	}

	var matches []RoleMatch
	for _, role := range roles {
		def, err := s.catalog.Role(role)
		if err != nil {
			// An assigned role missing from the catalog is corrupt policy
			// data; skip it and leave the decision to the remaining roles.
			s.log.Error("assigned role missing from catalog", "user_id", userID, "role", role)
			continue
		}
		for _, p := range def.Permissions {
			if Match(p, resource, action, scope) {
				matches = append(matches, RoleMatch{Role: role, Permission: p})
			}
		}
	}
	return len(matches) > 0, matches, nil
}

// History returns the user's permission-history entries, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int64) ([]*model.PermissionHistory, error) {
	return s.history.FindHistory(ctx, userID, limit)
}

// Users lists user ids holding at least one role.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	return s.roles.DistinctUsers(ctx)
}

func (s *Store) appendHistory(ctx context.Context, h *model.PermissionHistory) {
	if err := s.history.AppendHistory(ctx, h); err != nil {
		s.log.Error("permission history write failed; assignment state is durable, reconcile manually",
			"user_id", h.UserID,
			"action", h.Action,
			"permission_value", h.PermissionValue,
			"error", err,
		)
	}
}
