// Package manager composes the catalog, policy store, temporary-permission
// manager, request workflow and audit logger into the authorization engine's
// public surface. The manager is constructed explicitly with its dependencies
// injected; there is no package-level singleton.
package manager

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/catalog"
	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/policy"
	"authzd/internal/authz/repository"
	"authzd/internal/authz/workflow"
)

type Manager struct {
	catalog  *catalog.Catalog
	store    *policy.Store
	temp     *policy.TemporaryManager
	workflow *workflow.Workflow
	audit    *audit.Logger
	clock    clock.Clock
	log      *slog.Logger
}

// New wires the engine together. The workflow's reviewer check goes through
// this manager's CheckPermission, not around it.
func New(cat *catalog.Catalog, store *policy.Store, temp *policy.TemporaryManager, requests repository.RequestRepository, aud *audit.Logger, clk clock.Clock, log *slog.Logger, pendingTTL time.Duration) *Manager {
	m := &Manager{
		catalog: cat,
		store:   store,
		temp:    temp,
		audit:   aud,
		clock:   clk,
		log:     log,
	}
	m.workflow = workflow.New(requests, store, cat, aud, clk, log, m, pendingTTL)
	return m
}

// CheckPermission decides whether userID may exercise resource:action:scope.
// Role-derived and temporary permissions combine with OR; either path
// suffices. The outcome is always audited. Internal errors deny, never
// allow, and are escalated with an error-kind audit event.
func (m *Manager) CheckPermission(ctx context.Context, userID, resource, action, scope string) bool {
	allowed, _ := m.decide(ctx, userID, resource, action, scope)
	return allowed
}

// decide is the single decision implementation shared by CheckPermission and
// the annotation check. It returns the verdict and the reason recorded in
// the audit trail.
func (m *Manager) decide(ctx context.Context, userID, resource, action, scope string) (bool, string) {
	if scope == "" {
		scope = "*"
	}
	if userID == "" {
		m.audit.Decision(ctx, model.EventPermissionCheck, "", resource, action, scope,
			model.DecisionDeny, map[string]string{"reason": "authentication missing"})
		return false, "authentication missing"
	}

	roleOK, _, err := m.store.CheckDetailed(ctx, userID, resource, action, scope)
	if err != nil {
		return false, m.systemDeny(ctx, userID, resource, action, scope, "role check", err)
	}
	if roleOK {
		m.audit.Decision(ctx, model.EventPermissionCheck, userID, resource, action, scope,
			model.DecisionAllow, map[string]string{"reason": "granted by role"})
		return true, "granted by role"
	}

	tempOK, err := m.temp.Check(ctx, userID, resource, action, scope)
	if err != nil {
		return false, m.systemDeny(ctx, userID, resource, action, scope, "temporary check", err)
	}
	if tempOK {
		m.audit.Decision(ctx, model.EventPermissionCheck, userID, resource, action, scope,
			model.DecisionAllow, map[string]string{"reason": "granted by temporary permission"})
		return true, "granted by temporary permission"
	}

	m.audit.Decision(ctx, model.EventPermissionCheck, userID, resource, action, scope,
		model.DecisionDeny, map[string]string{"reason": "no matching permission"})
	return false, "no matching permission"
}

// systemDeny converts an internal failure into a deny decision. Fail closed,
// never fail open.
func (m *Manager) systemDeny(ctx context.Context, userID, resource, action, scope, op string, err error) string {
	m.log.Error("authorization system error, denying", "op", op, "user_id", userID, "error", err)
	m.audit.Decision(ctx, model.EventSystemError, userID, resource, action, scope,
		model.DecisionError, map[string]string{"op": op, "error": err.Error()})
	return "system error: " + op
}

// CheckAnnotationPermission requires every permission mapped to the
// annotation type (AND across the resolved set). Unknown annotation types
// deny with a distinct reason.
func (m *Manager) CheckAnnotationPermission(ctx context.Context, userID string, at model.AnnotationType) bool {
	allowed, _ := m.CheckAnnotation(ctx, userID, at)
	return allowed
}

// CheckAnnotation is CheckAnnotationPermission plus the list of missing
// permissions, used by diagnostics and denial messages.
func (m *Manager) CheckAnnotation(ctx context.Context, userID string, at model.AnnotationType) (bool, []model.Permission) {
	required, err := m.catalog.RequiredPermissions(at)
	if err != nil {
		m.audit.Decision(ctx, model.EventAnnotationCheck, userID, "", "", "",
			model.DecisionDeny, map[string]string{"reason": "unknown annotation type", "annotation_type": string(at)})
		return false, nil
	}

	var missing []model.Permission
	for _, p := range required {
		if !m.CheckPermission(ctx, userID, p.Resource, p.Action, p.Scope) {
			missing = append(missing, p)
		}
	}

	decision := model.DecisionAllow
	if len(missing) > 0 {
		decision = model.DecisionDeny
	}
	m.audit.Decision(ctx, model.EventAnnotationCheck, userID, "", "", "",
		decision, map[string]string{"annotation_type": string(at)})
	return len(missing) == 0, missing
}

// AssignRole grants a catalog role to a user.
func (m *Manager) AssignRole(ctx context.Context, userID, role, assignedBy, reason string) (bool, error) {
	ok, err := m.store.AssignRole(ctx, userID, role, assignedBy, reason)
	if err != nil {
		return false, &SystemError{Op: "assign_role", Err: err}
	}
	return ok, nil
}

// RevokeRole removes a role from a user. Revoking an unheld role returns
// false without error.
func (m *Manager) RevokeRole(ctx context.Context, userID, role, revokedBy, reason string) (bool, error) {
	ok, err := m.store.RevokeRole(ctx, userID, role, revokedBy, reason)
	if err != nil {
		return false, &SystemError{Op: "revoke_role", Err: err}
	}
	return ok, nil
}

// CreateAdminUser bootstraps an administrator account.
func (m *Manager) CreateAdminUser(ctx context.Context, userID, reason string) (bool, error) {
	if reason == "" {
		reason = "admin user creation"
	}
	return m.AssignRole(ctx, userID, model.RoleAdmin, "system", reason)
}

// UserRoles returns the user's roles ordered by assignment time.
func (m *Manager) UserRoles(ctx context.Context, userID string) ([]string, error) {
	roles, err := m.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "get_user_roles", Err: err}
	}
	return roles, nil
}

// AvailableRoles lists the catalog's role names.
func (m *Manager) AvailableRoles() []string { return m.catalog.Roles() }

// RoleDefinition exposes a catalog entry.
func (m *Manager) RoleDefinition(name string) (*model.RoleDefinition, error) {
	return m.catalog.Role(name)
}

// GrantTemporaryPermission creates a time-bounded grant.
func (m *Manager) GrantTemporaryPermission(ctx context.Context, userID, resource, action, scope string, ttl time.Duration, grantedBy string) (*model.TemporaryPermission, error) {
	grant, err := m.temp.Grant(ctx, userID, resource, action, scope, ttl, grantedBy)
	if err != nil {
		return nil, &SystemError{Op: "grant_temporary", Err: err}
	}
	return grant, nil
}

// TemporaryPermissions lists a user's grants, revoked and expired included.
func (m *Manager) TemporaryPermissions(ctx context.Context, userID string) ([]*model.TemporaryPermission, error) {
	grants, err := m.temp.Grants(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "list_temporary", Err: err}
	}
	return grants, nil
}

// RevokeTemporaryPermission deactivates a grant by id.
func (m *Manager) RevokeTemporaryPermission(ctx context.Context, id, revokedBy string) (bool, error) {
	ok, err := m.temp.Revoke(ctx, id, revokedBy)
	if err != nil {
		return false, &SystemError{Op: "revoke_temporary", Err: err}
	}
	return ok, nil
}

// SubmitPermissionRequest files a pending elevated-access request.
func (m *Manager) SubmitPermissionRequest(ctx context.Context, userID, requestedRole, reason string) (string, error) {
	return m.workflow.Submit(ctx, userID, requestedRole, reason)
}

// ReviewPermissionRequest finalizes a pending request.
func (m *Manager) ReviewPermissionRequest(ctx context.Context, requestID, reviewerID string, decision workflow.Decision, comment string) error {
	return m.workflow.Review(ctx, requestID, reviewerID, decision, comment)
}

// ListPermissionRequests returns requests filtered by status.
func (m *Manager) ListPermissionRequests(ctx context.Context, status model.RequestStatus) ([]*model.PermissionRequest, error) {
	return m.workflow.List(ctx, status)
}

// PermissionHistory returns the user's grant/revoke history, newest first.
func (m *Manager) PermissionHistory(ctx context.Context, userID string, limit int64) ([]*model.PermissionHistory, error) {
	entries, err := m.store.History(ctx, userID, limit)
	if err != nil {
		return nil, &SystemError{Op: "get_permission_history", Err: err}
	}
	return entries, nil
}

// EffectivePermissions returns the union of the user's role permissions and
// currently active temporary grants, deduplicated and sorted by canonical
// string.
func (m *Manager) EffectivePermissions(ctx context.Context, userID string) ([]model.Permission, error) {
	roles, err := m.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "effective_permissions", Err: err}
	}

	seen := make(map[string]model.Permission)
	for _, role := range roles {
		def, err := m.catalog.Role(role)
		if err != nil {
			m.log.Error("assigned role missing from catalog", "user_id", userID, "role", role)
			continue
		}
		for _, p := range def.Permissions {
			seen[p.String()] = p
		}
	}

	active, err := m.temp.ActiveGrants(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "effective_permissions", Err: err}
	}
	for _, g := range active {
		p := g.Permission()
		seen[p.String()] = p
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	perms := make([]model.Permission, 0, len(keys))
	for _, k := range keys {
		perms = append(perms, seen[k])
	}
	return perms, nil
}

// PermissionSummary aggregates a user's authorization state.
type PermissionSummary struct {
	UserID               string                       `json:"user_id"`
	Roles                []string                     `json:"roles"`
	HighestRole          string                       `json:"highest_role,omitempty"`
	EffectivePermissions []string                     `json:"effective_permissions"`
	TemporaryPermissions []*model.TemporaryPermission `json:"temporary_permissions,omitempty"`
	PendingRequests      int                          `json:"pending_requests"`
	Limitations          map[string]any               `json:"limitations,omitempty"`
}

// UserPermissionSummary reads roles, effective permissions, active temporary
// grants, the pending-request count and the limitations of the user's
// highest role.
func (m *Manager) UserPermissionSummary(ctx context.Context, userID string) (*PermissionSummary, error) {
	roles, err := m.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "permission_summary", Err: err}
	}

	effective, err := m.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	permStrings := make([]string, 0, len(effective))
	for _, p := range effective {
		permStrings = append(permStrings, p.String())
	}

	active, err := m.temp.ActiveGrants(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "permission_summary", Err: err}
	}

	pending, err := m.workflow.PendingCount(ctx, userID)
	if err != nil {
		return nil, &SystemError{Op: "permission_summary", Err: err}
	}

	summary := &PermissionSummary{
		UserID:               userID,
		Roles:                roles,
		HighestRole:          m.catalog.HighestRole(roles),
		EffectivePermissions: permStrings,
		TemporaryPermissions: active,
		PendingRequests:      pending,
	}
	if summary.HighestRole != "" {
		if def, err := m.catalog.Role(summary.HighestRole); err == nil {
			summary.Limitations = def.Limitations
		}
	}
	return summary, nil
}

// Stats summarizes the engine's state for operators.
type Stats struct {
	TotalUsers       int `json:"total_users"`
	TotalRoles       int `json:"total_roles"`
	TotalPermissions int `json:"total_permissions"`
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	users, err := m.store.Users(ctx)
	if err != nil {
		return nil, &SystemError{Op: "stats", Err: err}
	}
	return &Stats{
		TotalUsers:       len(users),
		TotalRoles:       len(m.catalog.Roles()),
		TotalPermissions: m.catalog.TotalPermissions(),
	}, nil
}

// ReapExpiredGrants is an optional hygiene pass; correctness never depends
// on it.
func (m *Manager) ReapExpiredGrants(ctx context.Context) (int64, error) {
	return m.temp.ReapExpired(ctx)
}
