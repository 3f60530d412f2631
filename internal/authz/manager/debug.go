package manager

import (
	"context"
	"fmt"
	"strings"

	"authzd/internal/authz/model"
	"authzd/internal/authz/policy"
)

// DiagnosticReport explains a permission decision. FinalResult always equals
// what CheckPermission returns for the same inputs and store state: the
// verdict comes from the identical matching calls, only the surrounding
// bookkeeping differs.
type DiagnosticReport struct {
	UserID           string                       `json:"user_id"`
	Resource         string                       `json:"resource"`
	Action           string                       `json:"action"`
	Scope            string                       `json:"scope"`
	Roles            []string                     `json:"roles"`
	RoleMatches      []policy.RoleMatch           `json:"role_matches,omitempty"`
	TemporaryMatches []*model.TemporaryPermission `json:"temporary_matches,omitempty"`
	FinalResult      bool                         `json:"final_result"`
	Reason           string                       `json:"reason"`
	Missing          []string                     `json:"missing,omitempty"`
	Suggestions      []string                     `json:"suggestions,omitempty"`
}

// DebugPermission runs the same matching logic as CheckPermission and
// additionally surfaces the user's roles, the matching policy rows, the
// temporary-permission outcome and remediation suggestions. Read-only: it
// mutates nothing.
func (m *Manager) DebugPermission(ctx context.Context, userID, resource, action, scope string) *DiagnosticReport {
	if scope == "" {
		scope = "*"
	}
	report := &DiagnosticReport{
		UserID:   userID,
		Resource: resource,
		Action:   action,
		Scope:    scope,
	}

	if userID == "" {
		report.Reason = "authentication missing"
		report.Suggestions = []string{"provide a resolved user identity"}
		return report
	}

	roles, err := m.store.UserRoles(ctx, userID)
	if err != nil {
		report.Reason = "system error: role lookup"
		return report
	}
	report.Roles = roles

	roleOK, roleMatches, err := m.store.CheckDetailed(ctx, userID, resource, action, scope)
	if err != nil {
		report.Reason = "system error: role check"
		return report
	}
	report.RoleMatches = roleMatches

	tempMatches, err := m.temp.MatchingGrants(ctx, userID, resource, action, scope)
	if err != nil {
		if roleOK {
			// Role path already allows; a temporary-store failure cannot
			// flip the decision, matching CheckPermission's short circuit.
			report.FinalResult = true
			report.Reason = "granted by role"
			return report
		}
		report.Reason = "system error: temporary check"
		return report
	}
	report.TemporaryMatches = tempMatches

	switch {
	case roleOK:
		report.FinalResult = true
		report.Reason = "granted by role"
	case len(tempMatches) > 0:
		report.FinalResult = true
		report.Reason = "granted by temporary permission"
	default:
		report.FinalResult = false
		report.Reason = "no matching permission"
		report.Missing = []string{resource + ":" + action + ":" + scope}
		report.Suggestions = m.suggestions(userID, roles, resource, action, scope)
	}
	return report
}

// suggestions names concrete remediation steps for a denial.
func (m *Manager) suggestions(userID string, roles []string, resource, action, scope string) []string {
	var out []string
	if len(roles) == 0 {
		out = append(out, fmt.Sprintf("user %q has no roles assigned; assign a role or submit a permission request", userID))
	}

	var granting []string
	for _, name := range m.catalog.Roles() {
		def, err := m.catalog.Role(name)
		if err != nil {
			continue
		}
		for _, p := range def.Permissions {
			if policy.Match(p, resource, action, scope) {
				granting = append(granting, name)
				break
			}
		}
	}
	if len(granting) > 0 {
		out = append(out, "roles granting this permission: "+strings.Join(granting, ", "))
		out = append(out, fmt.Sprintf("submit a permission request for one of these roles (e.g. %s)", granting[0]))
	} else {
		out = append(out, "no predefined role grants this permission; a temporary grant may be appropriate")
	}
	return out
}

// FormatPermissionError renders a uniform human-readable denial message for
// a diagnostic report, naming the missing permissions and pointing at the
// request workflow.
func FormatPermissionError(report *DiagnosticReport) string {
	if report == nil || report.FinalResult {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Permission denied: user %q may not perform %s:%s:%s.",
		report.UserID, report.Resource, report.Action, report.Scope)
	if len(report.Missing) > 0 {
		fmt.Fprintf(&b, " Missing permissions: %s.", strings.Join(report.Missing, ", "))
	}
	b.WriteString(" To request elevated access, submit a permission request (submit_permission_request).")
	return b.String()
}

// FormatAnnotationError renders the denial message for an annotation-gated
// operation.
func FormatAnnotationError(userID string, at model.AnnotationType, missing []model.Permission) string {
	names := make([]string, 0, len(missing))
	for _, p := range missing {
		names = append(names, p.String())
	}
	msg := fmt.Sprintf("Permission denied: user %q lacks the %s permission set.", userID, at)
	if len(names) > 0 {
		msg += " Missing permissions: " + strings.Join(names, ", ") + "."
	}
	msg += " To request elevated access, submit a permission request (submit_permission_request)."
	return msg
}
