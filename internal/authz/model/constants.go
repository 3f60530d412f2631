package model

// Predefined role names. Permission sets live in the embedded catalog.
const (
	RoleFreeUser       = "free_user"
	RolePremiumUser    = "premium_user"
	RoleEnterpriseUser = "enterprise_user"
	RoleAdmin          = "admin"
)

// AnnotationType is the closed safety classification of a gated operation.
// The required permission sets are cumulative: ReadOnly ⊂ Modify ⊂
// Destructive ⊂ External.
type AnnotationType string

const (
	AnnotationReadOnly    AnnotationType = "readonly"
	AnnotationModify      AnnotationType = "modify"
	AnnotationDestructive AnnotationType = "destructive"
	AnnotationExternal    AnnotationType = "external"
)

// ParseAnnotationType returns the AnnotationType for s, or false if s is not
// one of the four known types.
func ParseAnnotationType(s string) (AnnotationType, bool) {
	switch AnnotationType(s) {
	case AnnotationReadOnly, AnnotationModify, AnnotationDestructive, AnnotationExternal:
		return AnnotationType(s), true
	}
	return "", false
}

// History actions
const (
	HistoryActionGrant  = "grant"
	HistoryActionRevoke = "revoke"
)

// History permission types
const (
	PermissionTypeRole      = "role"
	PermissionTypeTemporary = "temporary"
)

// Audit decisions
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionError = "error"
)

// Audit event types
const (
	EventPermissionCheck  = "permission_check"
	EventAnnotationCheck  = "annotation_check"
	EventDebugPermission  = "debug_permission"
	EventRoleAssigned     = "role_assigned"
	EventRoleRevoked      = "role_revoked"
	EventTemporaryGranted = "temporary_granted"
	EventTemporaryRevoked = "temporary_revoked"
	EventRequestSubmitted = "request_submitted"
	EventRequestApproved  = "request_approved"
	EventRequestRejected  = "request_rejected"
	EventSystemError      = "error"
)
