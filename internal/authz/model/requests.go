package model

import "strings"

// CheckPermissionReq asks whether a principal may exercise a capability.
// UserID is optional: a trusted dispatcher checking on behalf of a resolved
// identity sets it, otherwise the subject is the caller. Scope defaults to
// "*" when omitted; wildcards are rejected on the request side for resource
// and action.
type CheckPermissionReq struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Scope    string `json:"scope"`
}

func (r *CheckPermissionReq) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Resource = strings.ToLower(strings.TrimSpace(r.Resource))
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Scope = strings.TrimSpace(r.Scope)
	if r.Scope == "" {
		r.Scope = "*"
	}
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	if r.Resource == "*" || r.Action == "*" {
		return &ErrorDetail{Code: "bad_request", Message: "wildcards are not allowed in check requests"}
	}
	return nil
}

type CheckAnnotationReq struct {
	UserID         string `json:"user_id"`
	AnnotationType string `json:"annotation_type" validate:"required"`
}

func (r *CheckAnnotationReq) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.AnnotationType = strings.ToLower(strings.TrimSpace(r.AnnotationType))
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

type AssignRoleReq struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
	Reason string `json:"reason"`
}

func (r *AssignRoleReq) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.Reason = strings.TrimSpace(r.Reason)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

type RevokeRoleReq struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
	Reason string `json:"reason"`
}

func (r *RevokeRoleReq) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.Reason = strings.TrimSpace(r.Reason)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// GrantTemporaryReq creates a time-bounded grant. TTLSeconds must be positive.
type GrantTemporaryReq struct {
	UserID     string `json:"user_id" validate:"required"`
	Resource   string `json:"resource" validate:"required"`
	Action     string `json:"action" validate:"required"`
	Scope      string `json:"scope" validate:"required"`
	TTLSeconds int64  `json:"ttl_seconds" validate:"required,gt=0"`
}

func (r *GrantTemporaryReq) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Resource = strings.ToLower(strings.TrimSpace(r.Resource))
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Scope = strings.TrimSpace(r.Scope)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// SubmitRequestReq petitions a role for the caller.
type SubmitRequestReq struct {
	Role   string `json:"role" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (r *SubmitRequestReq) Validate() error {
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.Reason = strings.TrimSpace(r.Reason)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

type ReviewRequestReq struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Comment  string `json:"comment"`
}

func (r *ReviewRequestReq) Validate() error {
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
	r.Comment = strings.TrimSpace(r.Comment)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}
