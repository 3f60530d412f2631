package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/manager"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
	"authzd/internal/authz/workflow"
)

type AuthzHandler struct {
	Manager *manager.Manager
	Audit   *audit.Logger
}

func NewAuthzHandler(m *manager.Manager, aud *audit.Logger) *AuthzHandler {
	return &AuthzHandler{Manager: m, Audit: aud}
}

func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthzHandler) extractCallerID(c echo.Context) (string, error) {
	callerID := c.Request().Header.Get("x-user-id")
	if callerID == "" {
		return "", manager.ErrAuthenticationMissing
	}
	return callerID, nil
}

// PostPermissionsCheck handles POST /permissions/check. Denials return 200
// with allowed=false and a human-readable message.
func (h *AuthzHandler) PostPermissionsCheck(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.CheckPermissionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	subject := req.UserID
	if subject == "" {
		subject = callerID
	}

	allowed := h.Manager.CheckPermission(c.Request().Context(), subject, req.Resource, req.Action, req.Scope)
	resp := map[string]any{"allowed": allowed}
	if !allowed {
		report := h.Manager.DebugPermission(c.Request().Context(), subject, req.Resource, req.Action, req.Scope)
		resp["message"] = manager.FormatPermissionError(report)
	}
	return c.JSON(http.StatusOK, resp)
}

// PostAnnotationCheck handles POST /permissions/check_annotation.
func (h *AuthzHandler) PostAnnotationCheck(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.CheckAnnotationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	subject := req.UserID
	if subject == "" {
		subject = callerID
	}

	// Unknown annotation types flow through the manager so the denial is
	// audited with its distinct reason.
	at := model.AnnotationType(req.AnnotationType)
	allowed, missing := h.Manager.CheckAnnotation(c.Request().Context(), subject, at)
	resp := map[string]any{"allowed": allowed}
	if !allowed {
		resp["message"] = manager.FormatAnnotationError(subject, at, missing)
		names := make([]string, 0, len(missing))
		for _, p := range missing {
			names = append(names, p.String())
		}
		resp["missing"] = names
	}
	return c.JSON(http.StatusOK, resp)
}

// GetPermissionsDebug handles GET /permissions/debug.
func (h *AuthzHandler) GetPermissionsDebug(c echo.Context) error {
	userID := c.QueryParam("user_id")
	resource := c.QueryParam("resource")
	action := c.QueryParam("action")
	scope := c.QueryParam("scope")
	if userID == "" || resource == "" || action == "" {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "user_id, resource and action are required"))
	}

	report := h.Manager.DebugPermission(c.Request().Context(), userID, resource, action, scope)
	return c.JSON(http.StatusOK, report)
}

// GetPermissionsSummary handles GET /permissions/summary.
func (h *AuthzHandler) GetPermissionsSummary(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = callerID
	}

	summary, err := h.Manager.UserPermissionSummary(c.Request().Context(), userID)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, summary)
}

// GetEffectivePermissions handles GET /permissions/effective.
func (h *AuthzHandler) GetEffectivePermissions(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = callerID
	}

	perms, err := h.Manager.EffectivePermissions(c.Request().Context(), userID)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.String())
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "permissions": out})
}

// PostAssignRole handles POST /roles/assign.
func (h *AuthzHandler) PostAssignRole(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.AssignRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	assigned, err := h.Manager.AssignRole(c.Request().Context(), req.UserID, req.Role, callerID, req.Reason)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]bool{"assigned": assigned})
}

// PostRevokeRole handles POST /roles/revoke.
func (h *AuthzHandler) PostRevokeRole(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.RevokeRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	revoked, err := h.Manager.RevokeRole(c.Request().Context(), req.UserID, req.Role, callerID, req.Reason)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]bool{"revoked": revoked})
}

// GetRoles handles GET /roles.
func (h *AuthzHandler) GetRoles(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = callerID
	}

	roles, err := h.Manager.UserRoles(c.Request().Context(), userID)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "roles": roles})
}

// GetRoleCatalog handles GET /roles/catalog.
func (h *AuthzHandler) GetRoleCatalog(c echo.Context) error {
	names := h.Manager.AvailableRoles()
	defs := make([]*model.RoleDefinition, 0, len(names))
	for _, name := range names {
		if def, err := h.Manager.RoleDefinition(name); err == nil {
			defs = append(defs, def)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"roles": defs})
}

// PostTemporary handles POST /temporary.
func (h *AuthzHandler) PostTemporary(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.GrantTemporaryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	grant, err := h.Manager.GrantTemporaryPermission(c.Request().Context(),
		req.UserID, req.Resource, req.Action, req.Scope,
		time.Duration(req.TTLSeconds)*time.Second, callerID)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusCreated, grant)
}

// GetTemporary handles GET /temporary, listing a user's grants, revoked and
// expired ones included.
func (h *AuthzHandler) GetTemporary(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "user_id is required"))
	}

	grants, err := h.Manager.TemporaryPermissions(c.Request().Context(), userID)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "grants": grants})
}

// DeleteTemporary handles DELETE /temporary/:id.
func (h *AuthzHandler) DeleteTemporary(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	revoked, err := h.Manager.RevokeTemporaryPermission(c.Request().Context(), c.Param("id"), callerID)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]bool{"revoked": revoked})
}

// PostRequests handles POST /requests: the caller petitions a role for
// themselves.
func (h *AuthzHandler) PostRequests(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.SubmitRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	id, err := h.Manager.SubmitPermissionRequest(c.Request().Context(), callerID, req.Role, req.Reason)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusCreated, map[string]string{"request_id": id})
}

// GetRequests handles GET /requests.
func (h *AuthzHandler) GetRequests(c echo.Context) error {
	status := model.RequestStatus(c.QueryParam("status"))
	switch status {
	case "", model.StatusPending, model.StatusApproved, model.StatusRejected:
	default:
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid status filter"))
	}

	requests, err := h.Manager.ListPermissionRequests(c.Request().Context(), status)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"requests": requests})
}

// PostReviewRequest handles POST /requests/:id/review.
func (h *AuthzHandler) PostReviewRequest(c echo.Context) error {
	callerID, err := h.extractCallerID(c)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}

	var req model.ReviewRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid body"))
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, validationError(err))
	}

	err = h.Manager.ReviewPermissionRequest(c.Request().Context(), c.Param("id"), callerID,
		workflow.Decision(req.Decision), req.Comment)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// GetHistory handles GET /history.
func (h *AuthzHandler) GetHistory(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", "user_id is required"))
	}

	var limit int64
	if s := c.QueryParam("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid limit"))
		}
		limit = v
	}

	entries, err := h.Manager.PermissionHistory(c.Request().Context(), userID, limit)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "history": entries})
}

// GetAudit handles GET /audit, streaming the query cursor into the response.
func (h *AuthzHandler) GetAudit(c echo.Context) error {
	filter := repository.AuditFilter{
		Actor:     c.QueryParam("actor"),
		EventType: c.QueryParam("event_type"),
	}
	if s := c.QueryParam("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid 'from' timestamp"))
		}
		filter.From = t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid 'to' timestamp"))
		}
		filter.To = t
	}
	if s := c.QueryParam("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return c.JSON(http.StatusBadRequest, errorBody("bad_request", "Invalid limit"))
		}
		filter.Limit = v
	}

	ctx := c.Request().Context()
	it, err := h.Audit.Query(ctx, filter)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	defer it.Close(ctx)

	events := make([]model.AuditEvent, 0)
	for it.Next(ctx) {
		events = append(events, it.Event())
	}
	if err := it.Err(); err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

// GetStats handles GET /stats.
func (h *AuthzHandler) GetStats(c echo.Context) error {
	stats, err := h.Manager.Stats(c.Request().Context())
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, stats)
}
