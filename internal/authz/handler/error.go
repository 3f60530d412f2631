package handler

import (
	"errors"
	"net/http"

	"authzd/internal/authz/catalog"
	"authzd/internal/authz/manager"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
	"authzd/internal/authz/workflow"
)

// httpError maps engine errors to HTTP status and body.
func httpError(err error) (int, any) {
	var stateErr *workflow.StateError
	var sysErr *manager.SystemError

	switch {
	case errors.Is(err, manager.ErrAuthenticationMissing):
		return http.StatusUnauthorized, errorBody("unauthorized", "Authentication required")
	case errors.Is(err, workflow.ErrReviewerForbidden):
		return http.StatusForbidden, errorBody("forbidden", "Reviewer lacks admin permission")
	case errors.As(err, &stateErr):
		return http.StatusConflict, errorBody("workflow_state_error", stateErr.Error())
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, errorBody("not_found", "Record not found")
	case errors.Is(err, catalog.ErrUnknownRole):
		return http.StatusBadRequest, errorBody("unknown_role", err.Error())
	case errors.Is(err, catalog.ErrUnknownAnnotation):
		return http.StatusBadRequest, errorBody("unknown_annotation", err.Error())
	case errors.As(err, &sysErr):
		return http.StatusInternalServerError, errorBody("system_error", "Authorization system error")
	default:
		return http.StatusInternalServerError, errorBody("internal_error", err.Error())
	}
}

func errorBody(code, msg string) model.ErrorResponse {
	return model.ErrorResponse{Error: model.ErrorDetail{Code: code, Message: msg}}
}

func validationError(err error) model.ErrorResponse {
	var detail *model.ErrorDetail
	if errors.As(err, &detail) {
		return model.ErrorResponse{Error: *detail}
	}
	return errorBody("bad_request", err.Error())
}
