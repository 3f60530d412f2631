package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"authzd/internal/authz/manager"
	"authzd/internal/authz/model"
)

// gatedRoutes is the static table of administrative operations and the
// annotation type each requires. Built once at startup and consulted per
// request; there is no dynamic registration.
var gatedRoutes = map[string]model.AnnotationType{
	"POST:/api/v1/roles/assign":     model.AnnotationDestructive,
	"POST:/api/v1/roles/revoke":     model.AnnotationDestructive,
	"POST:/api/v1/temporary":        model.AnnotationDestructive,
	"DELETE:/api/v1/temporary/:id":  model.AnnotationDestructive,
	"GET:/api/v1/temporary":         model.AnnotationDestructive,
	"GET:/api/v1/requests":          model.AnnotationDestructive,
	"GET:/api/v1/history":           model.AnnotationDestructive,
	"GET:/api/v1/audit":             model.AnnotationDestructive,
	"GET:/api/v1/stats":             model.AnnotationDestructive,
	"GET:/api/v1/permissions/debug": model.AnnotationDestructive,
}

// AuthzMiddleware gates administrative routes on the caller's own
// permissions, evaluated through the same engine the routes administer.
type AuthzMiddleware struct {
	manager *manager.Manager
}

func NewAuthzMiddleware(m *manager.Manager) *AuthzMiddleware {
	return &AuthzMiddleware{manager: m}
}

func (m *AuthzMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Method + ":" + c.Path()
			at, gated := gatedRoutes[key]
			if !gated {
				return next(c)
			}

			callerID := c.Request().Header.Get("x-user-id")
			if callerID == "" {
				return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "x-user-id header is required"))
			}

			allowed, missing := m.manager.CheckAnnotation(c.Request().Context(), callerID, at)
			if !allowed {
				return c.JSON(http.StatusForbidden, errorBody("forbidden",
					manager.FormatAnnotationError(callerID, at, missing)))
			}
			return next(c)
		}
	}
}
