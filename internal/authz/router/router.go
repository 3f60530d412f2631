package router

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"authzd/internal/authz/handler"
	"authzd/internal/authz/manager"
)

func RegisterRoutes(e *echo.Echo, h *handler.AuthzHandler, m *manager.Manager) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.PUT, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "x-user-id"},
	}))

	// Health Check
	e.GET("/health", handler.HealthCheck)

	v1 := e.Group("/api/v1")
	v1.Use(handler.RequestIDMiddleware)

	// Decision endpoints - not gated, any resolved identity can check
	v1.POST("/permissions/check", h.PostPermissionsCheck)
	v1.POST("/permissions/check_annotation", h.PostAnnotationCheck)
	v1.GET("/permissions/summary", h.GetPermissionsSummary)
	v1.GET("/permissions/effective", h.GetEffectivePermissions)

	// Administrative routes are gated on the caller's own permissions
	authzMiddleware := handler.NewAuthzMiddleware(m)
	v1.Use(authzMiddleware.Middleware())

	v1.GET("/permissions/debug", h.GetPermissionsDebug)

	v1.POST("/roles/assign", h.PostAssignRole)
	v1.POST("/roles/revoke", h.PostRevokeRole)
	v1.GET("/roles", h.GetRoles)
	v1.GET("/roles/catalog", h.GetRoleCatalog)

	v1.POST("/temporary", h.PostTemporary)
	v1.GET("/temporary", h.GetTemporary)
	v1.DELETE("/temporary/:id", h.DeleteTemporary)

	v1.POST("/requests", h.PostRequests)
	v1.GET("/requests", h.GetRequests)
	v1.POST("/requests/:id/review", h.PostReviewRequest)

	v1.GET("/history", h.GetHistory)
	v1.GET("/audit", h.GetAudit)
	v1.GET("/stats", h.GetStats)
}
