package api

import (
	"github.com/gin-gonic/gin"

	"github.com/skillpix/skillpix-server/internal/handlers"
	"github.com/skillpix/skillpix-server/internal/middleware"
)

func registerAdminRoutes(r *gin.Engine, users *handlers.UserHandler, analytics *handlers.AnalyticsHandler, contact *handlers.ContactHandler, requireAuth gin.HandlerFunc) {
	admin := r.Group("/api/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.GET("/users", users.List)
		admin.GET("/users/:id", users.Get)
		admin.PATCH("/users/:id", users.Update)
		admin.DELETE("/users/:id", users.Delete)
		admin.POST("/users/:id/ban", users.Ban)
		admin.POST("/users/:id/unban", users.Unban)
		admin.POST("/users/:id/role", users.SetRole)
		admin.POST("/users/:id/impersonate", users.Impersonate)
		admin.POST("/users/:id/sessions/revoke", users.RevokeUserSessions)
		admin.POST("/sessions/:id/revoke", users.RevokeSession)

		admin.GET("/analytics", analytics.Summary)

		admin.GET("/contact", contact.List)
		admin.PATCH("/contact/:id/resolve", contact.MarkResolved)
	}

	// Ending impersonation is allowed for the impersonated session itself,
	// which carries the target's (non-admin) role.
	r.POST("/api/admin/stop-impersonating", requireAuth, users.StopImpersonating)
}
