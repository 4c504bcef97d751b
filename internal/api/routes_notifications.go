package api

import (
	"github.com/gin-gonic/gin"

	"github.com/skillpix/skillpix-server/internal/handlers"
)

func registerNotificationRoutes(r *gin.Engine, handler *handlers.NotificationHandler, requireAuth gin.HandlerFunc) {
	// The stream endpoint authenticates via a token query parameter because
	// browsers cannot set headers on WebSocket dials.
	r.GET("/api/notifications/stream", handler.Stream)

	group := r.Group("/api/notifications", requireAuth)
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.POST("/read-all", handler.MarkAllRead)

		// bulk routes are registered before the :id routes so gin matches
		// "bulk" as a literal segment rather than an id
		group.PATCH("/bulk", handler.BulkUpdate)
		group.DELETE("/bulk", handler.BulkDelete)

		group.PATCH("/:id", handler.Update)
		group.DELETE("/:id", handler.Delete)
	}
}
